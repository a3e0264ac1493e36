package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/linker"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/platform"
	"github.com/wippyai/modhost/wasm"
)

// TrustedModules are import modules the broken reference check skips.
var TrustedModules = []string{engine.ModuleWASI, "env"}

// Options are the pipeline mode flags.
type Options struct {
	// RewriteMods enables platform remapping and the rewriters. Without it
	// binaries are only inspected.
	RewriteMods bool
	// Paranoid enables the console, filesystem and shell finders.
	Paranoid bool
}

// Pipeline rewrites and inspects binaries before they are admitted.
type Pipeline struct {
	hostAPI  *engine.HostAPI
	platform *platform.Map
	opts     Options
}

// New creates a pipeline. pmap may be nil to disable platform remapping.
func New(hostAPI *engine.HostAPI, pmap *platform.Map, opts Options) *Pipeline {
	return &Pipeline{hostAPI: hostAPI, platform: pmap, opts: opts}
}

// NewPlatformMap maps the legacy modules onto WASI and the modhost module
// of hostAPI.
func NewPlatformMap(hostAPI *engine.HostAPI) *platform.Map {
	return platform.New(platform.DefaultSources,
		platform.Target{Name: engine.ModuleWASI, Exports: hostAPI.ExportNames(engine.ModuleWASI)},
		platform.Target{Name: engine.ModuleHost, Exports: hostAPI.ExportNames(engine.ModuleHost)},
	)
}

// Result summarizes one binary's scan.
type Result struct {
	// Broken lists the NotCompatible findings.
	Broken   []string
	Flags    []Outcome
	Warnings mod.Warning
	// Changed is set when the module was edited and must be re-encoded.
	Changed bool
}

// Compatible reports whether nothing was flagged NotCompatible.
func (r *Result) Compatible() bool {
	return len(r.Broken) == 0
}

// Run remaps m for the platform and scans it with DefaultHandlers. m is
// edited in place.
func (p *Pipeline) Run(m *wasm.Module, file string, log *LogOnce) (*Result, error) {
	if log == nil {
		log = NewLogOnce(nil)
	}
	res := &Result{}

	platformChanged := false
	if p.opts.RewriteMods && p.platform.References(m) {
		platformChanged = true
		changed, err := p.platform.Apply(m)
		if err != nil {
			return nil, errors.New(errors.PhaseRewrite, errors.KindInvalidData).
				File(file).
				Detail("invalid %s section", wasm.CustomDylink).
				Cause(err).
				Build()
		}
		if changed {
			res.Changed = true
			log.Log(zapcore.DebugLevel, fmt.Sprintf("Rewrote %s for platform...", file))
		}
	}

	p.Scan(m, file, DefaultHandlers(p.opts.Paranoid, platformChanged, p.opts.RewriteMods), log, res)
	return res, nil
}

// Scan visits every import and then every instruction of m with each handler
// in order, and folds the raised flags into res.
func (p *Pipeline) Scan(m *wasm.Module, file string, handlers []Handler, log *LogOnce, res *Result) {
	c := NewContext(m, p.hostAPI, file)
	undecodable := &base{kind: Detect, phrase: "unsupported instructions"}
	for _, h := range handlers {
		h.Reset()
	}

	for slot := range m.Imports {
		for _, h := range handlers {
			h.Import(c, slot)
		}
	}

	for fi := range m.Code {
		c.Func = fi
		instrs, err := wasm.DecodeInstructions(m.Code[fi].Code)
		if err != nil {
			undecodable.mark(NotCompatible, fmt.Sprintf("unsupported instruction in function %d (%v)", m.NumImportedFuncs()+fi, err))
			continue
		}

		out := make([]wasm.Instruction, 0, len(instrs))
		edited := false
		for _, ins := range instrs {
			for _, h := range handlers {
				repl, ok := h.Instruction(c, ins)
				if !ok || h.Kind() == Detect || len(repl) == 0 {
					continue
				}
				out = append(out, repl[:len(repl)-1]...)
				ins = repl[len(repl)-1]
				edited = true
			}
			out = append(out, ins)
		}
		if edited {
			m.Code[fi].Code = wasm.EncodeInstructions(out)
		}
	}
	c.Func = -1

	for _, h := range append(slices.Clip(handlers), undecodable) {
		for _, o := range h.Flags() {
			phrases := h.Phrases(o)
			phrase := strings.Join(phrases, ", ")
			if phrase == "" {
				phrase = h.DefaultPhrase()
				phrases = []string{phrase}
			}

			switch o {
			case Rewritten:
				res.Changed = true
			case NotCompatible:
				res.Broken = append(res.Broken, phrases...)
			}
			if !slices.Contains(res.Flags, o) {
				res.Flags = append(res.Flags, o)
			}
			res.Warnings |= o.Warning()

			level, msg := o.Message(file, phrase)
			log.Log(level, msg)
		}
	}
}

// BrokenReferences returns an entry for every import of m, outside the
// trusted modules, that r can't resolve.
func BrokenReferences(m *wasm.Module, r *linker.Resolver) []string {
	var out []string
	for _, imp := range m.Imports {
		if slices.Contains(TrustedModules, imp.Module) {
			continue
		}
		if !r.HasExport(imp.Module, imp.Name, imp.Kind) {
			out = append(out, fmt.Sprintf("reference to %s (no such %s)", imp.Key(), kindName(imp.Kind)))
		}
	}
	return out
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "function"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	default:
		return "export"
	}
}
