package rewrite

import (
	"fmt"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/typeref"
	"github.com/wippyai/modhost/wasm"
)

// finder runs check on every import and on every instruction that calls one.
type finder struct {
	base
	check func(c *Context, imp wasm.Import)
}

func (f *finder) Import(c *Context, slot int) {
	f.check(c, c.Module.Imports[slot])
}

func (f *finder) Instruction(c *Context, ins wasm.Instruction) ([]wasm.Instruction, bool) {
	if slot, ok := c.CalledImport(ins); ok {
		f.check(c, c.Module.Imports[slot])
	}
	return nil, false
}

// MissingImportFinder flags imports of host functions that don't exist.
type MissingImportFinder struct{ finder }

// NewMissingImportFinder creates the finder.
func NewMissingImportFinder() *MissingImportFinder {
	f := &MissingImportFinder{}
	f.base = base{kind: Detect, phrase: "missing host functions"}
	f.check = func(c *Context, imp wasm.Import) {
		if imp.Kind != wasm.KindFunc || !c.HostAPI.Validates(imp.Module) {
			return
		}
		if _, ok := c.HostAPI.Lookup(imp.Module, imp.Name); !ok {
			f.mark(NotCompatible, fmt.Sprintf("reference to %s (no such function)", imp.Key()))
		}
	}
	return f
}

// UnexpectedSignatureFinder flags imports of host functions whose core
// signature differs from the host's, or whose declared host type in the
// modhost.signatures section doesn't match the host's.
type UnexpectedSignatureFinder struct{ finder }

// NewUnexpectedSignatureFinder creates the finder.
func NewUnexpectedSignatureFinder() *UnexpectedSignatureFinder {
	f := &UnexpectedSignatureFinder{}
	f.base = base{kind: Detect, phrase: "host functions with changed signatures"}
	f.check = func(c *Context, imp wasm.Import) {
		if imp.Kind != wasm.KindFunc || !c.HostAPI.Validates(imp.Module) {
			return
		}
		fn, ok := c.HostAPI.Lookup(imp.Module, imp.Name)
		if !ok {
			return
		}
		if ft, ok := c.Module.TypeOf(imp); !ok || !ft.Equal(fn.Core) {
			f.mark(NotCompatible, fmt.Sprintf("reference to %s (expected %s, host has %s)", imp.Key(), ft, fn.Core))
			return
		}

		declared, err := c.Signatures(imp.Module, imp.Name)
		if err != nil {
			f.mark(NotCompatible, "malformed "+wasm.CustomSignatures+" section")
			return
		}
		cmp := typeref.Comparer{Params: fn.TypeParams}
		for _, sig := range declared {
			if fn.Signature == "" {
				f.mark(NotCompatible, fmt.Sprintf("reference to %s (expects %s, host has no such type)", imp.Key(), sig))
				continue
			}
			same, err := cmp.Equal(sig, fn.Signature)
			if err != nil {
				f.mark(NotCompatible, fmt.Sprintf("reference to %s (%v)", imp.Key(), err))
				continue
			}
			if !same {
				f.mark(NotCompatible, fmt.Sprintf("reference to %s (expects %s, host has %s)", imp.Key(), sig, fn.Signature))
			}
		}
	}
	return f
}

// ImportFinder flags imports matching a set of patterns.
type ImportFinder struct {
	finder
	match   *Matcher
	outcome Outcome
}

// NewImportFinder creates a finder raising outcome for imports matching
// patterns. The import's "module.name" is used as the phrase.
func NewImportFinder(outcome Outcome, defaultPhrase string, patterns ...string) *ImportFinder {
	f := &ImportFinder{match: NewMatcher(patterns...), outcome: outcome}
	f.base = base{kind: Detect, phrase: defaultPhrase}
	f.check = func(_ *Context, imp wasm.Import) {
		if f.match.Match(imp.Module, imp.Name) {
			f.mark(f.outcome, imp.Key())
		}
	}
	return f
}

// NewPatchFinder flags use of the host patching API.
func NewPatchFinder() *ImportFinder {
	return NewImportFinder(PatchesHost, "host patching", engine.ModulePatch+".*")
}

// NewSerializerFinder flags serializer registration.
func NewSerializerFinder() *ImportFinder {
	return NewImportFinder(ChangesSerializer, "serializer registration", engine.ModuleSerializer+".*")
}

// NewLifecycleHookFinder flags subscriptions to the unvalidated update events.
func NewLifecycleHookFinder() *ImportFinder {
	return NewImportFinder(UsesUnvalidatedLifecycleHook, "unvalidated update events",
		engine.ModuleEvents+".on_"+engine.EventUnvalidatedUpdateTick,
		engine.ModuleEvents+".on_"+engine.EventUnvalidatedUpdateTicked,
	)
}

// NewConsoleFinder flags direct console access.
func NewConsoleFinder() *ImportFinder {
	return NewImportFinder(AccessesConsole, "console",
		engine.ModuleWASI+".fd_write",
		engine.ModuleWASI+".fd_read",
		engine.ModuleConsole+".*",
	)
}

// NewFilesystemFinder flags filesystem access.
func NewFilesystemFinder() *ImportFinder {
	return NewImportFinder(AccessesFilesystem, "filesystem",
		engine.ModuleWASI+".path_*",
		engine.ModuleWASI+".fd_readdir",
		engine.ModuleWASI+".fd_prestat_*",
	)
}

// NewShellFinder flags process control.
func NewShellFinder() *ImportFinder {
	return NewImportFinder(AccessesShell, "process",
		engine.ModuleWASI+".proc_exec",
		engine.ModuleWASI+".proc_raise",
		engine.ModuleProcess+".*",
	)
}

// DefaultHandlers returns the handlers in the order they run.
func DefaultHandlers(paranoid, platformChanged, rewriteMods bool) []Handler {
	var hs []Handler
	if rewriteMods && platformChanged {
		hs = append(hs, NewHostFacadeRewriter(nil))
	}
	if rewriteMods {
		hs = append(hs, NewLegacyLogRewriter())
	}
	hs = append(hs,
		NewMissingImportFinder(),
		NewUnexpectedSignatureFinder(),
		NewPatchFinder(),
		NewSerializerFinder(),
		NewLifecycleHookFinder(),
	)
	if paranoid {
		hs = append(hs, NewConsoleFinder(), NewFilesystemFinder(), NewShellFinder())
	}
	return hs
}
