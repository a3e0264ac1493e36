package rewrite

import (
	"fmt"
	"slices"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/platform"
	"github.com/wippyai/modhost/wasm"
)

// Rename is the current name of a legacy host function.
type Rename struct {
	Module string
	Name   string
}

// LegacyRenames maps legacy host functions, keyed by "module.name", to their
// current names.
var LegacyRenames = map[string]Rename{
	platform.ModuleLegacyHostAPI + ".get_api_version": {engine.ModuleHost, "api_version"},
	platform.ModuleLegacyHostAPI + ".console_write":   {engine.ModuleConsole, "write"},
	platform.ModuleLegacyHostAPI + ".register_tick":   {engine.ModuleEvents, "on_update_tick"},
	platform.ModuleLegacyHostAPI + ".register_ticked": {engine.ModuleEvents, "on_update_ticked"},
	platform.ModuleLegacyHostAPI + ".patch":           {engine.ModulePatch, "replace"},
}

// HostFacadeRewriter retargets imports of renamed host functions. An import
// is only retargeted when its signature matches the current function.
type HostFacadeRewriter struct {
	base
	renames map[string]Rename
}

// NewHostFacadeRewriter creates a rewriter for renames, or LegacyRenames when
// renames is nil.
func NewHostFacadeRewriter(renames map[string]Rename) *HostFacadeRewriter {
	if renames == nil {
		renames = LegacyRenames
	}
	return &HostFacadeRewriter{
		base:    base{kind: RewriteImport, phrase: "renamed host functions"},
		renames: renames,
	}
}

func (r *HostFacadeRewriter) Import(c *Context, slot int) {
	imp := &c.Module.Imports[slot]
	if imp.Kind != wasm.KindFunc {
		return
	}
	to, ok := r.renames[imp.Key()]
	if !ok {
		return
	}
	fn, ok := c.HostAPI.Lookup(to.Module, to.Name)
	if !ok {
		return
	}
	if ft, ok := c.Module.TypeOf(*imp); !ok || !ft.Equal(fn.Core) {
		return
	}
	key := imp.Key()
	imp.Module, imp.Name = to.Module, to.Name
	r.mark(Rewritten, key)
}

var legacyLogLevels = map[string]int32{
	"log_info":  engine.LevelInfo,
	"log_warn":  engine.LevelWarn,
	"log_error": engine.LevelError,
}

type logSite struct {
	key   string
	level int32
}

// LegacyLogRewriter turns imports of modhost.log_info, log_warn and log_error
// into modhost.log and passes the level at each call site.
type LegacyLogRewriter struct {
	base
	sites map[uint32]logSite
}

// NewLegacyLogRewriter creates the rewriter.
func NewLegacyLogRewriter() *LegacyLogRewriter {
	return &LegacyLogRewriter{base: base{kind: RewriteInstruction, phrase: "legacy log calls"}}
}

func (r *LegacyLogRewriter) Reset() {
	r.base.Reset()
	r.sites = nil
}

func (r *LegacyLogRewriter) Import(c *Context, slot int) {
	imp := &c.Module.Imports[slot]
	if imp.Kind != wasm.KindFunc || imp.Module != engine.ModuleHost {
		return
	}
	level, ok := legacyLogLevels[imp.Name]
	if !ok {
		return
	}
	legacy := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}}
	if ft, ok := c.Module.TypeOf(*imp); !ok || !ft.Equal(legacy) {
		return
	}
	fn, ok := c.HostAPI.Lookup(engine.ModuleHost, "log")
	if !ok {
		return
	}
	idx, _ := c.Module.FuncIndexOfImport(slot)

	key := imp.Key()
	imp.Name = fn.Name
	imp.TypeIdx = c.Module.AddType(fn.Core)
	if r.sites == nil {
		r.sites = make(map[uint32]logSite)
	}
	r.sites[idx] = logSite{key: key, level: level}
	r.mark(Rewritten, key)

	// Tables and exports hand the function out with its new type.
	for _, e := range c.Module.Exports {
		if e.Kind == wasm.KindFunc && e.Index == idx {
			r.mark(NotCompatible, "export of "+key)
		}
	}
	elems, err := c.Module.ElementFuncs()
	if err != nil {
		r.mark(NotCompatible, fmt.Sprintf("unreadable element section (%v)", err))
		return
	}
	if slices.Contains(elems, idx) {
		r.mark(NotCompatible, "indirect reference to "+key)
	}
}

func (r *LegacyLogRewriter) Instruction(c *Context, ins wasm.Instruction) ([]wasm.Instruction, bool) {
	if !ins.RefersToFunc() {
		return nil, false
	}
	site, ok := r.sites[ins.Index]
	if !ok {
		return nil, false
	}
	if ins.Opcode == wasm.OpRefFunc {
		// The callee's type changed; an indirect call through the table
		// would trap.
		r.mark(NotCompatible, "indirect reference to "+site.key)
		return nil, false
	}
	return []wasm.Instruction{wasm.I32Const(site.level), ins}, true
}
