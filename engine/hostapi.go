package engine

import (
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/modhost/wasm"
)

// HostFunc is one function the host exports to mods.
type HostFunc struct {
	// Fn implements the function against the core signature.
	Fn   api.GoModuleFunction
	Name string
	// Signature is the host-level type the function exchanges, written with
	// named type parameters, e.g. "Dictionary<TKey,Holder<TValue>>". Mods
	// declare the type they expect in their modhost.signatures section.
	Signature string
	// TypeParams lists Signature's type parameters in declaration order.
	TypeParams []string
	Params     []wit.Type
	Results    []wit.Type
	// Core is the lowered signature. NewFunc derives it from Params and
	// Results.
	Core wasm.FuncType
}

// NewFunc builds a host function from its WIT signature.
func NewFunc(name string, params, results []wit.Type, fn api.GoModuleFunction) HostFunc {
	return HostFunc{
		Name:    name,
		Params:  params,
		Results: results,
		Core:    CoreSignature(params, results),
		Fn:      fn,
	}
}

// WithSignature sets the host-level type and its type parameters.
func (f HostFunc) WithSignature(sig string, typeParams ...string) HostFunc {
	f.Signature = sig
	f.TypeParams = typeParams
	return f
}

// String renders the function's WIT signature.
func (f HostFunc) String() string {
	s := f.Name + ": func("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += TypeName(p)
	}
	s += ")"
	if len(f.Results) > 0 {
		s += " -> "
		for i, r := range f.Results {
			if i > 0 {
				s += ", "
			}
			s += TypeName(r)
		}
	}
	return s
}

// HostModule is a named group of host functions, instantiated as one wazero
// host module.
type HostModule struct {
	Name  string
	Funcs []HostFunc
	// External modules are instantiated by someone else (WASI); the catalogue
	// only describes them.
	External bool
}

// HostAPI is the catalogue of modules the host provides. Imports naming one
// of these modules are validated against it.
type HostAPI struct {
	modules map[string]*HostModule
	order   []string
}

// NewHostAPI builds a catalogue. Later modules with the same name replace
// earlier ones.
func NewHostAPI(modules ...HostModule) *HostAPI {
	h := &HostAPI{modules: make(map[string]*HostModule)}
	for _, m := range modules {
		h.Add(m)
	}
	return h
}

// Add registers a module.
func (h *HostAPI) Add(m HostModule) {
	if _, ok := h.modules[m.Name]; !ok {
		h.order = append(h.order, m.Name)
	}
	mod := m
	h.modules[m.Name] = &mod
}

// Validates reports whether imports of module are checked against the
// catalogue.
func (h *HostAPI) Validates(module string) bool {
	if h == nil {
		return false
	}
	_, ok := h.modules[module]
	return ok
}

// Module returns a registered module.
func (h *HostAPI) Module(name string) (*HostModule, bool) {
	if h == nil {
		return nil, false
	}
	m, ok := h.modules[name]
	return m, ok
}

// Modules returns every module in registration order.
func (h *HostAPI) Modules() []*HostModule {
	out := make([]*HostModule, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.modules[name])
	}
	return out
}

// Lookup finds a function.
func (h *HostAPI) Lookup(module, name string) (*HostFunc, bool) {
	m, ok := h.Module(module)
	if !ok {
		return nil, false
	}
	for i := range m.Funcs {
		if m.Funcs[i].Name == name {
			return &m.Funcs[i], true
		}
	}
	return nil, false
}

// ExportNames returns the sorted function names of module.
func (h *HostAPI) ExportNames(module string) []string {
	m, ok := h.Module(module)
	if !ok {
		return nil
	}
	out := make([]string, len(m.Funcs))
	for i, f := range m.Funcs {
		out[i] = f.Name
	}
	sort.Strings(out)
	return out
}

// DescribeModule builds an external catalogue entry from an instantiated
// module's exported function definitions.
func DescribeModule(mod api.Module) HostModule {
	defs := mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	hm := HostModule{Name: mod.Name(), External: true}
	for _, name := range names {
		def := defs[name]
		hm.Funcs = append(hm.Funcs, HostFunc{
			Name: name,
			Core: wasm.FuncType{Params: toValTypes(def.ParamTypes()), Results: toValTypes(def.ResultTypes())},
		})
	}
	return hm
}

func toValTypes(ts []api.ValueType) []wasm.ValType {
	out := make([]wasm.ValType, len(ts))
	for i, t := range ts {
		out[i] = wasm.ValType(t)
	}
	return out
}

func toValueTypes(ts []wasm.ValType) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		out[i] = api.ValueType(t)
	}
	return out
}
