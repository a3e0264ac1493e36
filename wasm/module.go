package wasm

import "strings"

// Module is a parsed core WebAssembly module.
//
// Only the sections modhost inspects or rewrites are decoded; the rest are
// kept as raw payloads and re-emitted unchanged by Encode. Function bodies are
// stored undecoded; use DecodeInstructions on FuncBody.Code when needed.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []uint32 // type indices for defined functions
	Exports []Export
	Code    []FuncBody
	Customs []CustomSection

	sections []section
}

// section records the original order of sections. Decoded sections are
// re-encoded from the model; others use raw.
type section struct {
	raw    []byte
	custom int // index into Customs for custom sections
	id     byte
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

func (f FuncType) String() string {
	return "(" + joinTypes(f.Params) + ") -> (" + joinTypes(f.Results) + ")"
}

func joinTypes(ts []ValType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Import is one entry of the import section. For function imports TypeIdx is
// the signature; for other kinds Desc holds the raw descriptor payload.
type Import struct {
	Module  string
	Name    string
	Desc    []byte
	TypeIdx uint32
	Kind    byte
}

// Key returns "module.name".
func (i Import) Key() string {
	return i.Module + "." + i.Name
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Index uint32
	Kind  byte
}

// FuncBody is one code section entry. Locals holds the encoded locals vector,
// Code the instruction stream including the final end.
type FuncBody struct {
	Locals []byte
	Code   []byte
}

// CustomSection is a named custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns how many function indices are taken by imports.
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// FuncImport returns the import slot backing function index idx, if idx
// refers to an imported function.
func (m *Module) FuncImport(idx uint32) (int, bool) {
	n := uint32(0)
	for i, imp := range m.Imports {
		if imp.Kind != KindFunc {
			continue
		}
		if n == idx {
			return i, true
		}
		n++
	}
	return 0, false
}

// FuncIndexOfImport returns the function index of import slot i.
func (m *Module) FuncIndexOfImport(slot int) (uint32, bool) {
	if slot < 0 || slot >= len(m.Imports) || m.Imports[slot].Kind != KindFunc {
		return 0, false
	}
	n := uint32(0)
	for i := 0; i < slot; i++ {
		if m.Imports[i].Kind == KindFunc {
			n++
		}
	}
	return n, true
}

// TypeOf returns the signature of an import slot's function.
func (m *Module) TypeOf(imp Import) (FuncType, bool) {
	if imp.Kind != KindFunc || int(imp.TypeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[imp.TypeIdx], true
}

// AddType returns the index of an identical existing type, appending it if absent.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	m.ensureSection(SectionType)
	return uint32(len(m.Types) - 1)
}

// ExportByName finds an export.
func (m *Module) ExportByName(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// Custom returns the first custom section with the given name.
func (m *Module) Custom(name string) *CustomSection {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			return &m.Customs[i]
		}
	}
	return nil
}

// ImportModules returns distinct import module names in first-seen order.
func (m *Module) ImportModules() []string {
	seen := make(map[string]bool)
	var out []string
	for _, imp := range m.Imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			out = append(out, imp.Module)
		}
	}
	return out
}

// sectionRank is the canonical section order, which differs from section IDs.
func sectionRank(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 100
	}
}

// ensureSection inserts an empty placeholder for a model-backed section so
// Encode emits it.
func (m *Module) ensureSection(id byte) {
	for _, s := range m.sections {
		if s.id == id {
			return
		}
	}
	rank := sectionRank(id)
	at := len(m.sections)
	for i, s := range m.sections {
		if s.id != SectionCustom && sectionRank(s.id) > rank {
			at = i
			break
		}
	}
	m.sections = append(m.sections, section{})
	copy(m.sections[at+1:], m.sections[at:])
	m.sections[at] = section{id: id}
}
