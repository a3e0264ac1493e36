package wasm

import (
	"fmt"

	"github.com/wippyai/modhost/wasm/internal/binary"
)

// Encode serializes the module. Sections that are not modeled are written
// back byte for byte, in their original position.
func (m *Module) Encode() ([]byte, error) {
	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code counts differ (%d != %d)", len(m.Funcs), len(m.Code))
	}
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	for _, s := range m.sections {
		var payload []byte
		switch s.id {
		case SectionCustom:
			if s.custom < 0 || s.custom >= len(m.Customs) {
				return nil, fmt.Errorf("custom section index %d out of range", s.custom)
			}
			c := m.Customs[s.custom]
			pw := binary.NewWriter()
			pw.WriteName(c.Name)
			pw.WriteBytes(c.Data)
			payload = pw.Bytes()
		case SectionType:
			payload = m.encodeTypes()
		case SectionImport:
			payload = m.encodeImports()
		case SectionFunction:
			payload = m.encodeFuncs()
		case SectionExport:
			payload = m.encodeExports()
		case SectionCode:
			payload = m.encodeCode()
		default:
			payload = s.raw
		}
		w.WriteSection(s.id, payload)
	}
	return w.Bytes(), nil
}

// AddCustom appends a custom section at the end of the module.
func (m *Module) AddCustom(name string, data []byte) {
	m.sections = append(m.sections, section{id: SectionCustom, custom: len(m.Customs)})
	m.Customs = append(m.Customs, CustomSection{Name: name, Data: data})
}

func (m *Module) encodeTypes() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.Types)))
	for _, t := range m.Types {
		w.Byte(funcTypeForm)
		writeValTypes(w, t.Params)
		writeValTypes(w, t.Results)
	}
	return w.Bytes()
}

func writeValTypes(w *binary.Writer, ts []ValType) {
	w.WriteU32(uint32(len(ts)))
	for _, t := range ts {
		w.Byte(byte(t))
	}
}

func (m *Module) encodeImports() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.WriteName(imp.Module)
		w.WriteName(imp.Name)
		w.Byte(imp.Kind)
		if imp.Kind == KindFunc {
			w.WriteU32(imp.TypeIdx)
		} else {
			w.WriteBytes(imp.Desc)
		}
	}
	return w.Bytes()
}

func (m *Module) encodeFuncs() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.Funcs)))
	for _, idx := range m.Funcs {
		w.WriteU32(idx)
	}
	return w.Bytes()
}

func (m *Module) encodeExports() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.Exports)))
	for _, e := range m.Exports {
		w.WriteName(e.Name)
		w.Byte(e.Kind)
		w.WriteU32(e.Index)
	}
	return w.Bytes()
}

func (m *Module) encodeCode() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.Code)))
	for _, body := range m.Code {
		locals := body.Locals
		if len(locals) == 0 {
			locals = []byte{0x00}
		}
		w.WriteU32(uint32(len(locals) + len(body.Code)))
		w.WriteBytes(locals)
		w.WriteBytes(body.Code)
	}
	return w.Bytes()
}
