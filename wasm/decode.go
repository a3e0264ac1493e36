package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/modhost/wasm/internal/binary"
)

var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("unsupported wasm version")
)

// ParseError is returned for malformed binaries.
type ParseError = binary.ParseError

// ParseModule decodes a core WebAssembly binary. Function bodies are split
// but not decoded.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data, 0)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	lastRank := 0
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		if id != SectionCustom {
			rank := sectionRank(id)
			if rank == 100 {
				return nil, r.WrapError("section header", fmt.Errorf("unknown section id 0x%02x", id))
			}
			if rank <= lastRank {
				return nil, r.WrapError("section header", fmt.Errorf("section %d appears out of order", id))
			}
			lastRank = rank
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		start := r.Position()
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		s := section{id: id, raw: payload}
		sr := binary.NewReader(payload, start)
		switch id {
		case SectionCustom:
			name, err := sr.ReadName()
			if err != nil {
				return nil, sr.WrapError("custom section", err)
			}
			s.custom = len(m.Customs)
			m.Customs = append(m.Customs, CustomSection{Name: name, Data: sr.ReadRemaining()})
		case SectionType:
			err = parseTypeSection(sr, m)
		case SectionImport:
			err = parseImportSection(sr, m)
		case SectionFunction:
			err = parseFunctionSection(sr, m)
		case SectionExport:
			err = parseExportSection(sr, m)
		case SectionCode:
			err = parseCodeSection(sr, m)
		}
		if err != nil {
			return nil, err
		}
		if id != SectionCustom && isModelSection(id) && sr.Len() != 0 {
			return nil, sr.WrapError(sectionName(id), errors.New("trailing bytes in section"))
		}
		m.sections = append(m.sections, s)
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code section counts differ (%d != %d)", len(m.Funcs), len(m.Code))
	}
	return m, nil
}

func isModelSection(id byte) bool {
	switch id {
	case SectionType, SectionImport, SectionFunction, SectionExport, SectionCode:
		return true
	}
	return false
}

func sectionName(id byte) string {
	switch id {
	case SectionType:
		return "type section"
	case SectionImport:
		return "import section"
	case SectionFunction:
		return "function section"
	case SectionExport:
		return "export section"
	case SectionCode:
		return "code section"
	default:
		return fmt.Sprintf("section %d", id)
	}
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("type section", err)
	}
	if err := checkCount(r, count); err != nil {
		return r.WrapError("type section", err)
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return r.WrapError("type section", err)
		}
		if form != funcTypeForm {
			return r.WrapError("type section", fmt.Errorf("unsupported type form 0x%02x", form))
		}
		params, err := readValTypes(r)
		if err != nil {
			return r.WrapError("type section", err)
		}
		results, err := readValTypes(r)
		if err != nil {
			return r.WrapError("type section", err)
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

// checkCount rejects entry counts that could not fit in the remaining bytes.
// Every entry takes at least one byte.
func checkCount(r *binary.Reader, count uint32) error {
	if uint64(count) > uint64(r.Len()) {
		return fmt.Errorf("entry count %d exceeds section", count)
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("value type count %d exceeds section", n)
	}
	out := make([]ValType, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if !validValType(b) {
			return nil, fmt.Errorf("unsupported value type 0x%02x", b)
		}
		out[i] = ValType(b)
	}
	return out, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("import section", err)
	}
	if err := checkCount(r, count); err != nil {
		return r.WrapError("import section", err)
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.ReadName()
		if err != nil {
			return r.WrapError("import section", err)
		}
		name, err := r.ReadName()
		if err != nil {
			return r.WrapError("import section", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("import section", err)
		}
		imp := Import{Module: mod, Name: name, Kind: kind}
		if kind == KindFunc {
			if imp.TypeIdx, err = r.ReadU32(); err != nil {
				return r.WrapError("import section", err)
			}
		} else {
			start := r.Offset()
			if err := skipImportDesc(r, kind); err != nil {
				return r.WrapError("import section", err)
			}
			imp.Desc = r.Slice(start, r.Offset())
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func skipImportDesc(r *binary.Reader, kind byte) error {
	switch kind {
	case KindTable:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		return skipLimits(r)
	case KindMemory:
		return skipLimits(r)
	case KindGlobal:
		return r.Skip(2)
	case KindTag:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		_, err := r.ReadU32()
		return err
	default:
		return fmt.Errorf("unknown import kind %d", kind)
	}
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := r.ReadU64(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if _, err := r.ReadU64(); err != nil {
			return err
		}
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("function section", err)
	}
	if err := checkCount(r, count); err != nil {
		return r.WrapError("function section", err)
	}
	m.Funcs = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("function section", err)
		}
		m.Funcs = append(m.Funcs, idx)
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("export section", err)
	}
	if err := checkCount(r, count); err != nil {
		return r.WrapError("export section", err)
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return r.WrapError("export section", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("export section", err)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("export section", err)
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("code section", err)
	}
	if err := checkCount(r, count); err != nil {
		return r.WrapError("code section", err)
	}
	m.Code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return r.WrapError("code section", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return r.WrapError("code section", err)
		}
		br := binary.NewReader(body, 0)
		groups, err := br.ReadU32()
		if err != nil {
			return r.WrapError("code section", err)
		}
		for g := uint32(0); g < groups; g++ {
			if _, err := br.ReadU32(); err != nil {
				return r.WrapError("code section", err)
			}
			t, err := br.ReadByte()
			if err != nil {
				return r.WrapError("code section", err)
			}
			if !validValType(t) {
				return r.WrapError("code section", fmt.Errorf("unsupported local type 0x%02x", t))
			}
		}
		split := br.Offset()
		m.Code = append(m.Code, FuncBody{Locals: body[:split], Code: body[split:]})
	}
	return nil
}
