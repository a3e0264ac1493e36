package wasm

import (
	"fmt"

	"github.com/wippyai/modhost/wasm/internal/binary"
)

// ElementFuncs returns every function index placed in a table by the element
// section, including ref.func entries of expression-encoded segments.
func (m *Module) ElementFuncs() ([]uint32, error) {
	var out []uint32
	for _, s := range m.sections {
		if s.id != SectionElement {
			continue
		}
		funcs, err := parseElementFuncs(binary.NewReader(s.raw, 0))
		if err != nil {
			return nil, err
		}
		out = append(out, funcs...)
	}
	return out, nil
}

func parseElementFuncs(r *binary.Reader) ([]uint32, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("element section", err)
	}
	if err := checkCount(r, count); err != nil {
		return nil, r.WrapError("element section", err)
	}
	var out []uint32
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("element section", err)
		}
		if flags > 7 {
			return nil, r.WrapError("element section", fmt.Errorf("unknown segment flags %d", flags))
		}
		if flags&0x02 != 0 && flags&0x01 == 0 {
			if _, err := r.ReadU32(); err != nil { // table index
				return nil, r.WrapError("element section", err)
			}
		}
		if flags&0x01 == 0 {
			if _, err := readConstExpr(r); err != nil { // offset
				return nil, r.WrapError("element section", err)
			}
		}
		if flags&0x03 != 0 {
			if _, err := r.ReadByte(); err != nil { // elemkind or reftype
				return nil, r.WrapError("element section", err)
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("element section", err)
		}
		if err := checkCount(r, n); err != nil {
			return nil, r.WrapError("element section", err)
		}
		for j := uint32(0); j < n; j++ {
			if flags&0x04 == 0 {
				idx, err := r.ReadU32()
				if err != nil {
					return nil, r.WrapError("element section", err)
				}
				out = append(out, idx)
				continue
			}
			refs, err := readConstExpr(r)
			if err != nil {
				return nil, r.WrapError("element section", err)
			}
			out = append(out, refs...)
		}
	}
	return out, nil
}

// readConstExpr skips a constant expression and returns the functions it
// references with ref.func.
func readConstExpr(r *binary.Reader) ([]uint32, error) {
	var refs []uint32
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case OpEnd:
			return refs, nil
		case 0x41: // i32.const
			_, err = r.ReadS32()
		case 0x42: // i64.const
			_, err = r.ReadS64()
		case 0x43:
			err = r.Skip(4)
		case 0x44:
			err = r.Skip(8)
		case 0x23: // global.get
			_, err = r.ReadU32()
		case 0xD0: // ref.null
			_, err = r.ReadByte()
		case OpRefFunc:
			var idx uint32
			if idx, err = r.ReadU32(); err == nil {
				refs = append(refs, idx)
			}
		case 0x6A, 0x6B, 0x6C, 0x7C, 0x7D, 0x7E: // extended const arithmetic
		default:
			return nil, fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
		}
		if err != nil {
			return nil, err
		}
	}
}
