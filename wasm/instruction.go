package wasm

import (
	"fmt"

	"github.com/wippyai/modhost/wasm/internal/binary"
)

// Instruction is one decoded instruction. Immediates are kept raw except for
// the function index of call, return_call and ref.func, which is exposed as
// Index so rewriters can retarget it.
type Instruction struct {
	Imm    []byte
	Sub    uint32 // sub-opcode for 0xFC and 0xFD prefixed instructions
	Index  uint32
	Opcode byte
}

// RefersToFunc reports whether the instruction names a function by index.
func (i Instruction) RefersToFunc() bool {
	return i.Opcode == OpCall || i.Opcode == OpReturnCall || i.Opcode == OpRefFunc
}

func (i Instruction) String() string {
	switch {
	case i.RefersToFunc():
		return fmt.Sprintf("0x%02x %d", i.Opcode, i.Index)
	case i.Opcode == OpPrefixMisc || i.Opcode == OpPrefixSIMD:
		return fmt.Sprintf("0x%02x.%d", i.Opcode, i.Sub)
	default:
		return fmt.Sprintf("0x%02x", i.Opcode)
	}
}

// I32Const builds an i32.const instruction.
func I32Const(v int32) Instruction {
	w := binary.NewWriter()
	w.WriteS32(v)
	return Instruction{Opcode: OpI32Const, Imm: w.Bytes()}
}

// Call builds a call instruction.
func Call(idx uint32) Instruction {
	return Instruction{Opcode: OpCall, Index: idx}
}

// DecodeInstructions splits a function body's instruction stream.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code, 0)
	var out []Instruction
	for r.Len() > 0 {
		op, _ := r.ReadByte()
		ins := Instruction{Opcode: op}
		var err error
		switch op {
		case OpCall, OpReturnCall, OpRefFunc:
			ins.Index, err = r.ReadU32()
		case OpPrefixMisc, OpPrefixSIMD:
			if ins.Sub, err = r.ReadU32(); err == nil {
				start := r.Offset()
				if op == OpPrefixMisc {
					err = skipMiscImmediate(r, ins.Sub)
				} else {
					err = skipSIMDImmediate(r, ins.Sub)
				}
				ins.Imm = r.Slice(start, r.Offset())
			}
		default:
			start := r.Offset()
			err = skipImmediate(r, op)
			ins.Imm = r.Slice(start, r.Offset())
		}
		if err != nil {
			return nil, r.WrapError("instruction", err)
		}
		out = append(out, ins)
	}
	return out, nil
}

// EncodeInstructions is the inverse of DecodeInstructions.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for _, ins := range instrs {
		w.Byte(ins.Opcode)
		switch {
		case ins.RefersToFunc():
			w.WriteU32(ins.Index)
		case ins.Opcode == OpPrefixMisc || ins.Opcode == OpPrefixSIMD:
			w.WriteU32(ins.Sub)
			w.WriteBytes(ins.Imm)
		default:
			w.WriteBytes(ins.Imm)
		}
	}
	return w.Bytes()
}

func skipImmediate(r *binary.Reader, op byte) error {
	switch {
	case op == OpBlock || op == OpLoop || op == OpIf:
		return skipBlockType(r)
	case op == OpBr || op == OpBrIf:
		_, err := r.ReadU32()
		return err
	case op == OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i <= n; i++ {
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		}
		return nil
	case op == OpCallIndirect || op == OpReturnCallIndirect:
		if _, err := r.ReadU32(); err != nil {
			return err
		}
		_, err := r.ReadU32()
		return err
	case op == OpSelectType:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		return r.Skip(int(n))
	case op >= OpLocalGet && op <= OpTableSet:
		_, err := r.ReadU32()
		return err
	case op >= OpI32Load && op <= OpI64Store32:
		return skipMemArg(r)
	case op == OpMemorySize || op == OpMemoryGrow:
		_, err := r.ReadU32()
		return err
	case op == OpI32Const:
		_, err := r.ReadS32()
		return err
	case op == OpI64Const:
		_, err := r.ReadS64()
		return err
	case op == OpF32Const:
		return r.Skip(4)
	case op == OpF64Const:
		return r.Skip(8)
	case op == OpRefNull:
		_, err := r.ReadS33()
		return err
	case op >= OpI32Eqz && op <= OpI64Extend32,
		op == OpUnreachable, op == OpNop, op == OpElse, op == OpEnd,
		op == OpReturn, op == OpDrop, op == OpSelect, op == OpRefIsNull:
		return nil
	default:
		return fmt.Errorf("unsupported opcode 0x%02x", op)
	}
}

func skipBlockType(r *binary.Reader) error {
	b, err := r.PeekByte()
	if err != nil {
		return err
	}
	if b == blockTypeEmpty || validValType(b) {
		_, err = r.ReadByte()
		return err
	}
	_, err = r.ReadS33()
	return err
}

func skipMemArg(r *binary.Reader) error {
	align, err := r.ReadU32()
	if err != nil {
		return err
	}
	if align&0x40 != 0 {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	_, err = r.ReadU64()
	return err
}

func skipMiscImmediate(r *binary.Reader, sub uint32) error {
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7:
		return nil
	case 8, 10, 12, 14:
		if _, err := r.ReadU32(); err != nil {
			return err
		}
		_, err := r.ReadU32()
		return err
	case 9, 11, 13, 15, 16, 17:
		_, err := r.ReadU32()
		return err
	default:
		return fmt.Errorf("unsupported opcode 0xfc %d", sub)
	}
}

func skipSIMDImmediate(r *binary.Reader, sub uint32) error {
	switch {
	case sub <= 11, sub == 92, sub == 93:
		return skipMemArg(r)
	case sub == 12, sub == 13:
		return r.Skip(16)
	case sub >= 21 && sub <= 34:
		return r.Skip(1)
	case sub >= 84 && sub <= 91:
		if err := skipMemArg(r); err != nil {
			return err
		}
		return r.Skip(1)
	case sub <= 0x113:
		return nil
	default:
		return fmt.Errorf("unsupported opcode 0xfd %d", sub)
	}
}
