package engine

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/modhost/wasm"
)

// MaxFlatParams and MaxFlatResults are the canonical ABI limits past which
// values are passed through linear memory.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Flatten lowers a WIT type to its core value types.
func Flatten(t wit.Type) []wasm.ValType {
	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []wasm.ValType{wasm.ValI32}
	case wit.U64, wit.S64:
		return []wasm.ValType{wasm.ValI64}
	case wit.F32:
		return []wasm.ValType{wasm.ValF32}
	case wit.F64:
		return []wasm.ValType{wasm.ValF64}
	case wit.String:
		return []wasm.ValType{wasm.ValI32, wasm.ValI32}
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.List:
			return []wasm.ValType{wasm.ValI32, wasm.ValI32}
		case *wit.Record:
			var out []wasm.ValType
			for _, f := range kind.Fields {
				out = append(out, Flatten(f.Type)...)
			}
			return out
		case *wit.Tuple:
			var out []wasm.ValType
			for _, elem := range kind.Types {
				out = append(out, Flatten(elem)...)
			}
			return out
		case *wit.Option:
			return append([]wasm.ValType{wasm.ValI32}, Flatten(kind.Type)...)
		case *wit.Result:
			var ok, errFlat []wasm.ValType
			if kind.OK != nil {
				ok = Flatten(kind.OK)
			}
			if kind.Err != nil {
				errFlat = Flatten(kind.Err)
			}
			return append([]wasm.ValType{wasm.ValI32}, join(ok, errFlat)...)
		case *wit.Enum, *wit.Flags:
			return []wasm.ValType{wasm.ValI32}
		case wit.Type:
			return Flatten(kind)
		}
	}
	return []wasm.ValType{wasm.ValI32}
}

// join merges two variant payloads slot by slot. Slots that disagree widen to
// i64, as the canonical ABI does.
func join(a, b []wasm.ValType) []wasm.ValType {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := append([]wasm.ValType(nil), a...)
	for i, t := range b {
		if out[i] != t {
			out[i] = wasm.ValI64
		}
	}
	return out
}

// CoreSignature lowers a WIT function signature. Results that don't fit
// MaxFlatResults are returned through a pointer passed as the last parameter;
// params past MaxFlatParams are passed as one pointer.
func CoreSignature(params, results []wit.Type) wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range params {
		ft.Params = append(ft.Params, Flatten(p)...)
	}
	if len(ft.Params) > MaxFlatParams {
		ft.Params = []wasm.ValType{wasm.ValI32}
	}

	var flat []wasm.ValType
	for _, r := range results {
		flat = append(flat, Flatten(r)...)
	}
	if usesRetptr(flat) {
		ft.Params = append(ft.Params, wasm.ValI32)
	} else {
		ft.Results = flat
	}
	return ft
}

func usesRetptr(flatResults []wasm.ValType) bool {
	return len(flatResults) > MaxFlatResults
}

// TypeName renders a WIT type the way it is written in WIT.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch kind := v.Kind.(type) {
		case *wit.List:
			return "list<" + TypeName(kind.Type) + ">"
		case *wit.Option:
			return "option<" + TypeName(kind.Type) + ">"
		case *wit.Record:
			return "record"
		}
		return "typedef"
	default:
		return "unknown"
	}
}
