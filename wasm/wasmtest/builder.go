// Package wasmtest builds small core WebAssembly binaries for tests.
package wasmtest

import (
	"github.com/wippyai/modhost/wasm"
	"github.com/wippyai/modhost/wasm/internal/binary"
)

// Builder assembles a module. Imports must be added before functions so the
// returned function indices stay valid.
type Builder struct {
	types   []wasm.FuncType
	imports []wasm.Import
	funcs   []uint32
	code    [][]byte
	exports []wasm.Export
	customs []wasm.CustomSection
	elems   []uint32
	memory  *uint32
	nImport uint32
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// Type adds (or reuses) a signature and returns its index.
func (b *Builder) Type(params, results []wasm.ValType) uint32 {
	ft := wasm.FuncType{Params: params, Results: results}
	for i, t := range b.types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, typeIdx uint32) uint32 {
	b.imports = append(b.imports, wasm.Import{Module: module, Name: name, Kind: wasm.KindFunc, TypeIdx: typeIdx})
	b.nImport++
	return b.nImport - 1
}

// ImportMemory adds a memory import with the given minimum page count.
func (b *Builder) ImportMemory(module, name string, minPages uint32) {
	w := binary.NewWriter()
	w.Byte(0x00)
	w.WriteU32(minPages)
	b.imports = append(b.imports, wasm.Import{Module: module, Name: name, Kind: wasm.KindMemory, Desc: w.Bytes()})
}

// Memory defines a local memory.
func (b *Builder) Memory(minPages uint32) {
	b.memory = &minPages
}

// Func defines a function without locals. body must end with an end opcode;
// use Code to build one.
func (b *Builder) Func(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, typeIdx)
	b.code = append(b.code, body)
	return b.nImport + uint32(len(b.funcs)-1)
}

// Elem places functions in a funcref table, starting at slot 0. The table is
// declared on first use.
func (b *Builder) Elem(funcs ...uint32) {
	b.elems = append(b.elems, funcs...)
}

// Export exports a function.
func (b *Builder) Export(name string, funcIdx uint32) {
	b.exports = append(b.exports, wasm.Export{Name: name, Kind: wasm.KindFunc, Index: funcIdx})
}

// Custom appends a custom section.
func (b *Builder) Custom(name string, data []byte) {
	b.customs = append(b.customs, wasm.CustomSection{Name: name, Data: data})
}

// Dylink adds a dylink.0 section with a needed list.
func (b *Builder) Dylink(needed ...string) {
	d := &wasm.Dylink{}
	d.SetNeeded(needed)
	b.Custom(wasm.CustomDylink, d.Encode())
}

// Code encodes instructions and appends the final end.
func Code(instrs ...wasm.Instruction) []byte {
	out := wasm.EncodeInstructions(instrs)
	return append(out, wasm.OpEnd)
}

// Op builds an instruction without immediates.
func Op(opcode byte) wasm.Instruction {
	return wasm.Instruction{Opcode: opcode}
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(wasm.Magic)
	w.WriteU32LE(wasm.Version)

	// dylink.0 must come first by convention
	for _, c := range b.customs {
		if c.Name == wasm.CustomDylink {
			writeCustom(w, c)
		}
	}

	if len(b.types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			s.Byte(0x60)
			writeVals(s, t.Params)
			writeVals(s, t.Results)
		}
		w.WriteSection(wasm.SectionType, s.Bytes())
	}
	if len(b.imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			s.WriteName(imp.Module)
			s.WriteName(imp.Name)
			s.Byte(imp.Kind)
			if imp.Kind == wasm.KindFunc {
				s.WriteU32(imp.TypeIdx)
			} else {
				s.WriteBytes(imp.Desc)
			}
		}
		w.WriteSection(wasm.SectionImport, s.Bytes())
	}
	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.WriteU32(f)
		}
		w.WriteSection(wasm.SectionFunction, s.Bytes())
	}
	if len(b.elems) > 0 {
		s := binary.NewWriter()
		s.WriteU32(1)
		s.Byte(byte(wasm.ValFuncRef))
		s.Byte(0x00)
		s.WriteU32(uint32(len(b.elems)))
		w.WriteSection(wasm.SectionTable, s.Bytes())
	}
	if b.memory != nil {
		s := binary.NewWriter()
		s.WriteU32(1)
		s.Byte(0x00)
		s.WriteU32(*b.memory)
		w.WriteSection(wasm.SectionMemory, s.Bytes())
	}
	if len(b.exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.exports)))
		for _, e := range b.exports {
			s.WriteName(e.Name)
			s.Byte(e.Kind)
			s.WriteU32(e.Index)
		}
		w.WriteSection(wasm.SectionExport, s.Bytes())
	}
	if len(b.elems) > 0 {
		s := binary.NewWriter()
		s.WriteU32(1)
		s.WriteU32(0)
		s.Byte(0x41) // i32.const 0
		s.Byte(0x00)
		s.Byte(wasm.OpEnd)
		s.WriteU32(uint32(len(b.elems)))
		for _, f := range b.elems {
			s.WriteU32(f)
		}
		w.WriteSection(wasm.SectionElement, s.Bytes())
	}
	if len(b.code) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.code)))
		for _, body := range b.code {
			s.WriteU32(uint32(len(body) + 1))
			s.Byte(0x00) // no locals
			s.WriteBytes(body)
		}
		w.WriteSection(wasm.SectionCode, s.Bytes())
	}
	for _, c := range b.customs {
		if c.Name != wasm.CustomDylink {
			writeCustom(w, c)
		}
	}
	return w.Bytes()
}

func writeCustom(w *binary.Writer, c wasm.CustomSection) {
	s := binary.NewWriter()
	s.WriteName(c.Name)
	s.WriteBytes(c.Data)
	w.WriteSection(wasm.SectionCustom, s.Bytes())
}

func writeVals(w *binary.Writer, vs []wasm.ValType) {
	w.WriteU32(uint32(len(vs)))
	for _, v := range vs {
		w.Byte(byte(v))
	}
}
