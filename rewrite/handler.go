package rewrite

import (
	"slices"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/wasm"
)

// HandlerKind is the closed set of handler variants.
type HandlerKind int

const (
	// RewriteImport handlers edit import entries in place.
	RewriteImport HandlerKind = iota
	// RewriteInstruction handlers replace instructions.
	RewriteInstruction
	// Detect handlers only raise flags. Replacements they return are ignored.
	Detect
)

func (k HandlerKind) String() string {
	switch k {
	case RewriteImport:
		return "RewriteImport"
	case RewriteInstruction:
		return "RewriteInstruction"
	default:
		return "Detect"
	}
}

// Handler inspects a binary's imports and instructions.
//
// Handlers keep the flags and phrases they raised during one scan; the
// pipeline calls Reset before each binary.
type Handler interface {
	Kind() HandlerKind
	// DefaultPhrase describes the handler's findings when it raised no
	// phrases of its own.
	DefaultPhrase() string
	Reset()
	Flags() []Outcome
	// Phrases returns the phrases raised with o.
	Phrases(o Outcome) []string

	// Import visits import slot of c.Module.
	Import(c *Context, slot int)

	// Instruction visits one instruction of the function body c.Func. When it
	// returns true the instruction is replaced by the returned sequence. The
	// replacement is not visited again by the same handler; the last
	// instruction of it is offered to the remaining handlers.
	Instruction(c *Context, ins wasm.Instruction) ([]wasm.Instruction, bool)
}

// base implements the bookkeeping shared by every handler.
type base struct {
	phrase  string
	flags   []Outcome
	phrases map[Outcome][]string
	kind    HandlerKind
}

func (b *base) Kind() HandlerKind          { return b.kind }
func (b *base) DefaultPhrase() string      { return b.phrase }
func (b *base) Flags() []Outcome           { return b.flags }
func (b *base) Phrases(o Outcome) []string { return b.phrases[o] }

func (b *base) Reset() {
	b.flags = nil
	b.phrases = nil
}

func (b *base) Import(*Context, int) {}

func (b *base) Instruction(*Context, wasm.Instruction) ([]wasm.Instruction, bool) {
	return nil, false
}

// mark raises o with an optional phrase. Duplicates are collapsed.
func (b *base) mark(o Outcome, phrase string) {
	if !slices.Contains(b.flags, o) {
		b.flags = append(b.flags, o)
	}
	if phrase == "" || slices.Contains(b.phrases[o], phrase) {
		return
	}
	if b.phrases == nil {
		b.phrases = make(map[Outcome][]string)
	}
	b.phrases[o] = append(b.phrases[o], phrase)
}

// Context is the state of one binary scan.
type Context struct {
	Module  *wasm.Module
	HostAPI *engine.HostAPI
	File    string
	// Func is the index of the defined function being scanned, or -1 while
	// imports are visited.
	Func int

	funcSlots  []int
	signatures map[string][]string
	sigErr     error
}

// NewContext prepares a scan of m.
func NewContext(m *wasm.Module, hostAPI *engine.HostAPI, file string) *Context {
	c := &Context{Module: m, HostAPI: hostAPI, File: file, Func: -1}
	for slot, imp := range m.Imports {
		if imp.Kind == wasm.KindFunc {
			c.funcSlots = append(c.funcSlots, slot)
		}
	}
	return c
}

// CalledImport returns the import slot targeted by a call, return_call or
// ref.func instruction.
func (c *Context) CalledImport(ins wasm.Instruction) (int, bool) {
	if !ins.RefersToFunc() || int(ins.Index) >= len(c.funcSlots) {
		return 0, false
	}
	return c.funcSlots[ins.Index], true
}

// Signatures returns the host types the binary declares for module.field in
// its modhost.signatures section.
func (c *Context) Signatures(module, field string) ([]string, error) {
	if c.signatures == nil && c.sigErr == nil {
		c.signatures = make(map[string][]string)
		refs, err := c.Module.Signatures()
		if err != nil {
			c.sigErr = err
		}
		for _, ref := range refs {
			key := ref.Module + "." + ref.Field
			c.signatures[key] = append(c.signatures[key], ref.Signature)
		}
	}
	return c.signatures[module+"."+field], c.sigErr
}
