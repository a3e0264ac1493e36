package loader

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/linker"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/wasm"
	"github.com/wippyai/modhost/wasm/wasmtest"
)

func write(t *testing.T, dir, name string, b *wasmtest.Builder) string {
	t.Helper()
	path := filepath.Join(dir, name+".wasm")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func library(exports ...string) *wasmtest.Builder {
	b := wasmtest.New()
	void := b.Type(nil, nil)
	for _, e := range exports {
		b.Export(e, b.Func(void, wasmtest.Code()))
	}
	return b
}

func names(bins []*Binary) []string {
	out := make([]string, len(bins))
	for i, b := range bins {
		out[i] = b.Name + ":" + b.Status.String()
	}
	return out
}

func TestExpandOrder(t *testing.T) {
	dir := t.TempDir()

	base := library("b")
	write(t, dir, "base", base)
	write(t, dir, "extra", library("x"))

	lib := wasmtest.New()
	void := lib.Type(nil, nil)
	lib.ImportFunc("base", "b", void)
	lib.ImportFunc("main", "cycle", void)
	lib.Export("helper", lib.Func(void, wasmtest.Code()))
	write(t, dir, "lib", lib)

	main := wasmtest.New()
	v := main.Type(nil, nil)
	main.ImportFunc("lib", "helper", v)
	main.ImportFunc(engine.ModuleHost, "now_ms", main.Type(nil, []wasm.ValType{wasm.ValI64}))
	main.Dylink("extra.wasm", "missing.wasm")
	path := write(t, dir, "main", main)

	tests := []struct {
		name     string
		resident []string
		want     []string
	}{
		{"fresh", nil, []string{"base:Okay", "main:AlreadyLoaded", "lib:Okay", "extra:Okay", "main:Okay"}},
		{"base resident", []string{"base"}, []string{"base:AlreadyLoaded", "main:AlreadyLoaded", "lib:Okay", "extra:Okay", "main:Okay"}},
		{"root resident", []string{"main"}, []string{"main:AlreadyLoaded"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := linker.NewResolver(nil)
			got := names(Expand(NewContext(tt.resident, r), path))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expand = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	b := wasmtest.New()
	void := b.Type(nil, nil)
	b.ImportFunc("a", "x", void)
	b.ImportFunc("b", "y", void)
	b.ImportFunc("a", "z", void)
	b.Dylink("c.wasm", "b.wasm")
	m, err := wasm.ParseModule(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := References(m), []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}
}

func newLoader(t *testing.T, opts Options) (*Loader, *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	e, err := engine.New(ctx, nil, engine.DefaultHostAPI(engine.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	l := New(e, opts)
	t.Cleanup(func() {
		if err := l.Close(ctx); err != nil {
			t.Errorf("Loader.Close: %v", err)
		}
		e.Close(ctx)
	})
	return l, e
}

func record(dir string) *mod.Record {
	return mod.NewRecord("Test Mod", filepath.Dir(dir), dir, nil, nil, false)
}

func detail(t *testing.T, err error) *errors.Error {
	t.Helper()
	r, ok := errors.AsRecoverable(err)
	if !ok {
		t.Fatalf("error %v is not recoverable", err)
	}
	return r.Err
}

func TestLoadGraph(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	write(t, dir, "shared", library("helper"))

	b := wasmtest.New()
	void := b.Type(nil, nil)
	b.ImportFunc("shared", "helper", void)
	b.Export("entry", b.Func(void, wasmtest.Code()))
	path := write(t, dir, "main", b)

	l, e := newLoader(t, Options{RewriteMods: true})
	inst, err := l.Load(ctx, record(dir), path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inst.Name() != "main" || inst.ExportedFunction("entry") == nil {
		t.Errorf("root instance = %s", inst.Name())
	}
	if e.Module("shared") == nil {
		t.Error("dependency binary not admitted")
	}

	// A second copy of the same binary name is rejected.
	other := t.TempDir()
	copyPath := write(t, other, "main", library("entry"))
	_, err = l.Load(ctx, record(other), copyPath, false)
	want := "Could not load '" + copyPath + "' because it was already loaded. Do you have two copies of this mod?"
	if d := detail(t, err); d.Kind != errors.KindDuplicate || d.Detail != want {
		t.Errorf("error = %v", d)
	}
}

func TestLoadMissingAndInvalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, _ := newLoader(t, Options{})

	missing := filepath.Join(dir, "gone.wasm")
	_, err := l.Load(ctx, record(dir), missing, false)
	if d := detail(t, err); d.Detail != "Could not load '"+missing+"' because it doesn't exist." {
		t.Errorf("Detail = %q", d.Detail)
	}

	junk := filepath.Join(dir, "junk.wasm")
	if err := os.WriteFile(junk, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = l.Load(ctx, record(dir), junk, false)
	d := detail(t, err)
	if d.Detail != "Could not load '"+junk+"'." || d.Phase != errors.PhaseLoad {
		t.Errorf("error = %v", d)
	}
	if cause, ok := d.Cause.(*errors.Error); !ok || cause.Phase != errors.PhaseDecode || cause.Kind != errors.KindInvalidData {
		t.Errorf("Cause = %v, want a decode error", d.Cause)
	}
}

func TestLoadBrokenReference(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := wasmtest.New()
	void := b.Type(nil, nil)
	b.ImportFunc("ghost", "haunt", void)
	b.Export("entry", b.Func(void, wasmtest.Code()))
	path := write(t, dir, "orphan", b)

	l, _ := newLoader(t, Options{})
	_, err := l.Load(ctx, record(dir), path, false)
	d := detail(t, err)
	if d.Kind != errors.KindBrokenReference || d.Phase != errors.PhaseRewrite {
		t.Errorf("error = %v", d)
	}
	if d.Detail != "reference to ghost.haunt (no such function)" {
		t.Errorf("Detail = %q", d.Detail)
	}

	_, err = l.Load(ctx, record(t.TempDir()), write(t, t.TempDir(), "orphan2", b), true)
	if d := detail(t, err); d.Kind != errors.KindInstantiation || d.Phase != errors.PhaseAdmit {
		t.Errorf("assume compatible error = %v", d)
	}
}

func TestLoadRewritesLegacyLog(t *testing.T) {
	build := func(dir string) string {
		b := wasmtest.New()
		logInfo := b.ImportFunc(engine.ModuleHost, "log_info", b.Type([]wasm.ValType{wasm.ValI32, wasm.ValI32}, nil))
		void := b.Type(nil, nil)
		b.Export("_initialize", b.Func(void, wasmtest.Code(wasm.I32Const(0), wasm.I32Const(0), wasm.Call(logInfo))))
		b.Export("entry", b.Func(void, wasmtest.Code()))
		return write(t, dir, "legacy", b)
	}
	ctx := context.Background()

	t.Run("rewrite enabled", func(t *testing.T) {
		dir := t.TempDir()
		l, _ := newLoader(t, Options{RewriteMods: true})
		if _, err := l.Load(ctx, record(dir), build(dir), false); err != nil {
			t.Fatalf("Load: %v", err)
		}
	})

	t.Run("rewrite disabled", func(t *testing.T) {
		dir := t.TempDir()
		l, _ := newLoader(t, Options{})
		_, err := l.Load(ctx, record(dir), build(dir), false)
		d := detail(t, err)
		if d.Kind != errors.KindIncompatible || d.Detail != "reference to modhost.log_info (no such function)" {
			t.Errorf("error = %v", d)
		}
	})
}

func TestLoadAssumeCompatible(t *testing.T) {
	ctx := context.Background()

	build := func(dir string) string {
		b := wasmtest.New()
		b.ImportFunc(engine.ModuleSerializer, "register_dictionary",
			b.Type([]wasm.ValType{wasm.ValI32, wasm.ValI32}, []wasm.ValType{wasm.ValI32}))
		b.Custom(wasm.CustomSignatures, wasm.EncodeSignatures([]wasm.SignatureRef{{
			Module:    engine.ModuleSerializer,
			Field:     "register_dictionary",
			Signature: "Dictionary<!1,Holder<!0>>",
		}}))
		b.Export("entry", b.Func(b.Type(nil, nil), wasmtest.Code()))
		return write(t, dir, "dict", b)
	}

	dir := t.TempDir()
	l, _ := newLoader(t, Options{})
	rec := record(dir)
	_, err := l.Load(ctx, rec, build(dir), false)
	if d := detail(t, err); d.Kind != errors.KindIncompatible {
		t.Errorf("Kind = %v, want %v", d.Kind, errors.KindIncompatible)
	}

	dir = t.TempDir()
	l, _ = newLoader(t, Options{})
	rec = record(dir)
	if _, err := l.Load(ctx, rec, build(dir), true); err != nil {
		t.Fatalf("Load with assume compatible: %v", err)
	}
	if !rec.HasWarnings(mod.WarningBrokenCodeLoaded | mod.WarningChangesSerializer) {
		t.Errorf("Warnings = %v", rec.Warnings())
	}
}
