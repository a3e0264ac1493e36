package linker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/modhost/wasm"
	"github.com/wippyai/modhost/wasm/wasmtest"
)

func exporting(t *testing.T, names ...string) *wasm.Module {
	t.Helper()
	b := wasmtest.New()
	void := b.Type(nil, nil)
	for _, n := range names {
		b.Export(n, b.Func(void, wasmtest.Code()))
	}
	m, err := wasm.ParseModule(b.Bytes())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	return m
}

func writeBinary(t *testing.T, dir, name string, export string) {
	t.Helper()
	b := wasmtest.New()
	void := b.Type(nil, nil)
	b.Export(export, b.Func(void, wasmtest.Code()))
	if err := os.WriteFile(filepath.Join(dir, name+".wasm"), b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolverPrefersKnownDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeBinary(t, dir, "lib", "from_disk")

	r := NewResolver(nil)
	r.AddSearchDirectory(dir)
	if !r.HasExport("lib", "from_disk", wasm.KindFunc) {
		t.Fatal("search directory binary not resolved")
	}

	r.Add("lib", exporting(t, "in_memory"))
	if r.HasExport("lib", "from_disk", wasm.KindFunc) {
		t.Error("on-disk definition should be shadowed")
	}
	if !r.HasExport("lib", "in_memory", wasm.KindFunc) {
		t.Error("in-memory definition not resolved")
	}
	if r.HasExport("lib", "in_memory", wasm.KindMemory) {
		t.Error("kind mismatch should not resolve")
	}
}

func TestResolverSearchDirectories(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeBinary(t, second, "util", "helper")
	if err := os.WriteFile(filepath.Join(first, "junk.wasm"), []byte("not wasm"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(nil)
	r.AddSearchDirectory(first)
	r.AddSearchDirectory(second)
	r.AddSearchDirectory(first)

	if _, ok := r.Resolve("util"); !ok {
		t.Error("util not found in second directory")
	}
	if _, ok := r.Resolve("junk"); ok {
		t.Error("unparsable binary should not resolve")
	}

	if _, ok := r.Resolve("missing"); ok {
		t.Error("missing binary resolved")
	}
}

func TestResolverFallsBackToRuntime(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	_, err := rt.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {}), nil, nil).
		Export("ping").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(rt)
	tests := []struct {
		module, field string
		kind          byte
		want          bool
	}{
		{"host", "ping", wasm.KindFunc, true},
		{"host", "pong", wasm.KindFunc, false},
		{"host", "memory", wasm.KindMemory, false},
		{"nowhere", "ping", wasm.KindFunc, false},
	}
	for _, tt := range tests {
		if got := r.HasExport(tt.module, tt.field, tt.kind); got != tt.want {
			t.Errorf("HasExport(%s, %s) = %v, want %v", tt.module, tt.field, got, tt.want)
		}
	}
}
