package engine

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/modhost/wasm"
	"github.com/wippyai/modhost/wasm/wasmtest"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New(ctx, tc.cfg, DefaultHostAPI(NewRegistry()))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer e.Close(ctx)

			for _, name := range []string{ModuleWASI, ModuleHost, ModuleEvents, ModuleProcess} {
				if e.Module(name) == nil {
					t.Errorf("module %s not instantiated", name)
				}
			}
			if !e.HostAPI().Validates(ModuleWASI) {
				t.Error("WASI missing from the catalogue")
			}
			if _, ok := e.HostAPI().Lookup(ModuleWASI, "fd_write"); !ok {
				t.Error("WASI catalogue has no fd_write")
			}
		})
	}
}

func TestHostAPILookup(t *testing.T) {
	h := DefaultHostAPI(NewRegistry())

	f, ok := h.Lookup(ModuleHost, "log")
	if !ok {
		t.Fatal("modhost.log missing")
	}
	want := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}}
	if !f.Core.Equal(want) {
		t.Errorf("log core = %v, want %v", f.Core, want)
	}
	if got := f.String(); got != "log: func(string, s32)" {
		t.Errorf("String = %q", got)
	}

	d, ok := h.Lookup(ModuleSerializer, "register_dictionary")
	if !ok || d.Signature == "" || len(d.TypeParams) != 2 {
		t.Errorf("register_dictionary = %+v", d)
	}
	if _, ok := h.Lookup(ModuleHost, "log_info"); ok {
		t.Error("legacy log_info should not be in the catalogue")
	}
	if h.Validates("env") {
		t.Error("env should not be validated")
	}
}

func TestInstantiateRunsInitialize(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	e, err := New(ctx, nil, DefaultHostAPI(reg))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	b := wasmtest.New()
	sub := b.Type([]wasm.ValType{wasm.ValI32}, nil)
	void := b.Type(nil, nil)
	on := b.ImportFunc(ModuleEvents, "on_update_tick", sub)
	init := b.Func(void, wasmtest.Code(wasm.I32Const(7), wasm.Call(on)))
	b.Export("_initialize", init)
	b.Export("entry", b.Func(void, wasmtest.Code()))

	compiled, err := e.Compile(ctx, b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	mod, err := e.Instantiate(ctx, compiled, "ticker")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if mod.ExportedFunction("entry") == nil {
		t.Error("entry export missing")
	}

	subs := reg.Subscriptions(EventUpdateTick)
	if len(subs) != 1 || subs[0].Module != "ticker" || subs[0].Handler != 7 {
		t.Errorf("subscriptions = %+v", subs)
	}

	found := false
	for _, name := range e.Resident() {
		if name == "ticker" {
			found = true
		}
	}
	if !found {
		t.Errorf("Resident = %v, want ticker included", e.Resident())
	}
}

func TestGuestLog(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	e, err := New(ctx, nil, DefaultHostAPI(NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	tests := []struct {
		name   string
		mod    string
		memory bool
		want   string
	}{
		{"without memory", "bare", false, "guest log message out of bounds"},
		{"with memory", "paged", true, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs.TakeAll()
			b := wasmtest.New()
			log := b.ImportFunc(ModuleHost, "log", b.Type([]wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}, nil))
			if tc.memory {
				b.Memory(1)
			}
			void := b.Type(nil, nil)
			b.Export("_initialize", b.Func(void, wasmtest.Code(wasm.I32Const(0), wasm.I32Const(0), wasm.I32Const(LevelWarn), wasm.Call(log))))

			compiled, err := e.Compile(ctx, b.Bytes())
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if _, err := e.Instantiate(ctx, compiled, tc.mod); err != nil {
				t.Fatalf("Instantiate: %v", err)
			}
			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			if entries[0].Message != tc.want || entries[0].Level != zapcore.WarnLevel {
				t.Errorf("entry = %q at %v", entries[0].Message, entries[0].Level)
			}
		})
	}
}
