package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/wasm"
	"github.com/wippyai/modhost/wasm/wasmtest"
)

func writeMod(t *testing.T, root, folder, manifest string, bin *wasmtest.Builder) {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if bin != nil {
		if err := os.WriteFile(filepath.Join(dir, folder+".wasm"), bin.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func codeMod(name, extra string) string {
	return `{"Name": "` + name + `", "Author": "Tester", "Version": "1.0.0", "UniqueID": "test.` + name +
		`", "EntryBinary": "` + name + `.wasm"` + extra + `}`
}

func withEntry(b *wasmtest.Builder) *wasmtest.Builder {
	b.Export("entry", b.Func(b.Type(nil, nil), wasmtest.Code()))
	return b
}

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	core := wasmtest.New()
	tick := core.ImportFunc(engine.ModuleEvents, "on_update_tick", core.Type([]wasm.ValType{wasm.ValI32}, nil))
	core.Export("_initialize", core.Func(core.Type(nil, nil), wasmtest.Code(wasm.I32Const(3), wasm.Call(tick))))
	writeMod(t, root, "Core", codeMod("Core", `, "UpdateKeys": ["Nexus:1"]`), withEntry(core))

	addon := wasmtest.New()
	addon.ImportFunc(engine.ModuleHost, "nope", addon.Type(nil, nil))
	writeMod(t, root, "Addon", codeMod("Addon", `, "UpdateKeys": ["Nexus:2"], "Dependencies": [{"UniqueID": "test.Core"}]`), withEntry(addon))

	writeMod(t, root, "Dependent", codeMod("Dependent", `, "UpdateKeys": ["Nexus:3"], "Dependencies": [{"UniqueID": "test.Addon"}]`), withEntry(wasmtest.New()))
	writeMod(t, root, "NoEntry", codeMod("NoEntry", `, "UpdateKeys": ["Nexus:4"]`), wasmtest.New())
	writeMod(t, root, "Plain", codeMod("Plain", ""), withEntry(wasmtest.New()))
	writeMod(t, root, "Pack", `{"Name": "Pack", "Version": "1.0.0", "UniqueID": "test.Pack", "ContentPackFor": {"UniqueID": "test.Core"}}`, nil)
	writeMod(t, root, ".Disabled", codeMod("Disabled", ""), withEntry(wasmtest.New()))
	return root
}

func newHost(t *testing.T, root string) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx, Options{ModsPath: root, RewriteMods: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := h.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return h
}

func byName(records []*mod.Record, name string) *mod.Record {
	for _, r := range records {
		if r.DisplayName == name {
			return r
		}
	}
	return nil
}

func TestLoadMods(t *testing.T) {
	h := newHost(t, fixture(t))
	rep, err := h.LoadMods(context.Background())
	if err != nil {
		t.Fatalf("LoadMods: %v", err)
	}

	var loaded []string
	for _, m := range rep.Loaded {
		loaded = append(loaded, m.Record.DisplayName)
	}
	if got := strings.Join(loaded, ","); got != "Core,Pack,Plain" {
		t.Errorf("loaded = %s, want Core,Pack,Plain", got)
	}
	for _, m := range rep.Loaded {
		if (m.Entry == nil) != m.Record.IsContentPack() {
			t.Errorf("%s: entry = %v", m.Record.DisplayName, m.Entry)
		}
	}

	if len(rep.Skipped) != 1 || !rep.Skipped[0].IsIgnored {
		t.Errorf("Skipped = %v", rep.Skipped)
	}

	failures := []struct {
		name   string
		reason mod.FailReason
		msg    string
	}{
		{"Addon", mod.FailIncompatible, "it's no longer compatible. Please check for a new version at https://www.nexusmods.com/mods/2"},
		{"Dependent", mod.FailMissingDependencies, "it needs the 'Addon' mod, which couldn't be loaded."},
		{"NoEntry", mod.FailLoadFailed, "its binary has no 'entry' export."},
	}
	for _, f := range failures {
		rec := byName(rep.Mods, f.name)
		if rec == nil {
			t.Fatalf("%s missing from report", f.name)
		}
		if !rec.Failed() || rec.FailReason != f.reason || rec.Error != f.msg {
			t.Errorf("%s: reason=%v error=%q, want %v %q", f.name, rec.FailReason, rec.Error, f.reason, f.msg)
		}
	}
	if got := byName(rep.Mods, "Addon").ErrorDetails; got != "reference to modhost.nope (no such function)" {
		t.Errorf("Addon details = %q", got)
	}
	if len(rep.Failed()) != 3 {
		t.Errorf("len(Failed) = %d, want 3", len(rep.Failed()))
	}

	if !byName(rep.Mods, "Plain").HasWarnings(mod.WarningNoUpdateKeys) {
		t.Error("Plain should warn about missing update keys")
	}
	if byName(rep.Mods, "Core").HasWarnings(mod.WarningNoUpdateKeys) {
		t.Error("Core has update keys")
	}

	subs := h.Registry().Subscriptions(engine.EventUpdateTick)
	if len(subs) != 1 || subs[0].Module != "Core" || subs[0].Handler != 3 {
		t.Errorf("subscriptions = %+v", subs)
	}
}

func TestCheckLoadsNothing(t *testing.T) {
	h := newHost(t, fixture(t))
	rep, err := h.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(rep.Loaded) != 0 {
		t.Errorf("Loaded = %d, want 0", len(rep.Loaded))
	}
	if core, addon := positionOf(rep.Mods, "Core"), positionOf(rep.Mods, "Addon"); core > addon {
		t.Errorf("Core at %d after Addon at %d", core, addon)
	}
	if h.Engine().Module("Core") != nil {
		t.Error("Check admitted a binary")
	}
	for _, rec := range rep.Mods {
		if rec.Failed() {
			t.Errorf("%s failed during check: %s", rec.DisplayName, rec.Error)
		}
	}
}

func positionOf(records []*mod.Record, name string) int {
	for i, r := range records {
		if r.DisplayName == name {
			return i
		}
	}
	return -1
}

func TestMissingModsFolder(t *testing.T) {
	h := newHost(t, filepath.Join(t.TempDir(), "nope"))
	if _, err := h.LoadMods(context.Background()); err == nil {
		t.Error("expected an error for a missing mods folder")
	}
}
