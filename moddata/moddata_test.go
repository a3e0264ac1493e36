package moddata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/modhost/manifest"
)

const sampleDB = `
[[mod]]
ID = "someone.OldMod"
Name = "Old Mod"
FormerIDs = ["someone.Legacy"]
SuppressWarnings = ["PatchesHost"]

  [[mod.Fields]]
  Key = "Status"
  Value = "AssumeBroken"
  UpperVersion = "1.2"

  [[mod.Fields]]
  Key = "StatusReasonDetails"
  Value = "uses removed API"
  UpperVersion = "1.2"

  [[mod.Fields]]
  Key = "UpdateKey"
  Value = "Nexus:99"
  IsDefault = true

[[mod]]
ID = "someone.Gone"
Name = "Gone"

  [[mod.Fields]]
  Key = "Status"
  Value = "obsolete"

  [[mod.Fields]]
  Key = "StatusReasonPhrase"
  Value = "its features were merged into the host"
`

func TestParseAndLookup(t *testing.T) {
	db, err := Parse(sampleDB)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(db.All()) != 2 {
		t.Fatalf("len(All) = %d, want 2", len(db.All()))
	}

	r := db.Get("SOMEONE.LEGACY")
	if r == nil || r.ID != "someone.OldMod" {
		t.Fatalf("Get(former ID) = %+v", r)
	}
	if r.SuppressWarnings != WarningPatchesHost {
		t.Errorf("SuppressWarnings = %v", r.SuppressWarnings)
	}
	if r.DefaultUpdateKey() != "Nexus:99" {
		t.Errorf("DefaultUpdateKey = %q", r.DefaultUpdateKey())
	}
	if got := db.PageURL("someone.OldMod"); got != "https://www.nexusmods.com/mods/99" {
		t.Errorf("PageURL = %q", got)
	}
	if db.Get("nobody") != nil {
		t.Errorf("Get(nobody) should be nil")
	}
}

func TestVersionedFields(t *testing.T) {
	db, err := Parse(sampleDB)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := db.Get("someone.OldMod")

	tests := []struct {
		version    string
		updateKeys []string
		status     Status
		updateKey  string
	}{
		{"1.0.0", nil, StatusAssumeBroken, "Nexus:99"},
		{"1.2.0", []string{"GitHub:me/mod"}, StatusAssumeBroken, ""},
		{"1.3.0", nil, StatusNone, "Nexus:99"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			m := &manifest.Manifest{Version: manifest.MustParseVersion(tt.version), UpdateKeys: tt.updateKeys}
			vf := r.VersionedFields(m)
			if vf.Status != tt.status {
				t.Errorf("Status = %v, want %v", vf.Status, tt.status)
			}
			if vf.UpdateKey != tt.updateKey {
				t.Errorf("UpdateKey = %q, want %q", vf.UpdateKey, tt.updateKey)
			}
			if tt.status == StatusAssumeBroken {
				if vf.StatusUpperVersion.String() != "1.2.0" || vf.StatusReasonDetails != "uses removed API" {
					t.Errorf("versioned fields = %+v", vf)
				}
			}
		})
	}

	gone := db.Get("someone.Gone").VersionedFields(&manifest.Manifest{Version: manifest.MustParseVersion("5.0")})
	if gone.Status != StatusObsolete || gone.StatusUpperVersion != nil {
		t.Errorf("Gone = %+v", gone)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing id":     "[[mod]]\nName = \"x\"\n",
		"bad status":     "[[mod]]\nID = \"x\"\n[[mod.Fields]]\nKey = \"Status\"\nValue = \"Maybe\"\n",
		"bad key":        "[[mod]]\nID = \"x\"\n[[mod.Fields]]\nKey = \"Color\"\nValue = \"red\"\n",
		"bad version":    "[[mod]]\nID = \"x\"\n[[mod.Fields]]\nKey = \"UpdateKey\"\nValue = \"Nexus:1\"\nLowerVersion = \"abc\"\n",
		"bad warning":    "[[mod]]\nID = \"x\"\nSuppressWarnings = [\"Loud\"]\n",
		"malformed toml": "[[mod]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compat.toml")
	if err := os.WriteFile(path, []byte(sampleDB), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := OpenCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}

	first, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "cache", "moddata"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache entries = %v, %v", entries, err)
	}

	second, err := c.Load(path)
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if len(second.All()) != len(first.All()) {
		t.Errorf("cached database has %d records, want %d", len(second.All()), len(first.All()))
	}
	if second.Get("someone.Legacy") == nil {
		t.Errorf("cached database lost former IDs")
	}
}

func TestWarningString(t *testing.T) {
	w := WarningPatchesHost | WarningAccessesShell
	if got := w.String(); got != "PatchesHost, AccessesShell" {
		t.Errorf("String() = %q", got)
	}
	if !w.Has(WarningAccessesShell) || w.Has(WarningNoUpdateKeys) {
		t.Errorf("Has() wrong for %v", w)
	}
}
