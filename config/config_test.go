package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.ModsPath != want.ModsPath || cfg.EntryExport != want.EntryExport || cfg.LogLevel != want.LogLevel {
		t.Errorf("Load = %+v, want %+v", *cfg, want)
	}
	if !cfg.RewriteMods || cfg.ParanoidWarnings || len(cfg.EarlyMods) != 0 || cfg.ScanJobs != 0 {
		t.Errorf("Load = %+v, want %+v", *cfg, want)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := `mods_path = "from-file"
scan_jobs = 3
paranoid_warnings = true
early_mods = ["A", "B"]
log_level = "debug"
`
	if err := os.WriteFile(filepath.Join(dir, "modhost.toml"), []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MODHOST_SCAN_JOBS", "5")
	t.Setenv("MODHOST_MEMORY_LIMIT_PAGES", "64")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagName(KeyModsPath), "", "")
	flags.Bool(FlagName(KeyRewriteMods), true, "")
	if err := flags.Parse([]string{"--rewrite-mods=false"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ModsPath != "from-file" {
		t.Errorf("ModsPath = %q, want from-file", cfg.ModsPath)
	}
	if cfg.ScanJobs != 5 {
		t.Errorf("ScanJobs = %d, want 5", cfg.ScanJobs)
	}
	if cfg.MemoryLimitPages != 64 {
		t.Errorf("MemoryLimitPages = %d, want 64", cfg.MemoryLimitPages)
	}
	if !cfg.ParanoidWarnings {
		t.Error("ParanoidWarnings = false, want true")
	}
	if cfg.RewriteMods {
		t.Error("RewriteMods = true, want false from flag")
	}
	if !reflect.DeepEqual(cfg.EarlyMods, []string{"A", "B"}) {
		t.Errorf("EarlyMods = %v, want [A B]", cfg.EarlyMods)
	}
	if cfg.Level() != zapcore.DebugLevel {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Phase != errors.PhaseConfig {
		t.Errorf("err = %v, want a config error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		kind errors.Kind
	}{
		{"empty mods path", func(c *Config) { c.ModsPath = " " }, errors.KindInvalidInput},
		{"negative jobs", func(c *Config) { c.ScanJobs = -1 }, errors.KindOutOfBounds},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Kind != tt.kind {
				t.Errorf("Validate = %v, want kind %s", err, tt.kind)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(default) = %v", err)
	}
}

func TestDatabase(t *testing.T) {
	cfg := Default()
	db, err := cfg.Database()
	if err != nil || db == nil || len(db.All()) != 0 {
		t.Fatalf("Database() = %v, %v; want empty", db, err)
	}

	dir := t.TempDir()
	list := filepath.Join(dir, "compat.toml")
	data := `[[mod]]
ID = "test.Broken"
Name = "Broken"

[[mod.Fields]]
Key = "Status"
Value = "Obsolete"
`
	if err := os.WriteFile(list, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.CompatibilityFile = list
	cfg.CacheDir = filepath.Join(dir, "cache")

	for i := 0; i < 2; i++ {
		db, err := cfg.Database()
		if err != nil {
			t.Fatalf("Database() pass %d: %v", i, err)
		}
		if db.Get("test.broken") == nil {
			t.Errorf("pass %d: record missing", i)
		}
	}
}

func TestHostOptions(t *testing.T) {
	cfg := Default()
	cfg.ModsPath = "mods/"
	cfg.ParanoidWarnings = true
	cfg.LateMods = []string{"Z"}
	opts := cfg.HostOptions(nil)
	if opts.ModsPath != "mods" || !opts.Paranoid || !opts.RewriteMods || opts.EntryExport != "entry" {
		t.Errorf("HostOptions = %+v", opts)
	}
	if !reflect.DeepEqual(opts.Late, []string{"Z"}) {
		t.Errorf("Late = %v, want [Z]", opts.Late)
	}
}
