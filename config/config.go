// Package config loads modhost settings from defaults, an optional
// modhost.toml file, MODHOST_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	stderrors "errors"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/host"
	"github.com/wippyai/modhost/moddata"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "modhost"
	// EnvPrefix prefixes environment overrides, e.g. MODHOST_MODS_PATH.
	EnvPrefix = "MODHOST"
)

// Keys, also used as flag names with '_' replaced by '-'.
const (
	KeyModsPath             = "mods_path"
	KeyCompatibilityFile    = "compatibility_file"
	KeyCacheDir             = "cache_dir"
	KeyParanoidWarnings     = "paranoid_warnings"
	KeyRewriteMods          = "rewrite_mods"
	KeyCaseInsensitivePaths = "case_insensitive_paths"
	KeyEarlyMods            = "early_mods"
	KeyLateMods             = "late_mods"
	KeySuppressUpdateChecks = "suppress_update_checks"
	KeyEntryExport          = "entry_export"
	KeyScanJobs             = "scan_jobs"
	KeyLogLevel             = "log_level"
	KeyMemoryLimitPages     = "memory_limit_pages"
	KeyFallbackURL          = "fallback_url"
)

// Config holds the resolved settings.
type Config struct {
	ModsPath             string   `mapstructure:"mods_path"`
	CompatibilityFile    string   `mapstructure:"compatibility_file"`
	CacheDir             string   `mapstructure:"cache_dir"`
	EntryExport          string   `mapstructure:"entry_export"`
	LogLevel             string   `mapstructure:"log_level"`
	FallbackURL          string   `mapstructure:"fallback_url"`
	EarlyMods            []string `mapstructure:"early_mods"`
	LateMods             []string `mapstructure:"late_mods"`
	ScanJobs             int      `mapstructure:"scan_jobs"`
	MemoryLimitPages     uint32   `mapstructure:"memory_limit_pages"`
	ParanoidWarnings     bool     `mapstructure:"paranoid_warnings"`
	RewriteMods          bool     `mapstructure:"rewrite_mods"`
	CaseInsensitivePaths bool     `mapstructure:"case_insensitive_paths"`
	SuppressUpdateChecks bool     `mapstructure:"suppress_update_checks"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ModsPath:    "Mods",
		EntryExport: host.DefaultEntryExport,
		LogLevel:    "info",
		RewriteMods: true,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyModsPath, d.ModsPath)
	v.SetDefault(KeyCompatibilityFile, d.CompatibilityFile)
	v.SetDefault(KeyCacheDir, d.CacheDir)
	v.SetDefault(KeyParanoidWarnings, d.ParanoidWarnings)
	v.SetDefault(KeyRewriteMods, d.RewriteMods)
	v.SetDefault(KeyCaseInsensitivePaths, d.CaseInsensitivePaths)
	v.SetDefault(KeyEarlyMods, d.EarlyMods)
	v.SetDefault(KeyLateMods, d.LateMods)
	v.SetDefault(KeySuppressUpdateChecks, d.SuppressUpdateChecks)
	v.SetDefault(KeyEntryExport, d.EntryExport)
	v.SetDefault(KeyScanJobs, d.ScanJobs)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyMemoryLimitPages, d.MemoryLimitPages)
	v.SetDefault(KeyFallbackURL, d.FallbackURL)
}

// FlagName returns the command-line flag bound to a key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Load resolves settings. An empty path looks for modhost.toml in the
// working directory and tolerates its absence; an explicit path must exist.
// Flags registered under FlagName(key) override everything else when set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				File(path).
				Cause(err).
				Detail("read config file").
				Build()
		}
	}

	if flags != nil {
		for _, key := range v.AllKeys() {
			if f := flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind flag "+f.Name)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode settings")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper can't.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModsPath) == "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(KeyModsPath).
			Detail("mods path is empty").
			Build()
	}
	if c.ScanJobs < 0 {
		return errors.New(errors.PhaseConfig, errors.KindOutOfBounds).
			Path(KeyScanJobs).
			Value(c.ScanJobs).
			Detail("scan jobs can't be negative").
			Build()
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(KeyLogLevel).
			Value(c.LogLevel).
			Cause(err).
			Detail("unknown log level").
			Build()
	}
	return nil
}

// Level returns the parsed log level. Validate has already rejected bad ones.
func (c *Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Database loads the compatibility list, through the snapshot cache when a
// cache directory is set. No file means an empty list.
func (c *Config) Database() (*moddata.Database, error) {
	if c.CompatibilityFile == "" {
		return moddata.Empty(), nil
	}
	var cache *moddata.Cache
	if c.CacheDir != "" {
		var err error
		if cache, err = moddata.OpenCache(c.CacheDir); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				File(c.CacheDir).
				Cause(err).
				Detail("open cache directory").
				Build()
		}
	}
	db, err := cache.Load(c.CompatibilityFile)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			File(c.CompatibilityFile).
			Cause(err).
			Detail("load compatibility list").
			Build()
	}
	return db, nil
}

// HostOptions maps the settings onto a host configuration.
func (c *Config) HostOptions(db *moddata.Database) host.Options {
	return host.Options{
		DB:                   db,
		ModsPath:             filepath.Clean(c.ModsPath),
		EntryExport:          c.EntryExport,
		FallbackURL:          c.FallbackURL,
		Early:                c.EarlyMods,
		Late:                 c.LateMods,
		ScanJobs:             c.ScanJobs,
		MemoryLimitPages:     c.MemoryLimitPages,
		Paranoid:             c.ParanoidWarnings,
		RewriteMods:          c.RewriteMods,
		CaseInsensitivePaths: c.CaseInsensitivePaths,
		SuppressUpdateChecks: c.SuppressUpdateChecks,
	}
}
