// Command modhost scans a mods folder, orders the mods by their
// dependencies and loads their WebAssembly binaries into a wazero runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wippyai/modhost/config"
	"github.com/wippyai/modhost/host"
)

type options struct {
	configFile  string
	color       string
	verbose     bool
	interactive bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "modhost",
		Short:        "Load WebAssembly mods into a sandboxed host",
		Version:      host.Version.String(),
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ./modhost.toml)")
	pf.StringVar(&opts.color, "color", "auto", "colorize output (auto|on|off)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	pf.BoolVarP(&opts.interactive, "interactive", "i", false, "browse the report in a terminal UI")

	d := config.Default()
	pf.String(config.FlagName(config.KeyModsPath), d.ModsPath, "mods folder")
	pf.String(config.FlagName(config.KeyCompatibilityFile), d.CompatibilityFile, "compatibility list (TOML)")
	pf.String(config.FlagName(config.KeyCacheDir), d.CacheDir, "directory for the compatibility list snapshot")
	pf.String(config.FlagName(config.KeyEntryExport), d.EntryExport, "export called to start a code mod")
	pf.String(config.FlagName(config.KeyLogLevel), d.LogLevel, "log level (debug|info|warn|error)")
	pf.String(config.FlagName(config.KeyFallbackURL), d.FallbackURL, "update page suggested for broken mods without update keys")
	pf.StringSlice(config.FlagName(config.KeyEarlyMods), d.EarlyMods, "mod IDs to load first")
	pf.StringSlice(config.FlagName(config.KeyLateMods), d.LateMods, "mod IDs to load last")
	pf.Int(config.FlagName(config.KeyScanJobs), d.ScanJobs, "parallel manifest parsers (0 = number of CPUs)")
	pf.Uint32(config.FlagName(config.KeyMemoryLimitPages), d.MemoryLimitPages, "memory limit per mod in 64KiB pages (0 = runtime default)")
	pf.Bool(config.FlagName(config.KeyParanoidWarnings), d.ParanoidWarnings, "report console, filesystem and shell access")
	pf.Bool(config.FlagName(config.KeyRewriteMods), d.RewriteMods, "rewrite legacy imports for the current host API")
	pf.Bool(config.FlagName(config.KeyCaseInsensitivePaths), d.CaseInsensitivePaths, "match file names case-insensitively")
	pf.Bool(config.FlagName(config.KeySuppressUpdateChecks), d.SuppressUpdateChecks, "don't warn about mods without update keys")

	root.AddCommand(
		&cobra.Command{
			Use:   "load",
			Short: "Scan, order and load every mod",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, true)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Scan and order mods without loading their binaries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, false)
			},
		},
	)
	return root
}

func run(cmd *cobra.Command, opts *options, load bool) error {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Level(), opts.verbose, opts.interactive)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	installLogger(logger)

	db, err := cfg.Database()
	if err != nil {
		return err
	}

	h, err := host.New(ctx, cfg.HostOptions(db))
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(context.Background()); err != nil {
			logger.Sugar().Warnf("closing runtime: %v", err)
		}
	}()

	if opts.interactive {
		return runInteractive(ctx, h, cfg.ModsPath, load)
	}

	rep, err := pass(ctx, h, load)
	if err != nil {
		return err
	}
	setColor(opts.color)
	printReport(cmd.OutOrStdout(), rep, load)

	if !load && len(rep.Failed()) > 0 {
		return fmt.Errorf("%d mods failed the check", len(rep.Failed()))
	}
	return nil
}

func pass(ctx context.Context, h *host.Host, load bool) (*host.Report, error) {
	if load {
		return h.LoadMods(ctx)
	}
	return h.Check(ctx)
}
