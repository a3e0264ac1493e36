package host

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/loader"
	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/moddata"
	"github.com/wippyai/modhost/resolver"
)

// Version is the loader version mods compare MinimumLoaderVersion against.
var Version = manifest.MustParseVersion("1.0.0")

// DefaultEntryExport is the export called to start a code mod.
const DefaultEntryExport = "entry"

// Options configures a Host.
type Options struct {
	// DB supplies compatibility overrides; nil means none.
	DB       *moddata.Database
	ModsPath string
	// EntryExport defaults to DefaultEntryExport.
	EntryExport string
	// FallbackURL is suggested when a broken mod has no update key.
	FallbackURL string
	// Early and Late list mod IDs moved to the start or end of the load order
	// before dependencies are sorted.
	Early []string
	Late  []string

	ScanJobs         int
	MemoryLimitPages uint32

	Paranoid             bool
	RewriteMods          bool
	CaseInsensitivePaths bool
	SuppressUpdateChecks bool
}

// LoadedMod is a mod admitted into the runtime. Instance and Entry are nil
// for content packs.
type LoadedMod struct {
	Record   *mod.Record
	Instance api.Module
	Entry    api.Function
}

// Report is the outcome of a loading pass.
type Report struct {
	// Mods holds every resolved record in load order, failed ones included.
	Mods []*mod.Record
	// Skipped holds folders disabled by the dot convention.
	Skipped []*mod.Record
	Loaded  []*LoadedMod
}

// Failed returns the records that didn't load.
func (r *Report) Failed() []*mod.Record {
	var out []*mod.Record
	for _, rec := range r.Mods {
		if rec.Failed() {
			out = append(out, rec)
		}
	}
	return out
}

// Host runs the mod loading pipeline against one runtime.
type Host struct {
	engine   *engine.Engine
	registry *engine.Registry
	loader   *loader.Loader
	resolver *resolver.Resolver
	opts     Options
}

// New creates the runtime and host API.
func New(ctx context.Context, opts Options) (*Host, error) {
	if opts.EntryExport == "" {
		opts.EntryExport = DefaultEntryExport
	}

	reg := engine.NewRegistry()
	eng, err := engine.New(ctx, &engine.Config{MemoryLimitPages: opts.MemoryLimitPages}, engine.DefaultHostAPI(reg))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "create engine")
	}

	return &Host{
		engine:   eng,
		registry: reg,
		loader:   loader.New(eng, loader.Options{RewriteMods: opts.RewriteMods, Paranoid: opts.Paranoid}),
		resolver: &resolver.Resolver{
			DB:                   opts.DB,
			LoaderVersion:        Version,
			FallbackURL:          opts.FallbackURL,
			CaseInsensitivePaths: opts.CaseInsensitivePaths,
		},
		opts: opts,
	}, nil
}

// Registry returns what loaded mods registered through the host API.
func (h *Host) Registry() *engine.Registry {
	return h.registry
}

// Engine returns the runtime mods are admitted into.
func (h *Host) Engine() *engine.Engine {
	return h.engine
}

// Close releases compiled binaries and the runtime.
func (h *Host) Close(ctx context.Context) error {
	return multierr.Append(h.loader.Close(ctx), h.engine.Close(ctx))
}

// Check scans, validates and orders the mods without loading any binary.
func (h *Host) Check(ctx context.Context) (*Report, error) {
	return h.resolve(ctx)
}

func (h *Host) resolve(ctx context.Context) (*Report, error) {
	scanner := &manifest.Scanner{Jobs: h.opts.ScanJobs}
	records, err := h.resolver.ReadManifests(ctx, scanner, h.opts.ModsPath)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScan, errors.KindNotFound, err, "scan mods folder")
	}
	h.resolver.ValidateManifests(records, true)
	records = resolver.ApplyLoadOrderOverrides(records, h.opts.Early, h.opts.Late)

	rep := &Report{}
	active := make([]*mod.Record, 0, len(records))
	for _, rec := range records {
		if rec.IsIgnored {
			Logger().Debug("skipped mod", zap.String("mod", rec.DisplayName), zap.String("reason", rec.Error))
			rep.Skipped = append(rep.Skipped, rec)
			continue
		}
		active = append(active, rec)
	}

	if rep.Mods, err = h.resolver.ProcessDependencies(active); err != nil {
		return nil, err
	}

	if !h.opts.SuppressUpdateChecks {
		for _, rec := range rep.Mods {
			if !rec.Failed() && !rec.IsContentPack() && !rec.HasValidUpdateKeys() {
				rec.SetWarning(mod.WarningNoUpdateKeys)
			}
		}
	}
	return rep, nil
}

// LoadMods runs the whole pipeline: every mod that resolved is loaded in
// order. Problems with one mod are recorded on its record; only an internal
// error stops the pass.
func (h *Host) LoadMods(ctx context.Context) (*Report, error) {
	rep, err := h.resolve(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range rep.Mods {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if rec.Failed() {
			continue
		}
		if dep := failedDependency(rec, rep.Mods); dep != nil {
			rec.Fail(mod.FailMissingDependencies, fmt.Sprintf("it needs the '%s' mod, which couldn't be loaded.", dep.DisplayName))
			continue
		}

		if rec.IsContentPack() {
			rep.Loaded = append(rep.Loaded, &LoadedMod{Record: rec})
			Logger().Info("loaded content pack", zap.String("mod", rec.DisplayName), zap.String("for", rec.Manifest.ContentPackFor.UniqueID))
			continue
		}

		loaded, err := h.loadCodeMod(ctx, rec)
		if err != nil {
			return rep, err
		}
		if loaded != nil {
			rep.Loaded = append(rep.Loaded, loaded)
		}
	}
	return rep, nil
}

func (h *Host) loadCodeMod(ctx context.Context, rec *mod.Record) (*LoadedMod, error) {
	name, _ := resolver.LookupFile(rec.DirectoryPath, rec.Manifest.EntryBinary, h.opts.CaseInsensitivePaths)
	if name == "" {
		name = rec.Manifest.EntryBinary
	}
	path := filepath.Join(rec.DirectoryPath, name)
	assumeCompatible := rec.DataRecord != nil && rec.DataRecord.Status == moddata.StatusAssumeCompatible

	inst, err := h.loader.Load(ctx, rec, path, assumeCompatible)
	if err != nil {
		r, ok := errors.AsRecoverable(err)
		if !ok || errors.IsFatal(err) {
			return nil, err
		}
		h.failLoad(rec, r)
		return nil, nil
	}

	entry := inst.ExportedFunction(h.opts.EntryExport)
	if entry == nil {
		rec.Fail(mod.FailLoadFailed, fmt.Sprintf("its binary has no '%s' export.", h.opts.EntryExport))
		Logger().Warn("mod has no entry export", zap.String("mod", rec.DisplayName), zap.String("export", h.opts.EntryExport))
		return nil, nil
	}

	Logger().Info("loaded mod",
		zap.String("mod", rec.DisplayName),
		zap.Stringer("version", rec.Manifest.Version),
		zap.Stringer("warnings", rec.Warnings()),
	)
	return &LoadedMod{Record: rec, Instance: inst, Entry: entry}, nil
}

func (h *Host) failLoad(rec *mod.Record, r *errors.Recoverable) {
	if r.Err.Kind == errors.KindIncompatible || r.Err.Kind == errors.KindBrokenReference {
		msg := "it's no longer compatible. Please check for a new version"
		if urls := h.updateURLs(rec); len(urls) > 0 {
			msg += " at " + strings.Join(urls, " or ")
		}
		rec.Fail(mod.FailIncompatible, msg, r.Err.Detail)
	} else {
		rec.Fail(mod.FailLoadFailed, "its binary couldn't be loaded: "+r.Err.Detail, r.Err.Error())
	}
	Logger().Warn("mod failed to load", zap.String("mod", rec.DisplayName), zap.String("reason", rec.Error), zap.Error(r))
}

func (h *Host) updateURLs(rec *mod.Record) []string {
	var urls []string
	for _, k := range rec.UpdateKeys(true) {
		if url := moddata.DefaultUpdateURL(k); url != "" {
			urls = append(urls, url)
		}
	}
	if h.opts.FallbackURL != "" {
		urls = append(urls, h.opts.FallbackURL)
	}
	return urls
}

// failedDependency returns the first required dependency of rec that failed.
func failedDependency(rec *mod.Record, records []*mod.Record) *mod.Record {
	ids := rec.RequiredModIDs(false)
	sort.Strings(ids)
	for _, id := range ids {
		for _, other := range records {
			if other != rec && other.HasID(id) && other.Failed() {
				return other
			}
		}
	}
	return nil
}
