package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/linker"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/rewrite"
)

// Options configures a Loader.
type Options struct {
	RewriteMods bool
	Paranoid    bool
}

// Loader admits mod binaries into an engine. Compiled modules are kept until
// Close.
type Loader struct {
	engine   *engine.Engine
	pipeline *rewrite.Pipeline
	compiled []wazero.CompiledModule
	mu       sync.Mutex
}

// New creates a loader for e.
func New(e *engine.Engine, opts Options) *Loader {
	h := e.HostAPI()
	return &Loader{
		engine: e,
		pipeline: rewrite.New(h, rewrite.NewPlatformMap(h), rewrite.Options{
			RewriteMods: opts.RewriteMods,
			Paranoid:    opts.Paranoid,
		}),
	}
}

// Load expands the binary graph rooted at path, rewrites and checks each
// binary, and admits them leaf to root. It returns the root instance.
//
// Problems with the mod are returned as *errors.Recoverable; Detail holds the
// message shown to the user.
func (l *Loader) Load(ctx context.Context, rec *mod.Record, path string, assumeCompatible bool) (api.Module, error) {
	resolver := linker.NewResolver(l.engine)
	resolver.AddSearchDirectory(filepath.Dir(path))
	lc := NewContext(l.engine.Resident(), resolver)
	log := rewrite.NewLogOnce(Logger().With(zap.String("mod", rec.DisplayName)))

	bins := Expand(lc, path)
	root := bins[len(bins)-1]
	switch root.Status {
	case StatusFailed:
		if _, err := os.Stat(path); err != nil {
			return nil, failure(errors.KindNotFound, rec, path, root.Err, "Could not load '%s' because it doesn't exist.", path)
		}
		return nil, failure(errors.KindInvalidData, rec, path, root.Err, "Could not load '%s'.", path)
	case StatusAlreadyLoaded:
		return nil, failure(errors.KindDuplicate, rec, path, nil, "Could not load '%s' because it was already loaded. Do you have two copies of this mod?", path)
	}

	var inst api.Module
	for _, b := range bins {
		if b.Status != StatusOkay {
			Logger().Debug("skipping binary", zap.String("mod", rec.DisplayName), zap.String("path", b.Path), zap.Stringer("status", b.Status))
			continue
		}
		var err error
		if inst, err = l.admit(ctx, rec, b, resolver, log, assumeCompatible); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (l *Loader) admit(ctx context.Context, rec *mod.Record, b *Binary, r *linker.Resolver, log *rewrite.LogOnce, assumeCompatible bool) (api.Module, error) {
	file := filepath.Base(b.Path)

	res, err := l.pipeline.Run(b.Module, file, log)
	if err != nil {
		return nil, errors.ModuleFailure(errors.New(errors.PhaseRewrite, errors.KindInvalidData).
			Mod(rec.DisplayName).
			File(b.Path).
			Detail("Could not rewrite '%s'.", b.Path).
			Cause(err).
			Build())
	}
	rec.SetWarning(res.Warnings)
	if !res.Compatible() && !assumeCompatible {
		return nil, incompatible(errors.KindIncompatible, rec, b.Path, res.Broken)
	}

	if broken := rewrite.BrokenReferences(b.Module, r); len(broken) > 0 {
		for _, phrase := range broken {
			log.Log(zapcore.WarnLevel, fmt.Sprintf("Broken code in %s: %s.", file, phrase))
		}
		rec.SetWarning(mod.WarningBrokenCodeLoaded)
		if !assumeCompatible {
			return nil, incompatible(errors.KindBrokenReference, rec, b.Path, broken)
		}
	}

	data := b.Data
	if res.Changed {
		if data, err = b.Module.Encode(); err != nil {
			return nil, errors.ModuleFailure(errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Mod(rec.DisplayName).
				File(b.Path).
				Detail("Could not save the rewritten '%s'.", b.Path).
				Cause(err).
				Build())
		}
	}

	compiled, err := l.engine.Compile(ctx, data)
	if err != nil {
		return nil, instantiation(rec, b.Path, err)
	}
	l.mu.Lock()
	l.compiled = append(l.compiled, compiled)
	l.mu.Unlock()

	inst, err := l.engine.Instantiate(ctx, compiled, b.Name)
	if err != nil {
		return nil, instantiation(rec, b.Path, err)
	}
	Logger().Debug("admitted binary", zap.String("mod", rec.DisplayName), zap.String("name", b.Name), zap.Bool("rewritten", res.Changed))
	return inst, nil
}

func failure(kind errors.Kind, rec *mod.Record, path string, cause error, format string, args ...any) *errors.Recoverable {
	return errors.ModuleFailure(errors.New(errors.PhaseLoad, kind).
		Mod(rec.DisplayName).
		File(path).
		Detail(format, args...).
		Cause(cause).
		Build())
}

// incompatible reports broken code: kind is KindIncompatible for handler
// findings and KindBrokenReference for imports nothing resolves.
func incompatible(kind errors.Kind, rec *mod.Record, path string, broken []string) *errors.Recoverable {
	return errors.ModuleFailure(errors.New(errors.PhaseRewrite, kind).
		Mod(rec.DisplayName).
		File(path).
		Value(broken).
		Detail("%s", strings.Join(broken, "; ")).
		Build())
}

func instantiation(rec *mod.Record, path string, err error) *errors.Recoverable {
	return errors.ModuleFailure(errors.New(errors.PhaseAdmit, errors.KindInstantiation).
		Mod(rec.DisplayName).
		File(path).
		Detail("%s", err.Error()).
		Cause(err).
		Build())
}

// Close releases every compiled module.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	compiled := l.compiled
	l.compiled = nil
	l.mu.Unlock()

	var err error
	for _, c := range compiled {
		err = multierr.Append(err, c.Close(ctx))
	}
	return err
}
