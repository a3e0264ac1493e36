package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// Engine owns the shared wazero runtime mods are admitted into.
type Engine struct {
	runtime  wazero.Runtime
	api      *HostAPI
	writers  []*zapio.Writer
	resident []string
	mu       sync.Mutex
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// New creates the runtime, instantiates WASI and every module of hostAPI.
// External catalogue entries are not instantiated; WASI is added to the
// catalogue from its exported definitions.
func New(ctx context.Context, cfg *Config, hostAPI *HostAPI) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if hostAPI == nil {
		hostAPI = NewHostAPI()
	}

	e := &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg), api: hostAPI}

	wasi, err := InstantiateWASI(ctx, e.runtime)
	if err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	e.resident = append(e.resident, wasi.Name())

	for _, m := range hostAPI.Modules() {
		if m.External {
			continue
		}
		if err := e.instantiateHostModule(ctx, m); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, err
		}
	}
	hostAPI.Add(DescribeModule(wasi))

	Logger().Debug("engine ready", zap.Strings("resident", e.resident))
	return e, nil
}

func (e *Engine) instantiateHostModule(ctx context.Context, m *HostModule) error {
	b := e.runtime.NewHostModuleBuilder(m.Name)
	for _, f := range m.Funcs {
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(f.Fn, toValueTypes(f.Core.Params), toValueTypes(f.Core.Results)).
			WithName(f.Name).
			Export(f.Name)
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module %s: %w", m.Name, err)
	}
	e.resident = append(e.resident, m.Name)
	return nil
}

// HostAPI returns the catalogue, including WASI.
func (e *Engine) HostAPI() *HostAPI {
	return e.api
}

// Runtime returns the underlying runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Module returns an instantiated module by name, or nil.
func (e *Engine) Module(name string) api.Module {
	return e.runtime.Module(name)
}

// Resident returns the names of every module instantiated so far.
func (e *Engine) Resident() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.resident...)
}

// Compile validates and compiles a binary.
func (e *Engine) Compile(ctx context.Context, data []byte) (wazero.CompiledModule, error) {
	return e.runtime.CompileModule(ctx, data)
}

// Instantiate admits a compiled binary under name. Only _initialize runs;
// a command's _start does not. Guest stdout and stderr go to the logger.
func (e *Engine) Instantiate(ctx context.Context, compiled wazero.CompiledModule, name string) (api.Module, error) {
	stdout := &zapio.Writer{Log: Logger().With(zap.String("mod", name)), Level: zap.InfoLevel}
	stderr := &zapio.Writer{Log: Logger().With(zap.String("mod", name)), Level: zap.WarnLevel}

	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize").
		WithStdout(stdout).
		WithStderr(stderr)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.writers = append(e.writers, stdout, stderr)
	if err != nil {
		return nil, err
	}
	e.resident = append(e.resident, name)
	return mod, nil
}

// Close closes every module and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	writers := e.writers
	e.writers = nil
	e.mu.Unlock()

	var err error
	for _, w := range writers {
		err = multierr.Append(err, w.Close())
	}
	return multierr.Append(err, e.runtime.Close(ctx))
}
