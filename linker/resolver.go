package linker

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/modhost/wasm"
)

// ModuleSource looks up instantiated modules by name. wazero.Runtime and
// *engine.Engine both satisfy it.
type ModuleSource interface {
	Module(name string) api.Module
}

// Resolver resolves binary names to definitions for one load scope.
//
// Resolution priority:
//  1. definitions registered with Add
//  2. <dir>/<name>.wasm in each search directory, in the order added
//  3. the module source (already instantiated modules)
//
// Resolver is thread-safe.
type Resolver struct {
	source ModuleSource
	known  map[string]*wasm.Module
	parsed map[string]*wasm.Module
	dirs   []string
	mu     sync.RWMutex
}

// NewResolver creates a resolver falling back to source, which may be nil.
func NewResolver(source ModuleSource) *Resolver {
	return &Resolver{
		source: source,
		known:  make(map[string]*wasm.Module),
		parsed: make(map[string]*wasm.Module),
	}
}

// Add registers an in-memory definition. It wins over any copy on disk.
func (r *Resolver) Add(name string, m *wasm.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[name] = m
}

// AddSearchDirectory appends dir to the search path. Adding a directory
// twice is a no-op.
func (r *Resolver) AddSearchDirectory(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.dirs, dir) {
		r.dirs = append(r.dirs, dir)
	}
}

// Resolve returns the definition for name from the registered definitions or
// the search path. Instantiated modules are not returned here; see HasExport.
func (r *Resolver) Resolve(name string) (*wasm.Module, bool) {
	r.mu.RLock()
	if m, ok := r.known[name]; ok {
		r.mu.RUnlock()
		return m, true
	}
	dirs := slices.Clone(r.dirs)
	r.mu.RUnlock()

	for _, dir := range dirs {
		path := filepath.Join(dir, name+".wasm")

		r.mu.RLock()
		m, cached := r.parsed[path]
		r.mu.RUnlock()
		if cached {
			if m != nil {
				return m, true
			}
			continue
		}

		m = parseFile(path)
		r.mu.Lock()
		r.parsed[path] = m
		r.mu.Unlock()
		if m != nil {
			return m, true
		}
	}
	return nil, false
}

func parseFile(path string) *wasm.Module {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		Logger().Debug("unparsable binary on search path", zap.String("path", path), zap.Error(err))
		return nil
	}
	return m
}

// HasExport reports whether module exports field with the given import kind.
func (r *Resolver) HasExport(module, field string, kind byte) bool {
	if m, ok := r.Resolve(module); ok {
		e, ok := m.ExportByName(field)
		return ok && e.Kind == kind
	}
	if r.source == nil {
		return false
	}
	inst := r.source.Module(module)
	if inst == nil {
		return false
	}
	switch kind {
	case wasm.KindFunc:
		_, ok := inst.ExportedFunctionDefinitions()[field]
		return ok
	case wasm.KindMemory:
		return inst.ExportedMemory(field) != nil
	case wasm.KindGlobal:
		return inst.ExportedGlobal(field) != nil
	default:
		// wazero does not expose exported tables or tags by name.
		return true
	}
}
