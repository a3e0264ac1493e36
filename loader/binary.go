package loader

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/linker"
	"github.com/wippyai/modhost/wasm"
)

// Status is the load status of one binary in a graph expansion.
type Status int

const (
	StatusOkay Status = iota
	StatusFailed
	StatusAlreadyLoaded
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "Failed"
	case StatusAlreadyLoaded:
		return "AlreadyLoaded"
	default:
		return "Okay"
	}
}

// Binary is one binary reached while expanding a mod's reference graph.
type Binary struct {
	// Module is nil unless Status is StatusOkay.
	Module *wasm.Module
	Path   string
	// Name is the file name without extension, which is also the name the
	// binary is instantiated under.
	Name   string
	Data   []byte
	Status Status
	// Err is why a StatusFailed binary couldn't be read or decoded.
	Err error
}

// Context is the state of one expansion. Visited is seeded with the names of
// modules already resident in the runtime.
type Context struct {
	Visited  map[string]bool
	Resolver *linker.Resolver
}

// NewContext creates an expansion context.
func NewContext(resident []string, r *linker.Resolver) *Context {
	c := &Context{Visited: make(map[string]bool, len(resident)), Resolver: r}
	for _, name := range resident {
		c.Visited[name] = true
	}
	return c
}

// ShortName returns the binary name for path.
func ShortName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Expand returns the binary at path and every binary it references that
// exists next to it, leaf to root. Names already visited are returned as
// StatusAlreadyLoaded without being read.
func Expand(c *Context, path string) []*Binary {
	name := ShortName(path)
	if c.Visited[name] {
		return []*Binary{{Path: path, Name: name, Status: StatusAlreadyLoaded}}
	}
	c.Visited[name] = true

	data, err := os.ReadFile(path)
	if err != nil {
		Logger().Debug("can't read binary", zap.String("path", path), zap.Error(err))
		return []*Binary{{Path: path, Name: name, Status: StatusFailed, Err: err}}
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		Logger().Debug("can't parse binary", zap.String("path", path), zap.Error(err))
		return []*Binary{{Path: path, Name: name, Data: data, Status: StatusFailed,
			Err: errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode "+filepath.Base(path))}}
	}
	if c.Resolver != nil {
		c.Resolver.Add(name, m)
	}

	var out []*Binary
	dir := filepath.Dir(path)
	for _, ref := range References(m) {
		refPath := filepath.Join(dir, ref+".wasm")
		if _, err := os.Stat(refPath); err != nil {
			continue
		}
		out = append(out, Expand(c, refPath)...)
	}
	return append(out, &Binary{Path: path, Name: name, Data: data, Module: m, Status: StatusOkay})
}

// References returns the binary names m refers to: its import modules
// followed by its dylink needed entries, without duplicates.
func References(m *wasm.Module) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range m.ImportModules() {
		add(name)
	}
	needed, err := m.DylinkNeeded()
	if err != nil {
		Logger().Debug("invalid dylink section", zap.Error(err))
	}
	for _, name := range needed {
		add(strings.TrimSuffix(name, ".wasm"))
	}
	return out
}
