// Package platform retargets imports of legacy host ABI modules to the
// modules the host currently provides.
package platform

import (
	"strings"

	"github.com/wippyai/modhost/wasm"
)

// Legacy module names that no longer exist in the host.
const (
	ModuleWASIUnstable  = "wasi_unstable"
	ModuleLegacyHostAPI = "modhost_legacy"
)

// DefaultSources lists the legacy modules removed from the host.
var DefaultSources = []string{ModuleWASIUnstable, ModuleLegacyHostAPI}

// Target is a host module and the names it exports.
type Target struct {
	Name    string
	Exports []string
}

// Map is built once per loading pass and only read afterwards.
type Map struct {
	removed map[string]bool
	targets []string
	// owner maps an export name to the first target module exporting it.
	owner map[string]string
}

// New builds a map that removes sources and resolves their fields against
// targets, in order.
func New(sources []string, targets ...Target) *Map {
	m := &Map{removed: make(map[string]bool), owner: make(map[string]string)}
	for _, s := range sources {
		m.removed[s] = true
	}
	for _, t := range targets {
		m.targets = append(m.targets, t.Name)
		for _, name := range t.Exports {
			if _, ok := m.owner[name]; !ok {
				m.owner[name] = t.Name
			}
		}
	}
	return m
}

// IsRemoved reports whether module is a removed source module.
func (m *Map) IsRemoved(module string) bool {
	return m != nil && m.removed[module]
}

// Lookup returns the target module exporting field.
func (m *Map) Lookup(field string) (string, bool) {
	if m == nil {
		return "", false
	}
	t, ok := m.owner[field]
	return t, ok
}

// References reports whether mod names any removed module, through its
// imports or its dylink needed list.
func (m *Map) References(mod *wasm.Module) bool {
	if m == nil {
		return false
	}
	for _, name := range mod.ImportModules() {
		if m.removed[name] {
			return true
		}
	}
	needed, _ := mod.DylinkNeeded()
	for _, n := range needed {
		if m.removed[strings.TrimSuffix(n, ".wasm")] {
			return true
		}
	}
	return false
}

// Apply retargets mod in place. Imports of removed modules move to the
// target exporting the same field; fields no target exports are left for the
// broken reference check. Needed entries naming removed modules are replaced
// by the target names. It reports whether anything changed.
func (m *Map) Apply(mod *wasm.Module) (bool, error) {
	if !m.References(mod) {
		return false, nil
	}

	changed := false
	for i := range mod.Imports {
		imp := &mod.Imports[i]
		if !m.removed[imp.Module] {
			continue
		}
		if target, ok := m.owner[imp.Name]; ok {
			imp.Module = target
			changed = true
		}
	}

	c := mod.Custom(wasm.CustomDylink)
	if c == nil {
		return changed, nil
	}
	d, err := wasm.ParseDylink(c.Data)
	if err != nil {
		return changed, err
	}
	var (
		needed   []string
		replaced bool
		seen     = make(map[string]bool)
	)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			needed = append(needed, name)
		}
	}
	for _, n := range d.Needed() {
		if m.removed[strings.TrimSuffix(n, ".wasm")] {
			replaced = true
			for _, t := range m.targets {
				add(t)
			}
			continue
		}
		add(n)
	}
	if replaced {
		d.SetNeeded(needed)
		c.Data = d.Encode()
		changed = true
	}
	return changed, nil
}
