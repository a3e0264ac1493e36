package rewrite

import "strings"

// Matcher matches imports against patterns:
//   - "module.name" - exact match
//   - "name" - matches any module with this function name
//   - "module.*" - matches all imports from module
//   - "module.prefix*" - matches names in module starting with prefix
type Matcher struct {
	exact    map[string]bool
	names    map[string]bool
	modules  map[string]bool
	prefixes map[string][]string
}

// NewMatcher creates a matcher from a list of patterns.
func NewMatcher(patterns ...string) *Matcher {
	m := &Matcher{
		exact:    make(map[string]bool),
		names:    make(map[string]bool),
		modules:  make(map[string]bool),
		prefixes: make(map[string][]string),
	}
	for _, p := range patterns {
		module, name, qualified := strings.Cut(p, ".")
		switch {
		case !qualified:
			m.names[p] = true
		case name == "*":
			m.modules[module] = true
		case strings.HasSuffix(name, "*"):
			m.prefixes[module] = append(m.prefixes[module], strings.TrimSuffix(name, "*"))
		default:
			m.exact[p] = true
		}
	}
	return m
}

// Match returns true if the import matches any pattern.
func (m *Matcher) Match(module, name string) bool {
	if m.modules[module] || m.exact[module+"."+name] || m.names[name] {
		return true
	}
	for _, prefix := range m.prefixes[module] {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
