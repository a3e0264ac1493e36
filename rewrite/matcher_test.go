package rewrite

import "testing"

func TestMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		module   string
		field    string
		want     bool
	}{
		{"exact", []string{"env.sleep"}, "env", "sleep", true},
		{"exact other module", []string{"env.sleep"}, "other", "sleep", false},
		{"bare name", []string{"sleep"}, "anything", "sleep", true},
		{"module wildcard", []string{"modhost:patch.*"}, "modhost:patch", "replace", true},
		{"module wildcard other module", []string{"modhost:patch.*"}, "modhost", "replace", false},
		{"prefix", []string{"wasi_snapshot_preview1.path_*"}, "wasi_snapshot_preview1", "path_open", true},
		{"prefix miss", []string{"wasi_snapshot_preview1.path_*"}, "wasi_snapshot_preview1", "fd_write", false},
		{"several", []string{"a.x", "b.*", "c.y*"}, "c", "yes", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMatcher(tt.patterns...).Match(tt.module, tt.field); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.module, tt.field, got, tt.want)
			}
		})
	}
}
