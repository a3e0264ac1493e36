package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// Version is a semantic version as written in manifests. Two-part versions
// such as "1.2" are accepted and read as "1.2.0".
type Version struct {
	semver.Version
}

// ParseVersion parses a manifest version string.
func ParseVersion(s string) (*Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version")
	}
	v, err := semver.NewVersion(normalizeVersion(s))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return &Version{Version: *v}, nil
}

// MustParseVersion is ParseVersion that panics on error. Use for constants.
func MustParseVersion(s string) *Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// normalizeVersion pads a missing minor or patch component.
func normalizeVersion(s string) string {
	s = strings.TrimPrefix(s, "v")
	core, rest := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, rest = s[:i], s[i:]
	}
	switch strings.Count(core, ".") {
	case 0:
		core += ".0.0"
	case 1:
		core += ".0"
	}
	return core + rest
}

// IsZero reports whether v is nil or 0.0.0 with no pre-release tag.
func (v *Version) IsZero() bool {
	return v == nil || (v.Major == 0 && v.Minor == 0 && v.Patch == 0 && v.PreRelease == "")
}

// IsOlderThan reports whether v precedes o.
func (v *Version) IsOlderThan(o *Version) bool {
	return v.Version.LessThan(o.Version)
}

// IsNewerThan reports whether v follows o.
func (v *Version) IsNewerThan(o *Version) bool {
	return o.Version.LessThan(v.Version)
}

func (v *Version) String() string {
	if v == nil {
		return ""
	}
	return v.Version.String()
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and TOML.
func (v *Version) UnmarshalText(text []byte) error {
	p, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = *p
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.Version.String()), nil
}

// UnmarshalJSON accepts the same forms as UnmarshalText. It shadows the
// stricter decoder of the embedded semver.Version.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("version must be a string: %w", err)
	}
	return v.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Version.String())
}
