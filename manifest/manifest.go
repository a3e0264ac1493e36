package manifest

import "strings"

// File names recognized as a mod manifest, in lookup order.
const (
	FileJSON = "manifest.json"
	FileTOML = "manifest.toml"
)

// Manifest is the declared metadata of one mod.
type Manifest struct {
	Version              *Version
	MinimumLoaderVersion *Version
	ContentPackFor       *ContentPackFor
	Name                 string
	Author               string
	Description          string
	UniqueID             string
	EntryBinary          string
	Dependencies         []Dependency
	UpdateKeys           []string
}

// ContentPackFor names the code mod a content pack is read by.
type ContentPackFor struct {
	MinimumVersion *Version
	UniqueID       string
}

// Dependency is one entry of a manifest's dependency list.
type Dependency struct {
	MinimumVersion *Version
	UniqueID       string
	IsRequired     bool
}

// IsContentPack reports whether the manifest declares ContentPackFor.
func (m *Manifest) IsContentPack() bool {
	return m.ContentPackFor != nil
}

// HasEntryBinary reports whether the manifest declares a binary.
func (m *Manifest) HasEntryBinary() bool {
	return strings.TrimSpace(m.EntryBinary) != ""
}

// Edges returns the dependency IDs of the manifest mapped to whether each is
// required. ContentPackFor counts as a required dependency. Keys are
// lower-cased.
func (m *Manifest) Edges() map[string]bool {
	ids := make(map[string]bool)
	for _, d := range m.Dependencies {
		if id := strings.TrimSpace(d.UniqueID); id != "" {
			ids[strings.ToLower(id)] = d.IsRequired
		}
	}
	if m.ContentPackFor != nil {
		if id := strings.TrimSpace(m.ContentPackFor.UniqueID); id != "" {
			ids[strings.ToLower(id)] = true
		}
	}
	return ids
}

// ValidUpdateKeys returns the update keys that name a known site and ID.
func (m *Manifest) ValidUpdateKeys() []UpdateKey {
	var out []UpdateKey
	for _, raw := range m.UpdateKeys {
		if k := ParseUpdateKey(raw); k.Valid() {
			out = append(out, k)
		}
	}
	return out
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
