package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// rawManifest mirrors the on-disk layout. IsRequired is a pointer so an
// absent key can default to true.
type rawManifest struct {
	Version              *Version           `json:"Version" toml:"Version"`
	MinimumLoaderVersion *Version           `json:"MinimumLoaderVersion" toml:"MinimumLoaderVersion"`
	ContentPackFor       *rawContentPackFor `json:"ContentPackFor" toml:"ContentPackFor"`
	Name                 string             `json:"Name" toml:"Name"`
	Author               string             `json:"Author" toml:"Author"`
	Description          string             `json:"Description" toml:"Description"`
	UniqueID             string             `json:"UniqueID" toml:"UniqueID"`
	EntryBinary          string             `json:"EntryBinary" toml:"EntryBinary"`
	Dependencies         []rawDependency    `json:"Dependencies" toml:"Dependencies"`
	UpdateKeys           []string           `json:"UpdateKeys" toml:"UpdateKeys"`
}

type rawContentPackFor struct {
	MinimumVersion *Version `json:"MinimumVersion" toml:"MinimumVersion"`
	UniqueID       string   `json:"UniqueID" toml:"UniqueID"`
}

type rawDependency struct {
	MinimumVersion *Version `json:"MinimumVersion" toml:"MinimumVersion"`
	IsRequired     *bool    `json:"IsRequired" toml:"IsRequired"`
	UniqueID       string   `json:"UniqueID" toml:"UniqueID"`
}

// ParseJSON decodes a manifest.json document.
func ParseJSON(data []byte) (*Manifest, error) {
	var raw rawManifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw.build(), nil
}

// ParseTOML decodes a manifest.toml document.
func ParseTOML(data []byte) (*Manifest, error) {
	var raw rawManifest
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}
	return raw.build(), nil
}

// ReadFile reads and decodes a manifest, choosing the format by extension.
// Display fields are stripped of newlines.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m *Manifest
	switch filepath.Ext(path) {
	case ".toml":
		m, err = ParseTOML(data)
	case ".json":
		m, err = ParseJSON(data)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	m.Name = stripNewlines(m.Name)
	m.Author = stripNewlines(m.Author)
	m.Description = stripNewlines(m.Description)
	return m, nil
}

func (r *rawManifest) build() *Manifest {
	m := &Manifest{
		Version:              r.Version,
		MinimumLoaderVersion: r.MinimumLoaderVersion,
		Name:                 r.Name,
		Author:               r.Author,
		Description:          r.Description,
		UniqueID:             r.UniqueID,
		EntryBinary:          r.EntryBinary,
		UpdateKeys:           r.UpdateKeys,
	}
	if r.ContentPackFor != nil {
		m.ContentPackFor = &ContentPackFor{
			UniqueID:       r.ContentPackFor.UniqueID,
			MinimumVersion: r.ContentPackFor.MinimumVersion,
		}
	}
	for _, d := range r.Dependencies {
		required := true
		if d.IsRequired != nil {
			required = *d.IsRequired
		}
		m.Dependencies = append(m.Dependencies, Dependency{
			UniqueID:       d.UniqueID,
			MinimumVersion: d.MinimumVersion,
			IsRequired:     required,
		})
	}
	return m
}
