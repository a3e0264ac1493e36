package moddata

import (
	"strings"

	"github.com/wippyai/modhost/manifest"
)

// Database answers compatibility lookups by mod ID.
type Database struct {
	records []*Record
	urlFor  func(manifest.UpdateKey) string
}

// New returns a database over records. urlFor maps an update key to a mod
// page; nil uses DefaultUpdateURL.
func New(records []*Record, urlFor func(manifest.UpdateKey) string) *Database {
	if urlFor == nil {
		urlFor = DefaultUpdateURL
	}
	return &Database{records: records, urlFor: urlFor}
}

// Empty returns a database with no records.
func Empty() *Database {
	return New(nil, nil)
}

// All returns every record.
func (d *Database) All() []*Record {
	return d.records
}

// Get finds the record for id, matching former IDs too.
func (d *Database) Get(id string) *Record {
	if d == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	for _, r := range d.records {
		if r.HasID(id) {
			return r
		}
	}
	return nil
}

// PageURL returns the mod page for id from its first update key field.
func (d *Database) PageURL(id string) string {
	r := d.Get(id)
	if r == nil {
		return ""
	}
	for _, f := range r.Fields {
		if f.Key == FieldUpdateKey {
			return d.urlFor(manifest.ParseUpdateKey(f.Value))
		}
	}
	return ""
}

// DefaultUpdateURL maps an update key to its public mod page.
func DefaultUpdateURL(k manifest.UpdateKey) string {
	if !k.Valid() {
		return ""
	}
	switch k.Site {
	case manifest.SiteNexus:
		return "https://www.nexusmods.com/mods/" + k.ID
	case manifest.SiteGitHub:
		return "https://github.com/" + k.ID + "/releases"
	case manifest.SiteModDrop:
		return "https://www.moddrop.com/mod/" + k.ID
	case manifest.SiteCurseForge:
		return "https://www.curseforge.com/projects/" + k.ID
	case manifest.SiteChucklefish:
		return "https://community.playstarbound.com/resources/" + k.ID
	default:
		return ""
	}
}
