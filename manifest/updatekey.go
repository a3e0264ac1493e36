package manifest

import (
	"strings"
)

// Site identifies a mod hosting site in an update key.
type Site int

const (
	SiteUnknown Site = iota
	SiteChucklefish
	SiteCurseForge
	SiteGitHub
	SiteModDrop
	SiteNexus
)

var siteNames = map[Site]string{
	SiteChucklefish: "Chucklefish",
	SiteCurseForge:  "CurseForge",
	SiteGitHub:      "GitHub",
	SiteModDrop:     "ModDrop",
	SiteNexus:       "Nexus",
}

func (s Site) String() string {
	if n, ok := siteNames[s]; ok {
		return n
	}
	return "Unknown"
}

func parseSite(raw string) Site {
	for s, n := range siteNames {
		if strings.EqualFold(n, raw) {
			return s
		}
	}
	return SiteUnknown
}

// UpdateKey is a parsed "Site:ID" or "Site:ID@subkey" reference.
type UpdateKey struct {
	Raw    string
	ID     string
	Subkey string
	Site   Site
}

// ParseUpdateKey parses a raw update key. Invalid keys are returned with
// Valid() false rather than an error.
func ParseUpdateKey(raw string) UpdateKey {
	key := UpdateKey{Raw: strings.TrimSpace(raw)}
	parts := strings.Split(key.Raw, ":")
	if len(parts) != 2 {
		return key
	}
	id := strings.TrimSpace(parts[1])
	if at := strings.SplitN(id, "@", 2); len(at) == 2 {
		id = strings.TrimSpace(at[0])
		key.Subkey = strings.TrimSpace("@" + at[1])
	}
	key.ID = id
	key.Site = parseSite(strings.TrimSpace(parts[0]))
	return key
}

// Valid reports whether the key names a known site and a non-empty ID.
func (k UpdateKey) Valid() bool {
	return k.Site != SiteUnknown && k.ID != ""
}

func (k UpdateKey) String() string {
	if !k.Valid() {
		return k.Raw
	}
	return k.Site.String() + ":" + k.ID + k.Subkey
}
