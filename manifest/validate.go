package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

var slugInvalid = regexp.MustCompile(`(?i)[^a-z0-9_.-]`)

// IsSlug reports whether s only contains letters, numbers, underscores,
// periods or hyphens.
func IsSlug(s string) bool {
	return !slugInvalid.MatchString(s)
}

// invalidFileNameChars are rejected in EntryBinary on every platform so a
// manifest is portable.
const invalidFileNameChars = "<>:\"/\\|?*"

func hasInvalidFileNameChars(name string) bool {
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidFileNameChars, r) {
			return true
		}
	}
	return false
}

// ValidateFields checks the manifest's own fields. The returned message reads
// as the end of "failed loading <mod> because its ...".
func ValidateFields(m *Manifest) (string, bool) {
	hasBinary := m.HasEntryBinary()
	isContentPack := m.ContentPackFor != nil

	if hasBinary == isContentPack {
		if hasBinary {
			return "manifest sets both EntryBinary and ContentPackFor, which are mutually exclusive.", false
		}
		return "manifest has no EntryBinary or ContentPackFor field; must specify one.", false
	}

	if hasBinary {
		if hasInvalidFileNameChars(m.EntryBinary) {
			return fmt.Sprintf("manifest has invalid filename '%s' for the EntryBinary field.", m.EntryBinary), false
		}
	} else if strings.TrimSpace(m.ContentPackFor.UniqueID) == "" {
		return "manifest declares ContentPackFor without its required UniqueID field.", false
	}

	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "Name")
	}
	if m.Version.IsZero() {
		missing = append(missing, "Version")
	}
	if strings.TrimSpace(m.UniqueID) == "" {
		missing = append(missing, "UniqueID")
	}
	if len(missing) > 0 {
		return fmt.Sprintf("manifest is missing required fields (%s).", strings.Join(missing, ", ")), false
	}

	if !IsSlug(m.UniqueID) {
		return "manifest specifies an invalid ID (IDs must only contain letters, numbers, underscores, periods, or hyphens).", false
	}

	for _, d := range m.Dependencies {
		if strings.TrimSpace(d.UniqueID) == "" {
			return "manifest has a Dependencies entry with no UniqueID field.", false
		}
		if !IsSlug(d.UniqueID) {
			return "manifest has a Dependencies entry with an invalid UniqueID field (IDs must only contain letters, numbers, underscores, periods, or hyphens).", false
		}
	}
	return "", true
}
