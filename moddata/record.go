package moddata

import (
	"fmt"
	"strings"

	"github.com/wippyai/modhost/manifest"
)

// Status is a compatibility override for a mod.
type Status int

const (
	StatusNone Status = iota
	StatusObsolete
	StatusAssumeBroken
	StatusAssumeCompatible
)

func (s Status) String() string {
	switch s {
	case StatusObsolete:
		return "Obsolete"
	case StatusAssumeBroken:
		return "AssumeBroken"
	case StatusAssumeCompatible:
		return "AssumeCompatible"
	default:
		return "None"
	}
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusNone, StatusObsolete, StatusAssumeBroken, StatusAssumeCompatible} {
		if strings.EqualFold(st.String(), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return StatusNone, fmt.Errorf("unknown status %q", s)
}

// FieldKey names the value a versioned field carries.
type FieldKey int

const (
	FieldUpdateKey FieldKey = iota
	FieldStatus
	FieldStatusReasonPhrase
	FieldStatusReasonDetails
)

var fieldKeyNames = map[string]FieldKey{
	"updatekey":           FieldUpdateKey,
	"status":              FieldStatus,
	"statusreasonphrase":  FieldStatusReasonPhrase,
	"statusreasondetails": FieldStatusReasonDetails,
}

// ParseFieldKey parses a field key name, case-insensitively.
func ParseFieldKey(s string) (FieldKey, error) {
	if k, ok := fieldKeyNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown field key %q", s)
}

// Field is a value that applies to a range of mod versions.
type Field struct {
	LowerVersion *manifest.Version
	UpperVersion *manifest.Version
	Value        string
	Key          FieldKey
	// IsDefault fields only apply when the manifest lacks its own value.
	IsDefault bool
}

// IsMatch reports whether the field applies to the given manifest.
func (f Field) IsMatch(m *manifest.Manifest) bool {
	if m == nil || m.Version == nil {
		return false
	}
	if f.IsDefault && hasManifestValue(m, f.Key) {
		return false
	}
	if f.LowerVersion != nil && m.Version.IsOlderThan(f.LowerVersion) {
		return false
	}
	if f.UpperVersion != nil && m.Version.IsNewerThan(f.UpperVersion) {
		return false
	}
	return true
}

func hasManifestValue(m *manifest.Manifest, key FieldKey) bool {
	if key != FieldUpdateKey {
		return false
	}
	for _, k := range m.UpdateKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// Record is the compatibility entry for one mod.
type Record struct {
	ID               string
	DisplayName      string
	FormerIDs        []string
	Fields           []Field
	SuppressWarnings Warning
}

// HasID reports whether id is the record's ID or one of its former IDs.
func (r *Record) HasID(id string) bool {
	id = strings.TrimSpace(id)
	if strings.EqualFold(r.ID, id) {
		return true
	}
	for _, f := range r.FormerIDs {
		if strings.EqualFold(f, id) {
			return true
		}
	}
	return false
}

// DefaultUpdateKey returns the update key used when a manifest has none.
func (r *Record) DefaultUpdateKey() string {
	for _, f := range r.Fields {
		if f.Key == FieldUpdateKey && f.IsDefault && strings.TrimSpace(f.Value) != "" {
			return f.Value
		}
	}
	return ""
}

// VersionedFields resolves the fields that apply to m.
func (r *Record) VersionedFields(m *manifest.Manifest) *VersionedFields {
	out := &VersionedFields{Record: r, DisplayName: r.DisplayName}
	for _, f := range r.Fields {
		if !f.IsMatch(m) {
			continue
		}
		switch f.Key {
		case FieldUpdateKey:
			out.UpdateKey = f.Value
		case FieldStatus:
			// values are validated on load
			out.Status, _ = ParseStatus(f.Value)
			out.StatusUpperVersion = f.UpperVersion
		case FieldStatusReasonPhrase:
			out.StatusReasonPhrase = f.Value
		case FieldStatusReasonDetails:
			out.StatusReasonDetails = f.Value
		}
	}
	return out
}

// VersionedFields is a Record resolved against one manifest version.
type VersionedFields struct {
	Record              *Record
	StatusUpperVersion  *manifest.Version
	DisplayName         string
	UpdateKey           string
	StatusReasonPhrase  string
	StatusReasonDetails string
	Status              Status
}
