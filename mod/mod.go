// Package mod holds the per-mod record threaded through scanning, validation,
// dependency resolution and loading.
package mod

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/moddata"
)

// Status is the resolution status of a mod.
type Status int

const (
	StatusFound Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusFailed {
		return "Failed"
	}
	return "Found"
}

// FailReason explains why a mod was not loaded.
type FailReason int

const (
	FailNone FailReason = iota
	FailDisabledByDotConvention
	FailDuplicate
	FailEmptyFolder
	FailIncompatible
	FailInvalidManifest
	FailLoadFailed
	FailMissingDependencies
	FailObsolete
)

var failReasonNames = [...]string{
	FailNone:                    "None",
	FailDisabledByDotConvention: "DisabledByDotConvention",
	FailDuplicate:               "Duplicate",
	FailEmptyFolder:             "EmptyFolder",
	FailIncompatible:            "Incompatible",
	FailInvalidManifest:         "InvalidManifest",
	FailLoadFailed:              "LoadFailed",
	FailMissingDependencies:     "MissingDependencies",
	FailObsolete:                "Obsolete",
}

func (r FailReason) String() string {
	if int(r) < len(failReasonNames) {
		return failReasonNames[r]
	}
	return fmt.Sprintf("FailReason(%d)", int(r))
}

// Warning re-exports the compatibility database's warning flags.
type Warning = moddata.Warning

const (
	WarningNone                = moddata.WarningNone
	WarningBrokenCodeLoaded    = moddata.WarningBrokenCodeLoaded
	WarningChangesSerializer   = moddata.WarningChangesSerializer
	WarningPatchesHost         = moddata.WarningPatchesHost
	WarningUsesDynamic         = moddata.WarningUsesDynamic
	WarningUsesUnvalidatedTick = moddata.WarningUsesUnvalidatedTick
	WarningNoUpdateKeys        = moddata.WarningNoUpdateKeys
	WarningAccessesConsole     = moddata.WarningAccessesConsole
	WarningAccessesFilesystem  = moddata.WarningAccessesFilesystem
	WarningAccessesShell       = moddata.WarningAccessesShell
)

// DependencyState tracks a mod through dependency sorting. It only moves
// forward: Queued, Checking, then Sorted or Failed.
type DependencyState int

const (
	DependencyQueued DependencyState = iota
	DependencyChecking
	DependencySorted
	DependencyFailed
)

func (s DependencyState) String() string {
	switch s {
	case DependencyChecking:
		return "Checking"
	case DependencySorted:
		return "Sorted"
	case DependencyFailed:
		return "Failed"
	default:
		return "Queued"
	}
}

// Record is a mod's manifest plus its resolution state.
type Record struct {
	Manifest   *manifest.Manifest
	DataRecord *moddata.VersionedFields

	DisplayName   string
	RootPath      string
	DirectoryPath string
	Error         string
	ErrorDetails  string

	Status     Status
	FailReason FailReason
	IsIgnored  bool

	warnings Warning
	depState DependencyState
}

// NewRecord creates a record for a mod folder.
func NewRecord(displayName, rootPath, dirPath string, m *manifest.Manifest, data *moddata.VersionedFields, ignored bool) *Record {
	return &Record{
		DisplayName:   displayName,
		RootPath:      rootPath,
		DirectoryPath: dirPath,
		Manifest:      m,
		DataRecord:    data,
		IsIgnored:     ignored,
	}
}

// RelativeDirectoryPath is the mod folder relative to the mods root.
func (r *Record) RelativeDirectoryPath() string {
	rel, err := filepath.Rel(r.RootPath, r.DirectoryPath)
	if err != nil {
		return r.DirectoryPath
	}
	return filepath.ToSlash(rel)
}

// RelativePathWithRoot prefixes RelativeDirectoryPath with the root folder name.
func (r *Record) RelativePathWithRoot() string {
	return filepath.ToSlash(filepath.Join(filepath.Base(r.RootPath), r.RelativeDirectoryPath()))
}

// SetStatus marks the record with a status, reason and message.
func (r *Record) SetStatus(status Status, reason FailReason, msg string, details ...string) *Record {
	r.Status = status
	r.FailReason = reason
	r.Error = msg
	r.ErrorDetails = strings.Join(details, "")
	return r
}

// Fail marks the record failed.
func (r *Record) Fail(reason FailReason, msg string, details ...string) *Record {
	return r.SetStatus(StatusFailed, reason, msg, details...)
}

// Failed reports whether the record is marked failed.
func (r *Record) Failed() bool {
	return r.Status == StatusFailed
}

// SetWarning adds warning flags.
func (r *Record) SetWarning(w Warning) *Record {
	r.warnings |= w
	return r
}

// Warnings returns the raised flags minus those the compatibility list suppresses.
func (r *Record) Warnings() Warning {
	w := r.warnings
	if r.DataRecord != nil && r.DataRecord.Record != nil {
		w &^= r.DataRecord.Record.SuppressWarnings
	}
	return w
}

// HasWarnings reports whether any of the given flags are visible.
func (r *Record) HasWarnings(w Warning) bool {
	return r.Warnings().Has(w)
}

// ID returns the trimmed unique ID, or "" without a manifest.
func (r *Record) ID() string {
	if r.Manifest == nil {
		return ""
	}
	return strings.TrimSpace(r.Manifest.UniqueID)
}

// HasID reports whether the record's unique ID equals id, ignoring case.
func (r *Record) HasID(id string) bool {
	own := r.ID()
	return own != "" && strings.EqualFold(own, strings.TrimSpace(id))
}

// IsContentPack reports whether the mod is a content pack.
func (r *Record) IsContentPack() bool {
	return r.Manifest != nil && r.Manifest.ContentPackFor != nil
}

// RequiredModIDs returns dependency IDs (lower-cased), optionally including
// optional ones.
func (r *Record) RequiredModIDs(includeOptional bool) []string {
	if r.Manifest == nil {
		return nil
	}
	var out []string
	for id, required := range r.Manifest.Edges() {
		if required || includeOptional {
			out = append(out, id)
		}
	}
	return out
}

// UpdateKeys returns the parsed manifest update keys.
func (r *Record) UpdateKeys(validOnly bool) []manifest.UpdateKey {
	if r.Manifest == nil {
		return nil
	}
	if validOnly {
		return r.Manifest.ValidUpdateKeys()
	}
	var out []manifest.UpdateKey
	for _, raw := range r.Manifest.UpdateKeys {
		out = append(out, manifest.ParseUpdateKey(raw))
	}
	return out
}

// HasValidUpdateKeys reports whether the manifest names at least one valid key.
func (r *Record) HasValidUpdateKeys() bool {
	return len(r.UpdateKeys(true)) > 0
}

// DependencyState returns the sorting state.
func (r *Record) DependencyState() DependencyState {
	return r.depState
}

// SetDependencyState advances the sorting state. Moving backwards, or out of
// Sorted or Failed, is an error; setting the current state again is not.
func (r *Record) SetDependencyState(s DependencyState) error {
	if s == r.depState {
		return nil
	}
	if s < r.depState || r.depState >= DependencySorted {
		return fmt.Errorf("mod %q: dependency state cannot move from %v to %v", r.DisplayName, r.depState, s)
	}
	r.depState = s
	return nil
}

func (r *Record) String() string {
	if id := r.ID(); id != "" {
		return r.DisplayName + " (" + id + ")"
	}
	return r.DisplayName
}
