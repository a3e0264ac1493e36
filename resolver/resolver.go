// Package resolver turns scanned mod folders into an ordered, validated list
// of mod records.
package resolver

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/mod"
	"github.com/wippyai/modhost/moddata"
)

// Resolver validates manifests and sorts mods by dependency.
type Resolver struct {
	// DB supplies compatibility overrides; nil means none.
	DB *moddata.Database
	// LoaderVersion is compared against each manifest's MinimumLoaderVersion.
	LoaderVersion *manifest.Version
	// FallbackURL is appended to the update links of broken mods.
	FallbackURL string
	// CaseInsensitivePaths allows the entry binary to match with different case.
	CaseInsensitivePaths bool
}

// ReadManifests scans root and builds one record per mod folder.
func (r *Resolver) ReadManifests(ctx context.Context, scanner *manifest.Scanner, root string) ([]*mod.Record, error) {
	folders, err := scanner.Folders(ctx, root)
	if err != nil {
		return nil, err
	}

	records := make([]*mod.Record, 0, len(folders))
	for _, f := range folders {
		var data *moddata.VersionedFields
		if f.Manifest != nil {
			if rec := r.DB.Get(f.Manifest.UniqueID); rec != nil {
				data = rec.VersionedFields(f.Manifest)
			}
			if data != nil && data.UpdateKey != "" {
				f.Manifest.UpdateKeys = []string{data.UpdateKey}
			}
		}

		ignored := f.Type == manifest.FolderIgnored
		rec := mod.NewRecord(f.DisplayName(), root, f.Dir, f.Manifest, data, ignored)
		switch {
		case ignored:
			rec.SetStatus(mod.StatusFound, mod.FailDisabledByDotConvention, f.ErrorText)
		case f.Error == manifest.ScanEmptyFolder:
			rec.Fail(mod.FailEmptyFolder, f.ErrorText)
		case f.Error != manifest.ScanOK:
			rec.Fail(mod.FailInvalidManifest, f.ErrorText)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ValidateManifests checks every not-yet-failed record and then marks
// duplicates. Problems are recorded on the records; nothing is returned.
func (r *Resolver) ValidateManifests(records []*mod.Record, validateFilesExist bool) {
	for _, rec := range records {
		if rec.Failed() || rec.IsIgnored {
			continue
		}
		r.validate(rec, validateFilesExist)
	}
	markDuplicates(records)
}

func (r *Resolver) validate(rec *mod.Record, validateFilesExist bool) {
	if data := rec.DataRecord; data != nil {
		switch data.Status {
		case moddata.StatusObsolete:
			rec.Fail(mod.FailObsolete, "it's obsolete: "+data.StatusReasonPhrase, technicalReason(data))
			return
		case moddata.StatusAssumeBroken:
			rec.Fail(mod.FailIncompatible, r.brokenMessage(rec), technicalReason(data))
			return
		}
	}

	if minVer := rec.Manifest.MinimumLoaderVersion; minVer != nil && r.LoaderVersion != nil && minVer.IsNewerThan(r.LoaderVersion) {
		rec.Fail(mod.FailIncompatible, fmt.Sprintf("it needs modhost %s or later. Please update modhost to the latest version to use this mod.", minVer))
		return
	}

	if msg, ok := manifest.ValidateFields(rec.Manifest); !ok {
		rec.Fail(mod.FailInvalidManifest, "its "+msg)
		return
	}

	if validateFilesExist && rec.Manifest.HasEntryBinary() {
		if _, ok := LookupFile(rec.DirectoryPath, rec.Manifest.EntryBinary, r.CaseInsensitivePaths); !ok {
			rec.Fail(mod.FailInvalidManifest, fmt.Sprintf("its binary '%s' doesn't exist.", rec.Manifest.EntryBinary))
		}
	}
}

func (r *Resolver) brokenMessage(rec *mod.Record) string {
	data := rec.DataRecord
	reason := data.StatusReasonPhrase
	if reason == "" {
		reason = "it's no longer compatible"
	}

	var urls []string
	for _, k := range rec.UpdateKeys(true) {
		if url := moddata.DefaultUpdateURL(k); url != "" {
			urls = append(urls, url)
		}
	}
	if r.FallbackURL != "" {
		urls = append(urls, r.FallbackURL)
	}

	msg := reason + ". Please check for a "
	if data.StatusUpperVersion == nil || rec.Manifest.Version == nil || rec.Manifest.Version.Equal(data.StatusUpperVersion.Version) {
		msg += "newer version"
	} else {
		msg += "version newer than " + data.StatusUpperVersion.String()
	}
	if len(urls) > 0 {
		msg += " at " + strings.Join(urls, " or ")
	}
	return msg
}

// technicalReason describes a compatibility override for the detail log.
func technicalReason(data *moddata.VersionedFields) string {
	var label string
	switch data.Status {
	case moddata.StatusAssumeBroken:
		label = "'assume broken'"
	case moddata.StatusAssumeCompatible:
		label = "'assume compatible'"
	case moddata.StatusObsolete:
		label = "obsolete"
	default:
		label = data.Status.String()
	}

	scope := "all versions"
	if data.StatusUpperVersion != nil {
		scope = "versions up to " + data.StatusUpperVersion.String()
	}

	var reasons []string
	for _, s := range []string{data.StatusReasonPhrase, data.StatusReasonDetails} {
		if strings.TrimSpace(s) != "" {
			reasons = append(reasons, s)
		}
	}
	reason := "no reason given"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ": ")
	}
	return fmt.Sprintf("marked %s in the compatibility list for %s: %s.", label, scope, reason)
}

func markDuplicates(records []*mod.Record) {
	groups := make(map[string][]*mod.Record)
	var keys []string
	for _, rec := range records {
		id := strings.ToLower(rec.ID())
		if id == "" {
			continue
		}
		if _, ok := groups[id]; !ok {
			keys = append(keys, id)
		}
		groups[id] = append(groups[id], rec)
	}

	for _, id := range keys {
		group := groups[id]
		if len(group) < 2 {
			continue
		}
		folders := make([]string, len(group))
		for i, rec := range group {
			folders[i] = rec.RelativePathWithRoot()
		}
		sort.Strings(folders)
		msg := fmt.Sprintf("you have multiple copies of this mod installed. To fix this, delete these folders and reinstall the mod: %s.", strings.Join(folders, ", "))

		for _, rec := range group {
			if rec.Failed() {
				switch rec.FailReason {
				case mod.FailInvalidManifest, mod.FailLoadFailed, mod.FailMissingDependencies:
				default:
					continue
				}
			}
			rec.Fail(mod.FailDuplicate, msg)
			Logger().Debug("duplicate mod", zap.String("mod", rec.DisplayName), zap.String("id", id))
		}
	}
}

// LookupFile finds name in dir. Without caseInsensitive the match must be
// exact even on filesystems that ignore case.
func LookupFile(dir, name string, caseInsensitive bool) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var fold string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == name {
			return e.Name(), true
		}
		if caseInsensitive && fold == "" && strings.EqualFold(e.Name(), name) {
			fold = e.Name()
		}
	}
	return fold, fold != ""
}
