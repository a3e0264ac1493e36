package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FolderType classifies a scanned folder.
type FolderType int

const (
	FolderInvalid FolderType = iota
	FolderCode
	FolderContentPack
	FolderIgnored
)

// ScanError explains why a folder has no usable manifest.
type ScanError int

const (
	ScanOK ScanError = iota
	ScanIgnoredFolder
	ScanEmptyFolder
	ScanManifestMissing
	ScanManifestInvalid
)

// Folder is one candidate mod folder found under the mods root.
type Folder struct {
	Manifest     *Manifest
	Root         string
	Dir          string
	ManifestPath string
	ErrorText    string
	Type         FolderType
	Error        ScanError
}

// RelativePath returns Dir relative to Root, using forward slashes.
func (f Folder) RelativePath() string {
	rel, err := filepath.Rel(f.Root, f.Dir)
	if err != nil {
		return f.Dir
	}
	return filepath.ToSlash(rel)
}

// DisplayName is the manifest name, or the folder path when there is none.
func (f Folder) DisplayName() string {
	if f.Manifest != nil && strings.TrimSpace(f.Manifest.Name) != "" {
		return f.Manifest.Name
	}
	return f.RelativePath()
}

var ignoredNames = regexp.MustCompile(`(?i)^(?:__folder_managed_by_vortex|\._.*|\.DS_Store|__MACOSX|desktop\.ini|Thumbs\.db)$`)

var ignoredExtensions = map[string]bool{
	".doc": true, ".docx": true, ".md": true, ".rtf": true, ".txt": true,
	".bmp": true, ".gif": true, ".ico": true, ".jpeg": true, ".jpg": true, ".png": true, ".psd": true, ".tif": true,
	".rar": true, ".zip": true,
	".backup": true, ".bak": true, ".old": true,
	".url": true, ".lnk": true,
}

// Scanner finds mod folders and parses their manifests.
type Scanner struct {
	// Jobs bounds parallel manifest parsing; zero means GOMAXPROCS.
	Jobs int
}

// Folders walks root and returns one Folder per candidate mod, in directory
// order. Only a failure to read root itself is returned as an error.
func (s *Scanner) Folders(ctx context.Context, root string) ([]Folder, error) {
	root = filepath.Clean(root)
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("read mods folder: %w", err)
	}

	folders := s.walk(root, root)
	if err := s.parseManifests(ctx, folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (s *Scanner) walk(root, dir string) []Folder {
	isRoot := dir == root
	if !isRoot {
		name := filepath.Base(dir)
		if strings.HasPrefix(name, ".") {
			return []Folder{{
				Root: root, Dir: dir, Type: FolderIgnored, Error: ScanIgnoredFolder,
				ErrorText: "disabled by dot convention",
			}}
		}
		if !isRelevant(name, true) {
			return nil
		}
	}

	if !isRoot && !isSearchFolder(dir) {
		return []Folder{readFolder(root, dir)}
	}

	var out []Folder
	for _, sub := range subdirs(dir) {
		out = append(out, s.walk(root, sub)...)
	}
	if !isRoot {
		out = consolidate(root, dir, out)
	}
	return out
}

// consolidate folds a collection of empty subfolders into its parent.
func consolidate(root, parent string, subs []Folder) []Folder {
	if len(subs) <= 1 {
		return subs
	}
	for _, f := range subs {
		if f.Error != ScanEmptyFolder {
			return subs
		}
	}
	return []Folder{{Root: root, Dir: parent, Error: ScanEmptyFolder, ErrorText: subs[0].ErrorText}}
}

func readFolder(root, dir string) Folder {
	path := findManifest(dir)
	if path == "" {
		if !hasRelevantFiles(dir) {
			return Folder{Root: root, Dir: dir, Error: ScanEmptyFolder, ErrorText: "it's an empty folder."}
		}
		return Folder{Root: root, Dir: dir, Error: ScanManifestMissing, ErrorText: "it contains files, but none of them are manifest.json."}
	}
	return Folder{Root: root, Dir: filepath.Dir(path), ManifestPath: path}
}

func (s *Scanner) parseManifests(ctx context.Context, folders []Folder) error {
	jobs := s.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range folders {
		if folders[i].ManifestPath == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := &folders[i]
			m, err := ReadFile(f.ManifestPath)
			if err != nil {
				f.Error = ScanManifestInvalid
				f.ErrorText = "parsing its manifest failed: " + err.Error()
				Logger().Debug("manifest parse failed", zap.String("path", f.ManifestPath), zap.Error(err))
				return nil
			}
			f.Manifest = m
			f.Type = classify(m)
			return nil
		})
	}
	return g.Wait()
}

func classify(m *Manifest) FolderType {
	isContentPack := m.ContentPackFor != nil && strings.TrimSpace(m.ContentPackFor.UniqueID) != ""
	isCode := m.HasEntryBinary()
	switch {
	case isContentPack == isCode:
		return FolderInvalid
	case isContentPack:
		return FolderContentPack
	default:
		return FolderCode
	}
}

// findManifest looks for a manifest in dir, descending through folders that
// contain nothing but a single subfolder.
func findManifest(dir string) string {
	for {
		for _, name := range []string{FileJSON, FileTOML} {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 1 || !entries[0].IsDir() {
			return ""
		}
		dir = filepath.Join(dir, entries[0].Name())
	}
}

func isSearchFolder(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	hasDirs := false
	for _, e := range entries {
		if !isRelevant(e.Name(), e.IsDir()) {
			continue
		}
		if !e.IsDir() {
			return false
		}
		hasDirs = true
	}
	return hasDirs
}

func hasRelevantFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !isRelevant(e.Name(), e.IsDir()) {
			continue
		}
		if !e.IsDir() || hasRelevantFiles(filepath.Join(dir, e.Name())) {
			return true
		}
	}
	return false
}

func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

func isRelevant(name string, isDir bool) bool {
	if !isDir && ignoredExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	return !ignoredNames.MatchString(name)
}
