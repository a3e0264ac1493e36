package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const codeManifest = `{"Name":"A","Version":"1.0.0","UniqueID":"a","EntryBinary":"a.wasm"}`

func TestScannerFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ModA", FileJSON), codeManifest)
	writeFile(t, filepath.Join(root, "ModA", "a.wasm"), "x")
	writeFile(t, filepath.Join(root, "Nested", "Inner", FileTOML), "Name = \"B\"\nVersion = \"1.0\"\nUniqueID = \"b\"\n[ContentPackFor]\nUniqueID = \"a\"\n")
	writeFile(t, filepath.Join(root, "Nested", "readme.txt"), "docs")
	writeFile(t, filepath.Join(root, ".Disabled", FileJSON), codeManifest)
	writeFile(t, filepath.Join(root, "Empty", "notes.md"), "docs")
	writeFile(t, filepath.Join(root, "NoManifest", "data.bin"), "x")
	writeFile(t, filepath.Join(root, "Broken", FileJSON), "{not json")
	writeFile(t, filepath.Join(root, "Collection", "One", FileJSON), `{"Name":"C","Version":"1.0.0","UniqueID":"c","EntryBinary":"c.wasm"}`)
	writeFile(t, filepath.Join(root, "Collection", "Two", FileJSON), `{"Name":"D","Version":"1.0.0","UniqueID":"d","EntryBinary":"d.wasm"}`)

	s := &Scanner{Jobs: 2}
	folders, err := s.Folders(context.Background(), root)
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}

	byPath := make(map[string]Folder)
	var order []string
	for _, f := range folders {
		byPath[f.RelativePath()] = f
		order = append(order, f.RelativePath())
	}

	want := []string{".Disabled", "Broken", "Collection/One", "Collection/Two", "Empty", "ModA", "Nested/Inner", "NoManifest"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("folders = %v, want %v", order, want)
	}

	if f := byPath[".Disabled"]; f.Type != FolderIgnored || f.ErrorText != "disabled by dot convention" {
		t.Errorf(".Disabled = %+v", f)
	}
	if f := byPath["ModA"]; f.Type != FolderCode || f.Manifest == nil || f.Manifest.UniqueID != "a" {
		t.Errorf("ModA = %+v", f)
	}
	if f := byPath["Nested/Inner"]; f.Type != FolderContentPack {
		t.Errorf("Nested/Inner type = %v, want content pack", f.Type)
	}
	if f := byPath["Empty"]; f.Error != ScanEmptyFolder || f.ErrorText != "it's an empty folder." {
		t.Errorf("Empty = %+v", f)
	}
	if f := byPath["NoManifest"]; f.Error != ScanManifestMissing || f.ErrorText != "it contains files, but none of them are manifest.json." {
		t.Errorf("NoManifest = %+v", f)
	}
	if f := byPath["Broken"]; f.Error != ScanManifestInvalid || !strings.HasPrefix(f.ErrorText, "parsing its manifest failed: ") {
		t.Errorf("Broken = %+v", f)
	}
}

func TestScannerMissingRoot(t *testing.T) {
	s := &Scanner{}
	if _, err := s.Folders(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestReadFileStripsNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileJSON)
	writeFile(t, path, `{"Name":"Multi\nLine","Author":"a\r\nb","Version":"1.0.0","UniqueID":"x","EntryBinary":"x.wasm"}`)
	m, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if m.Name != "MultiLine" || m.Author != "ab" {
		t.Errorf("Name = %q, Author = %q", m.Name, m.Author)
	}
}
