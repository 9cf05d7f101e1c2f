package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestAtomicWriteFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := filepath.Join("/project", "recordings", "S1", "metadata", "S1_E1_01.yaml")

	if err := AtomicWriteFile(fsys, path, []byte("x: 1\n"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile() error = %v", err)
	}

	got, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "x: 1\n" {
		t.Errorf("content = %q, want %q", got, "x: 1\n")
	}

	entries, err := afero.ReadDir(fsys, filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	dir := t.TempDir()
	fsys := afero.NewOsFs()
	path := filepath.Join(dir, "task.json")

	if err := AtomicWriteFile(fsys, path, []byte("old"), 0644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWriteFile(fsys, path, []byte("new"), 0600); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestAtomicWriteFile_ReadOnlyFs(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())

	if err := AtomicWriteFile(fsys, "/out/a.yaml", []byte("x"), 0644); err == nil {
		t.Fatal("expected error writing to a read-only filesystem")
	}
}

func TestFileExists(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/data/dir", 0755)
	_ = afero.WriteFile(fsys, "/data/file.yaml", []byte("a: 1"), 0644)

	if !FileExists(fsys, "/data/file.yaml") {
		t.Error("FileExists(file) = false, want true")
	}
	if FileExists(fsys, "/data/dir") {
		t.Error("FileExists(dir) = true, want false")
	}
	if FileExists(fsys, "/data/missing.yaml") {
		t.Error("FileExists(missing) = true, want false")
	}
}
