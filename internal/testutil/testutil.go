// Package testutil provides testing utilities for nwbprep tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/spf13/afero"
)

// SampleLog is a small session log with one session-level event and two trials.
const SampleLog = `{"time": 0.0, "event": "session_start", "rig": "A"}
{"time": 1.0, "event": "trial_start", "trial": 0}
{"time": 1.5, "event": "response", "trial": 0, "correct": true}
{"time": 3.0, "event": "trial_start", "trial": 1}
{"time": 4.0, "event": "response", "trial": 1, "correct": false}
`

// Project is a temporary project tree with a shared metadata folder next to
// the project root.
type Project struct {
	// Root is the project_path of the project.
	Root string
	// MetadataDir holds the shared metadata files.
	MetadataDir string
}

// SetupProject creates an empty project under t.TempDir. The metadata folder
// is not created; use WriteMetadata to add files to it.
func SetupProject(t *testing.T) *Project {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "project")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("failed to create project root: %v", err)
	}

	return &Project{
		Root:        root,
		MetadataDir: filepath.Join(base, "metadata"),
	}
}

// Session resolves and creates the folder layout of a session in the project.
func (p *Project) Session(t *testing.T, subject, experiment, session string) *paths.Paths {
	t.Helper()

	sp, err := paths.New(p.Root, subject, experiment, session)
	if err != nil {
		t.Fatalf("failed to resolve session paths: %v", err)
	}
	if err := sp.Make(afero.NewOsFs()); err != nil {
		t.Fatalf("failed to create session folders: %v", err)
	}
	return sp
}

// WriteMetadata writes files into the shared metadata folder, creating it.
// The files map contains file names to contents.
func (p *Project) WriteMetadata(t *testing.T, files map[string]string) {
	t.Helper()

	if err := os.MkdirAll(p.MetadataDir, 0755); err != nil {
		t.Fatalf("failed to create metadata folder: %v", err)
	}
	WriteFiles(t, p.MetadataDir, files)
}

// WriteSessionLog writes a log file into the session's behavior/logs folder.
func WriteSessionLog(t *testing.T, sp *paths.Paths, name string, lines ...string) {
	t.Helper()

	content := strings.Join(lines, "\n")
	if len(lines) == 0 {
		content = SampleLog
	}
	WriteFiles(t, sp.Logs(), map[string]string{name: content})
}

// WriteFiles writes files under dir. The files map contains relative paths to
// file contents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// ListFiles returns the names of the regular files in dir, or nil if dir
// does not exist.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("failed to read %s: %v", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}
