package session

import (
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/spf13/afero"
)

func setupSession(t *testing.T, fsys afero.Fs, root, subject, experiment, id string, files ...string) *paths.Paths {
	t.Helper()

	p, err := paths.New(root, subject, experiment, id)
	if err != nil {
		t.Fatalf("paths.New() error = %v", err)
	}
	if err := p.Make(fsys); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	for _, f := range files {
		if err := afero.WriteFile(fsys, f, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	return p
}

func TestList(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/project"

	p1, _ := paths.New(root, "S1", "E1", "01")
	p2, _ := paths.New(root, "S2", "E1", "02")

	setupSession(t, fsys, root, "S1", "E1", "01",
		filepath.Join(p1.Logs(), "events.jsonl"),
		filepath.Join(p1.Task(), "S1_E1_01.json"),
		filepath.Join(p1.Metadata(), "S1_E1_01.yaml"),
	)
	setupSession(t, fsys, root, "S2", "E1", "02")
	_ = fsys.MkdirAll(filepath.Join(root, "recordings", ".hidden", "E1", "01"), 0755)
	writeLockFile(t, fsys, p2.Session(), deadPID)

	sessions, err := List(fsys, root)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("List() returned %d sessions, want 2", len(sessions))
	}

	first := sessions[0]
	if first.Name != "S1_E1_01" {
		t.Errorf("sessions[0].Name = %q", first.Name)
	}
	if !first.HasLogs || !first.HasTask || !first.HasMetadata || !first.Prepared() {
		t.Errorf("sessions[0] = %+v, want logs, task and metadata", first)
	}

	second := sessions[1]
	if second.Name != "S2_E1_02" || second.Prepared() || second.HasTask {
		t.Errorf("sessions[1] = %+v, want unprepared S2_E1_02", second)
	}
	if second.IsLocked || second.LockInfo == nil {
		t.Errorf("stale lock should be reported but not held: %+v", second)
	}
}

func TestList_NoRecordings(t *testing.T) {
	sessions, err := List(afero.NewMemMapFs(), "/empty")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("List() = %d sessions, want 0", len(sessions))
	}
}

func TestFindUnprepared(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/project"
	p1, _ := paths.New(root, "S1", "E1", "01")

	setupSession(t, fsys, root, "S1", "E1", "01", filepath.Join(p1.Metadata(), "S1_E1_01.yaml"))
	setupSession(t, fsys, root, "S1", "E1", "02")

	pending, err := FindUnprepared(fsys, root)
	if err != nil {
		t.Fatalf("FindUnprepared() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "S1_E1_02" {
		t.Errorf("FindUnprepared() = %+v, want only S1_E1_02", pending)
	}
}

func TestCleanupStaleLocks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/project"
	p := setupSession(t, fsys, root, "S1", "E1", "01")
	writeLockFile(t, fsys, p.Session(), deadPID)

	cleaned, err := CleanupStaleLocks(fsys, root)
	if err != nil {
		t.Fatalf("CleanupStaleLocks() error = %v", err)
	}
	if len(cleaned) != 1 || cleaned[0] != "S1_E1_01" {
		t.Errorf("CleanupStaleLocks() = %v", cleaned)
	}

	if info := GetInfo(fsys, p); info.LockInfo != nil {
		t.Error("lock file still present after cleanup")
	}
}
