package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/spf13/afero"
)

// deadPID is a PID that is not expected to belong to a running process.
const deadPID = 1 << 22

func writeLockFile(t *testing.T, fsys afero.Fs, dir string, pid int) {
	t.Helper()
	writeLockFileOn(t, fsys, dir, pid, localHostname())
}

func writeLockFileOn(t *testing.T, fsys afero.Fs, dir string, pid int, hostname string) {
	t.Helper()
	data, err := json.Marshal(Lock{Session: "S1_E1_01", PID: pid, Hostname: hostname, StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal lock: %v", err)
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fsys, filepath.Join(dir, LockFileName), data, 0644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
}

func TestLocker_AcquireRelease(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, logging.NopLogger())
	dir := "/p/recordings/S1/E1/01"

	lock, err := locker.Acquire(dir, "S1_E1_01", "run-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q", lock.Path())
	}

	held, locked := locker.IsLocked(dir)
	if !locked {
		t.Fatal("IsLocked() = false after Acquire")
	}
	if held.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", held.RunID)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, locked := locker.IsLocked(dir); locked {
		t.Error("IsLocked() = true after Release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestLocker_SecondAcquireFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)
	dir := "/p/recordings/S1/E1/01"

	lock, err := locker.Acquire(dir, "S1_E1_01", "run-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	_, err = locker.Acquire(dir, "S1_E1_01", "run-2")
	if !errors.Is(err, errors.ErrSessionLocked) {
		t.Fatalf("second Acquire() error = %v, want ErrSessionLocked", err)
	}
}

func TestLocker_StaleLockIsReplaced(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dir := "/p/recordings/S1/E1/01"
	writeLockFile(t, fsys, dir, deadPID)

	locker := NewLocker(fsys, nil)
	if _, locked := locker.IsLocked(dir); locked {
		t.Fatal("stale lock reported as held")
	}

	lock, err := locker.Acquire(dir, "S1_E1_01", "run-1")
	if err != nil {
		t.Fatalf("Acquire() over stale lock error = %v", err)
	}
	defer lock.Release()

	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
}

func TestLocker_ReleaseLeavesForeignLock(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)
	dir := "/p/s"

	lock, err := locker.Acquire(dir, "S1_E1_01", "")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Another process took over the file
	writeLockFile(t, fsys, dir, deadPID)

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := afero.Exists(fsys, filepath.Join(dir, LockFileName)); !ok {
		t.Error("Release() removed a lock owned by another PID")
	}
}

func TestLocker_CleanStale(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)

	cleaned, err := locker.CleanStale("/p/none")
	if err != nil || cleaned {
		t.Errorf("CleanStale(no lock) = %v, %v", cleaned, err)
	}

	writeLockFile(t, fsys, "/p/stale", deadPID)
	cleaned, err = locker.CleanStale("/p/stale")
	if err != nil || !cleaned {
		t.Errorf("CleanStale(stale) = %v, %v; want true, nil", cleaned, err)
	}

	writeLockFile(t, fsys, "/p/live", os.Getpid())
	cleaned, err = locker.CleanStale("/p/live")
	if err != nil || cleaned {
		t.Errorf("CleanStale(live) = %v, %v; want false, nil", cleaned, err)
	}
}

func TestLocker_ReadCorrupt(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, filepath.Join("/p", LockFileName), []byte("{not json"), 0644)

	if _, err := NewLocker(fsys, nil).Read("/p"); err == nil {
		t.Error("Read() of corrupt lock should fail")
	}
}

// writeUnreadableLock leaves an empty lock file last modified age ago, as a run
// that crashed before writing its lock would.
func writeUnreadableLock(t *testing.T, fsys afero.Fs, dir string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, LockFileName)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fsys, path, nil, 0644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	modTime := time.Now().Add(-age)
	if err := fsys.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestLocker_UnreadableLockPastGrace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)
	dir := "/p/recordings/S1/E1/01"

	writeUnreadableLock(t, fsys, dir, time.Minute)
	lock, locked := locker.IsLocked(dir)
	if locked {
		t.Error("IsLocked() = true for an old unreadable lock")
	}
	if lock == nil || !lock.Unreadable() {
		t.Errorf("IsLocked() lock = %+v, want unreadable lock", lock)
	}

	cleaned, err := locker.CleanStale(dir)
	if err != nil || !cleaned {
		t.Fatalf("CleanStale() = %v, %v; want true, nil", cleaned, err)
	}

	writeUnreadableLock(t, fsys, dir, time.Minute)
	acquired, err := locker.Acquire(dir, "S1_E1_01", "run-1")
	if err != nil {
		t.Fatalf("Acquire() over unreadable lock error = %v", err)
	}
	defer acquired.Release()
	if acquired.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", acquired.PID, os.Getpid())
	}
}

func TestLocker_UnreadableLockWithinGrace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)
	dir := "/p/recordings/S1/E1/01"
	writeUnreadableLock(t, fsys, dir, 0)

	if _, locked := locker.IsLocked(dir); !locked {
		t.Error("IsLocked() = false for a lock that may still be written")
	}
	if cleaned, err := locker.CleanStale(dir); err != nil || cleaned {
		t.Errorf("CleanStale() = %v, %v; want false, nil", cleaned, err)
	}
	if _, err := locker.Acquire(dir, "S1_E1_01", "run-1"); !errors.Is(err, errors.ErrSessionLocked) {
		t.Errorf("Acquire() error = %v, want ErrSessionLocked", err)
	}
}

func TestLocker_ForeignHostLockIsHeld(t *testing.T) {
	fsys := afero.NewMemMapFs()
	locker := NewLocker(fsys, nil)
	dir := "/p/recordings/S1/E1/01"
	writeLockFileOn(t, fsys, dir, deadPID, "other-"+localHostname())

	lock, locked := locker.IsLocked(dir)
	if !locked || lock == nil {
		t.Fatal("IsLocked() = false for a lock written on another host")
	}
	if cleaned, err := locker.CleanStale(dir); err != nil || cleaned {
		t.Errorf("CleanStale() = %v, %v; want false, nil", cleaned, err)
	}
	if _, err := locker.Acquire(dir, "S1_E1_01", "run-1"); !errors.Is(err, errors.ErrSessionLocked) {
		t.Errorf("Acquire() error = %v, want ErrSessionLocked", err)
	}
	if ok, _ := afero.Exists(fsys, filepath.Join(dir, LockFileName)); !ok {
		t.Error("lock from another host was removed")
	}
}
