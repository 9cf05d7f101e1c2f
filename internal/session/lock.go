package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/spf13/afero"
)

// LockFileName is the name of the lock file within a session directory
const LockFileName = "nwbprep.lock"

// unreadableLockGrace is how long an unparseable lock file is treated as held.
// A run that crashed between creating and writing the file leaves one behind.
const unreadableLockGrace = 10 * time.Second

// Lock represents an acquired session lock
type Lock struct {
	Session   string    `json:"session"`
	RunID     string    `json:"run_id,omitempty"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockFile   string
	unreadable bool
	fs         afero.Fs
	logger     *logging.Logger
}

// Unreadable reports whether the lock file exists but could not be parsed.
// Only the file location is known for such a lock.
func (lk *Lock) Unreadable() bool {
	return lk.unreadable
}

// Locker acquires and inspects session lock files.
type Locker struct {
	fs     afero.Fs
	logger *logging.Logger
}

// NewLocker creates a Locker over fsys. The logger may be nil.
func NewLocker(fsys afero.Fs, logger *logging.Logger) *Locker {
	return &Locker{fs: fsys, logger: logger}
}

// Acquire takes an exclusive lock on sessionDir, creating the directory if
// needed. A lock left behind by a dead process is removed first. Returns an
// error wrapping errors.ErrSessionLocked if a live process holds the lock.
func (l *Locker) Acquire(sessionDir, sessionName, runID string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, LockFileName)

	if err := l.fs.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	if existing, held, err := l.inspect(lockPath); err != nil {
		return nil, err
	} else if existing != nil {
		if held {
			l.logError(sessionName, existing.describe())
			return nil, fmt.Errorf("%w: %s", errors.ErrSessionLocked, existing.describe())
		}
		if err := l.removeStale(existing); err != nil {
			return nil, err
		}
	}

	lock := &Lock{
		Session:   sessionName,
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  localHostname(),
		StartedAt: time.Now(),
		lockFile:  lockPath,
		fs:        l.fs,
		logger:    l.logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL fails if another process created the file since the check above
	f, err := l.fs.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			l.logError(sessionName, "lock file exists (race condition)")
			return nil, fmt.Errorf("%w: lock file created concurrently", errors.ErrSessionLocked)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = l.fs.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	if l.logger != nil {
		l.logger.Info("session lock acquired", "session", sessionName, "pid", lock.PID)
	}
	return lock, nil
}

func (l *Locker) logError(sessionName, reason string) {
	if l.logger != nil {
		l.logger.Error("failed to acquire lock", "session", sessionName, "reason", reason)
	}
}

// Release removes the lock file if it is still owned by this process.
// Safe to call multiple times.
func (lk *Lock) Release() error {
	if lk == nil || lk.lockFile == "" {
		return nil
	}

	existing, err := readLock(lk.fs, lk.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != lk.PID {
		return nil
	}

	if err := lk.fs.Remove(lk.lockFile); err != nil {
		return err
	}
	if lk.logger != nil {
		lk.logger.Info("session lock released", "session", lk.Session)
	}
	return nil
}

// Path returns the lock file location.
func (lk *Lock) Path() string {
	return lk.lockFile
}

// Read returns the lock held on sessionDir, if a lock file exists.
func (l *Locker) Read(sessionDir string) (*Lock, error) {
	return l.read(filepath.Join(sessionDir, LockFileName))
}

func (l *Locker) read(lockPath string) (*Lock, error) {
	return readLock(l.fs, lockPath)
}

func readLock(fsys afero.Fs, lockPath string) (*Lock, error) {
	data, err := afero.ReadFile(fsys, lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	lock.fs = fsys
	return &lock, nil
}

// inspect reads the lock file at lockPath and decides whether it is held.
// It returns a nil lock when no lock file exists.
//
// A lock is held when it was written on another host, or when its process is
// still running here. An unparseable lock file is held until it is older than
// unreadableLockGrace.
func (l *Locker) inspect(lockPath string) (*Lock, bool, error) {
	lock, err := l.read(lockPath)
	if err == nil {
		if lock.Hostname != "" && lock.Hostname != localHostname() {
			return lock, true, nil
		}
		return lock, isProcessAlive(lock.PID), nil
	}
	if os.IsNotExist(err) {
		return nil, false, nil
	}

	info, statErr := l.fs.Stat(lockPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to inspect lock file: %w", statErr)
	}
	unreadable := &Lock{lockFile: lockPath, unreadable: true, fs: l.fs, StartedAt: info.ModTime()}
	return unreadable, time.Since(info.ModTime()) < unreadableLockGrace, nil
}

func (l *Locker) removeStale(lock *Lock) error {
	if err := l.fs.Remove(lock.lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if l.logger != nil {
		l.logger.Warn("stale lock cleaned", "session", lock.Session, "old_pid", lock.PID, "unreadable", lock.unreadable)
	}
	return nil
}

func (lk *Lock) describe() string {
	if lk.unreadable {
		return "unreadable lock file " + lk.lockFile
	}
	return fmt.Sprintf("PID %d on %s", lk.PID, lk.Hostname)
}

// IsLocked reports whether sessionDir is locked by a live process or by
// another host. A stale lock is returned with false.
func (l *Locker) IsLocked(sessionDir string) (*Lock, bool) {
	lock, held, err := l.inspect(filepath.Join(sessionDir, LockFileName))
	if err != nil {
		return nil, false
	}
	return lock, held
}

// CleanStale removes the lock on sessionDir if its owning process is gone or
// the lock file is unreadable and past its grace period. Locks written on
// another host are kept. Returns true if a stale lock was removed.
func (l *Locker) CleanStale(sessionDir string) (bool, error) {
	lock, held, err := l.inspect(filepath.Join(sessionDir, LockFileName))
	if err != nil {
		return false, err
	}
	if lock == nil || held {
		return false, nil
	}
	if err := l.removeStale(lock); err != nil {
		return false, err
	}
	return true, nil
}

func localHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
