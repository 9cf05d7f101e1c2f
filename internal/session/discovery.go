package session

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/Iron-Ham/nwbprep/internal/configio"
	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/Iron-Ham/nwbprep/internal/task"
	"github.com/Iron-Ham/nwbprep/internal/util"
	"github.com/spf13/afero"
)

// Info summarizes one session found under a project's recordings folder.
type Info struct {
	Subject     string `json:"subject"`
	Experiment  string `json:"experiment"`
	Session     string `json:"session"`
	Name        string `json:"name"`
	Dir         string `json:"dir"`
	HasLogs     bool   `json:"has_logs"`
	HasTask     bool   `json:"has_task"`
	HasMetadata bool   `json:"has_metadata"`
	IsLocked    bool   `json:"is_locked"`
	LockInfo    *Lock  `json:"lock_info,omitempty"`
}

// Prepared reports whether the session has a metadata artifact. A task
// artifact is optional because log parsing can be disabled.
func (i *Info) Prepared() bool {
	return i.HasMetadata
}

// List discovers sessions by scanning <root>/recordings/<subject>/<experiment>/<session>.
// A missing recordings folder yields no sessions. Results are sorted by name.
func List(fsys afero.Fs, root string) ([]*Info, error) {
	recordings := filepath.Join(root, paths.RecordingsDir)

	subjects, err := subdirs(fsys, recordings)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	locker := NewLocker(fsys, nil)
	var sessions []*Info
	for _, subject := range subjects {
		experiments, err := subdirs(fsys, filepath.Join(recordings, subject))
		if err != nil {
			continue
		}
		for _, experiment := range experiments {
			ids, err := subdirs(fsys, filepath.Join(recordings, subject, experiment))
			if err != nil {
				continue
			}
			for _, id := range ids {
				p, err := paths.New(root, subject, experiment, id)
				if err != nil {
					continue
				}
				sessions = append(sessions, inspect(fsys, locker, p))
			}
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Name < sessions[j].Name
	})
	return sessions, nil
}

// GetInfo inspects a single session layout.
func GetInfo(fsys afero.Fs, p *paths.Paths) *Info {
	return inspect(fsys, NewLocker(fsys, nil), p)
}

func inspect(fsys afero.Fs, locker *Locker, p *paths.Paths) *Info {
	name := MakeSessionName(p.SubjectID(), p.ExperimentID(), p.SessionID())
	lockInfo, locked := locker.IsLocked(p.Session())

	return &Info{
		Subject:     p.SubjectID(),
		Experiment:  p.ExperimentID(),
		Session:     p.SessionID(),
		Name:        name,
		Dir:         p.Session(),
		HasLogs:     hasFiles(fsys, p.Logs()),
		HasTask:     util.FileExists(fsys, filepath.Join(p.Task(), name+task.FileExt)),
		HasMetadata: util.FileExists(fsys, filepath.Join(p.Metadata(), name+configio.ConfigExt)),
		IsLocked:    locked,
		LockInfo:    lockInfo,
	}
}

// FindUnprepared returns the sessions that have no metadata artifact yet.
func FindUnprepared(fsys afero.Fs, root string) ([]*Info, error) {
	sessions, err := List(fsys, root)
	if err != nil {
		return nil, err
	}

	var pending []*Info
	for _, s := range sessions {
		if !s.Prepared() {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// CleanupStaleLocks removes stale lock files from every session in root.
// Returns the names of sessions that had stale locks cleaned.
func CleanupStaleLocks(fsys afero.Fs, root string) ([]string, error) {
	sessions, err := List(fsys, root)
	if err != nil {
		return nil, err
	}

	locker := NewLocker(fsys, nil)
	var cleaned []string
	for _, s := range sessions {
		wasCleaned, err := locker.CleanStale(s.Dir)
		if err != nil {
			continue // Skip errors, try other sessions
		}
		if wasCleaned {
			cleaned = append(cleaned, s.Name)
		}
	}
	return cleaned, nil
}

func subdirs(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func hasFiles(fsys afero.Fs, dir string) bool {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}
