// Package paths resolves the on-disk layout of a recording session.
//
// A project is laid out as:
//
//	<root>/recordings/<subject>/<experiment>/<session>/
//	    behavior/logs
//	    behavior/task
//	    behavior/sync
//	    electrophysiology
//	    metadata
//	<root>/nwb
package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/spf13/afero"
)

// Top-level and session folder names.
const (
	RecordingsDir = "recordings"
	NWBDir        = "nwb"

	BehaviorDir          = "behavior"
	LogsDir              = "logs"
	TaskDir              = "task"
	SyncDir              = "sync"
	ElectrophysiologyDir = "electrophysiology"
	MetadataDir          = "metadata"
)

// sessionFolders lists every folder created under a session by Make, relative
// to the session directory.
var sessionFolders = []string{
	filepath.Join(BehaviorDir, LogsDir),
	filepath.Join(BehaviorDir, TaskDir),
	filepath.Join(BehaviorDir, SyncDir),
	ElectrophysiologyDir,
	MetadataDir,
}

// Paths is the resolved folder layout for one session. It is immutable after
// construction.
type Paths struct {
	root       string
	subject    string
	experiment string
	session    string
}

// New resolves the layout for subject/experiment/session under root.
// Identifiers must be non-empty and must not contain path separators.
func New(root, subject, experiment, session string) (*Paths, error) {
	if root == "" {
		return nil, errors.NewValidationError("must not be empty").WithField("project_path")
	}
	for _, id := range []struct{ field, value string }{
		{"subject", subject},
		{"experiment", experiment},
		{"session", session},
	} {
		if err := validateID(id.field, id.value); err != nil {
			return nil, err
		}
	}

	return &Paths{
		root:       filepath.Clean(root),
		subject:    subject,
		experiment: experiment,
		session:    session,
	}, nil
}

func validateID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError("must not be empty").WithField(field).WithValue(value)
	}
	if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
		return errors.NewValidationError("must be a single path element").WithField(field).WithValue(value)
	}
	return nil
}

// Root returns the project root.
func (p *Paths) Root() string { return p.root }

// SubjectID returns the subject identifier.
func (p *Paths) SubjectID() string { return p.subject }

// ExperimentID returns the experiment identifier.
func (p *Paths) ExperimentID() string { return p.experiment }

// SessionID returns the session identifier.
func (p *Paths) SessionID() string { return p.session }

// Recordings returns <root>/recordings.
func (p *Paths) Recordings() string {
	return filepath.Join(p.root, RecordingsDir)
}

// Subject returns the subject folder.
func (p *Paths) Subject() string {
	return filepath.Join(p.Recordings(), p.subject)
}

// Experiment returns the experiment folder.
func (p *Paths) Experiment() string {
	return filepath.Join(p.Subject(), p.experiment)
}

// Session returns the session folder.
func (p *Paths) Session() string {
	return filepath.Join(p.Experiment(), p.session)
}

// Behavior returns the session's behavior folder.
func (p *Paths) Behavior() string {
	return filepath.Join(p.Session(), BehaviorDir)
}

// Logs returns the folder holding raw session logs.
func (p *Paths) Logs() string {
	return filepath.Join(p.Behavior(), LogsDir)
}

// Task returns the folder that receives task artifacts.
func (p *Paths) Task() string {
	return filepath.Join(p.Behavior(), TaskDir)
}

// Sync returns the folder holding sync pulse recordings.
func (p *Paths) Sync() string {
	return filepath.Join(p.Behavior(), SyncDir)
}

// Electrophysiology returns the raw ephys folder.
func (p *Paths) Electrophysiology() string {
	return filepath.Join(p.Session(), ElectrophysiologyDir)
}

// Metadata returns the folder that receives merged metadata artifacts.
func (p *Paths) Metadata() string {
	return filepath.Join(p.Session(), MetadataDir)
}

// NWB returns the project's NWB output folder.
func (p *Paths) NWB() string {
	return filepath.Join(p.root, NWBDir)
}

// Folder returns a session folder by name. Recognized names are "session",
// "behavior", "logs", "task", "sync", "electrophysiology", "metadata", and
// "nwb".
func (p *Paths) Folder(name string) (string, error) {
	switch name {
	case "session":
		return p.Session(), nil
	case BehaviorDir:
		return p.Behavior(), nil
	case LogsDir:
		return p.Logs(), nil
	case TaskDir:
		return p.Task(), nil
	case SyncDir:
		return p.Sync(), nil
	case ElectrophysiologyDir:
		return p.Electrophysiology(), nil
	case MetadataDir:
		return p.Metadata(), nil
	case NWBDir:
		return p.NWB(), nil
	default:
		return "", errors.NewValidationError("unknown folder").WithField("folder").WithValue(name)
	}
}

// Folders returns every session folder keyed by name, for display.
func (p *Paths) Folders() map[string]string {
	return map[string]string{
		"session":            p.Session(),
		LogsDir:              p.Logs(),
		TaskDir:              p.Task(),
		SyncDir:              p.Sync(),
		ElectrophysiologyDir: p.Electrophysiology(),
		MetadataDir:          p.Metadata(),
		NWBDir:               p.NWB(),
	}
}

// Make creates the session folder tree and the NWB output folder.
// Existing folders are left untouched.
func (p *Paths) Make(fsys afero.Fs) error {
	dirs := make([]string, 0, len(sessionFolders)+1)
	for _, rel := range sessionFolders {
		dirs = append(dirs, filepath.Join(p.Session(), rel))
	}
	dirs = append(dirs, p.NWB())

	for _, dir := range dirs {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// String returns the session folder.
func (p *Paths) String() string {
	return p.Session()
}

// Resolver builds Paths values. It exists so callers can inject a different
// layout in tests.
type Resolver struct{}

// Resolve implements the path resolution step of a preparation run.
func (Resolver) Resolve(root, subject, experiment, session string) (*Paths, error) {
	return New(root, subject, experiment, session)
}
