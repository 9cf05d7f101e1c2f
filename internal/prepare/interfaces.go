package prepare

import (
	"context"

	"github.com/Iron-Ham/nwbprep/internal/configio"
	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/Iron-Ham/nwbprep/internal/session"
	"github.com/Iron-Ham/nwbprep/internal/task"
)

// PathResolver builds the folder layout of a session.
type PathResolver interface {
	Resolve(root, subject, experiment, session string) (*paths.Paths, error)
}

// SessionNamer derives the name used for a session's artifacts.
type SessionNamer interface {
	SessionName(subject, experiment, session string) string
}

// LogParser turns a session's raw log into a task artifact.
type LogParser interface {
	ParseSession(ctx context.Context, p *paths.Paths, opts task.ParseOptions) (task.Artifact, error)
}

// TaskSaver persists a task artifact as {folder}/{name}.<ext>.
type TaskSaver interface {
	SaveTask(t task.Artifact, name, folder string) (string, error)
}

// MetadataCollector discovers and merges metadata files.
type MetadataCollector interface {
	GetFiles(dir string, opts configio.SelectOptions) ([]string, error)
	LoadConfigs(files []string, dir string) (configio.Mapping, error)
}

// MetadataSaver persists a merged metadata mapping as {folder}/{name}.<ext>.
type MetadataSaver interface {
	SaveConfig(m configio.Mapping, name, folder string) (string, error)
}

// Reporter prints status lines. Level 0 is a heading, higher levels nest.
type Reporter interface {
	Print(msg string, level int)
}

// SessionLocker serializes runs on the same session folder.
type SessionLocker interface {
	Acquire(sessionDir, sessionName, runID string) (*session.Lock, error)
}

// Compile-time checks for the default collaborators.
var (
	_ PathResolver      = paths.Resolver{}
	_ SessionNamer      = session.Namer{}
	_ LogParser         = (*task.Parser)(nil)
	_ TaskSaver         = (*task.Saver)(nil)
	_ MetadataCollector = (*configio.IO)(nil)
	_ MetadataSaver     = (*configio.IO)(nil)
	_ SessionLocker     = (*session.Locker)(nil)
)
