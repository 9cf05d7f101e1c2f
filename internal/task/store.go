package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/Iron-Ham/nwbprep/internal/util"
	"github.com/spf13/afero"
)

// Saver persists task artifacts.
type Saver struct {
	fs     afero.Fs
	logger *logging.Logger
}

// NewSaver creates a Saver over fsys. A nil logger discards log output.
func NewSaver(fsys afero.Fs, logger *logging.Logger) *Saver {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Saver{fs: fsys, logger: logger}
}

// SaveTask encodes t to {folder}/{name}.json, creating folder if needed, and
// returns the written path. The write is atomic.
func (s *Saver) SaveTask(t Artifact, name, folder string) (string, error) {
	if t == nil {
		return "", errors.NewValidationError("task is nil").WithField("task")
	}

	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}

	path := filepath.Join(folder, name+FileExt)
	if err := util.AtomicWriteFile(s.fs, path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to save task %s: %w", path, err)
	}

	s.logger.Debug("task saved", "path", path, "bytes", buf.Len())
	return path, nil
}

// LoadTask reads a task artifact written by SaveTask.
func LoadTask(fsys afero.Fs, path string) (*Task, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("task", path).WithCause(err)
		}
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	// Extra event fields keep their exact numeric text
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var t Task
	if err := dec.Decode(&t); err != nil {
		return nil, errors.NewParseError(path, err)
	}
	return &t, nil
}
