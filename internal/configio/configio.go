// Package configio discovers, loads, merges, and saves the YAML metadata files
// that describe a recording session.
//
// All filesystem access goes through an [afero.Fs], so callers can run the
// same code against the real disk or an in-memory filesystem.
package configio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/Iron-Ham/nwbprep/internal/util"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ConfigExt is the extension of saved metadata artifacts.
const ConfigExt = ".yaml"

// Mapping is a merged set of metadata keys and values.
type Mapping map[string]any

// Keys returns the mapping's keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectOptions controls which files GetFiles returns.
type SelectOptions struct {
	// Select is the file extension to keep, without the dot. "yaml" also
	// matches ".yml". Empty keeps every file.
	Select string
	// Ignore lists glob patterns matched against file names; matches are dropped.
	Ignore []string
}

// IO reads and writes metadata files.
type IO struct {
	fs     afero.Fs
	logger *logging.Logger
}

// New creates an IO over fsys. A nil logger discards log output.
func New(fsys afero.Fs, logger *logging.Logger) *IO {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &IO{fs: fsys, logger: logger}
}

// GetFiles lists the names of files in dir selected by opts, sorted lexically.
// A missing directory is an error wrapping errors.ErrNotFound; an empty
// directory yields an empty list.
func (c *IO) GetFiles(dir string, opts SelectOptions) ([]string, error) {
	info, err := c.fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("directory", dir).WithCause(err)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("not a directory").WithField("dir").WithValue(dir)
	}

	ignore, err := compileGlobs(opts.Ignore)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !hasExtension(name, opts.Select) {
			continue
		}
		if matchesAny(ignore, name) {
			continue
		}
		files = append(files, name)
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(name, selectExt string) bool {
	if selectExt == "" {
		return true
	}
	selectExt = strings.TrimPrefix(selectExt, ".")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == selectExt {
		return true
	}
	return selectExt == "yaml" && ext == "yml"
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid ignore pattern: %v", err)).
				WithField("ignore").WithValue(pattern)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// LoadConfig reads one YAML file into a Mapping. An empty file is an empty
// mapping; a document that is not a mapping is a parse error.
func (c *IO) LoadConfig(path string) (Mapping, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("config file", path).WithCause(err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.NewParseError(path, err)
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// LoadConfigs loads files in order and merges their top-level keys into one
// Mapping. Relative file names are resolved against dir. When two files
// define the same key, the later file wins and the override is logged.
func (c *IO) LoadConfigs(files []string, dir string) (Mapping, error) {
	merged := Mapping{}
	source := make(map[string]string, len(files))

	for _, file := range files {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, file)
		}

		m, err := c.LoadConfig(path)
		if err != nil {
			return nil, err
		}

		for _, key := range m.Keys() {
			if prev, ok := source[key]; ok {
				c.logger.Warn("metadata key overridden",
					"key", key,
					"previous_file", prev,
					"file", file,
				)
			}
			merged[key] = m[key]
			source[key] = file
		}
		c.logger.Debug("metadata file loaded", "file", file, "keys", len(m))
	}

	return merged, nil
}

// SaveConfig writes m as YAML to {folder}/{name}.yaml, creating folder if
// needed, and returns the written path. The write is atomic.
func (c *IO) SaveConfig(m Mapping, name, folder string) (string, error) {
	if m == nil {
		m = Mapping{}
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(folder, name+ConfigExt)
	if err := util.AtomicWriteFile(c.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save config %s: %w", path, err)
	}

	c.logger.Debug("config saved", "path", path, "keys", len(m))
	return path, nil
}
