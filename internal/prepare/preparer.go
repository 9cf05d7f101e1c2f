// Package prepare runs the preparation of one recording session: it resolves
// the session layout, optionally parses the session log into a task artifact,
// and merges the shared metadata files into a per-session metadata artifact.
package prepare

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Iron-Ham/nwbprep/internal/config"
	"github.com/Iron-Ham/nwbprep/internal/configio"
	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/Iron-Ham/nwbprep/internal/task"
	"github.com/google/uuid"
)

// Deps are the collaborators a Preparer sequences. Locker and Reporter may be
// nil; every other field is required.
type Deps struct {
	Paths         PathResolver
	Namer         SessionNamer
	Parser        LogParser
	TaskSaver     TaskSaver
	Metadata      MetadataCollector
	MetadataSaver MetadataSaver
	Reporter      Reporter
	Locker        SessionLocker
}

func (d Deps) validate() error {
	missing := func(field string) error {
		return errors.NewValidationError("collaborator is required").WithField(field)
	}
	switch {
	case d.Paths == nil:
		return missing("Paths")
	case d.Namer == nil:
		return missing("Namer")
	case d.Parser == nil:
		return missing("Parser")
	case d.TaskSaver == nil:
		return missing("TaskSaver")
	case d.Metadata == nil:
		return missing("Metadata")
	case d.MetadataSaver == nil:
		return missing("MetadataSaver")
	}
	return nil
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithLogger sets the structured logger for the run.
func WithLogger(l *logging.Logger) Option {
	return func(p *Preparer) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(p *Preparer) {
		p.runID = id
	}
}

// WithWorkDir sets the directory relative metadata paths resolve against.
// Defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(p *Preparer) {
		p.workDir = dir
	}
}

// Result describes a completed run.
type Result struct {
	SessionName string
	RunID       string
	Paths       *paths.Paths

	// TaskPath is empty when log parsing is disabled.
	TaskPath   string
	TaskEvents int

	MetadataPath  string
	MetadataFiles []string
	MetadataKeys  int

	Duration time.Duration
}

// Preparer sequences one session preparation. It holds no state between
// runs; callers must not run two preparations of the same session at once
// unless a Locker is configured.
type Preparer struct {
	deps    Deps
	logger  *logging.Logger
	runID   string
	workDir string
}

// New creates a Preparer.
func New(deps Deps, opts ...Option) *Preparer {
	p := &Preparer{
		deps:   deps,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run prepares the session named by cfg. Any collaborator failure stops the
// run and is returned wrapped in an errors.StepError naming the failed step.
// Artifacts written by earlier steps are left in place.
func (p *Preparer) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("config is required").WithField("config")
	}
	if err := p.deps.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := p.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	sess := cfg.Session
	sp, err := p.deps.Paths.Resolve(cfg.ProjectPath, sess.Subject, sess.Experiment, sess.Session)
	if err != nil {
		return nil, errors.NewStepError(errors.StepPaths, err)
	}

	name := p.deps.Namer.SessionName(sess.Subject, sess.Experiment, sess.Session)
	log := p.logger.WithSession(name).WithRun(runID)
	result := &Result{
		SessionName: name,
		RunID:       runID,
		Paths:       sp,
	}
	fail := func(step errors.Step, err error) (*Result, error) {
		stepErr := errors.NewStepError(step, err).WithSession(name)
		// A task artifact without its metadata leaves the session half prepared
		if result.TaskPath != "" {
			stepErr = stepErr.WithSeverity(errors.SeverityCritical)
		}
		log.WithStep(string(step)).Error("preparation failed",
			"error", err.Error(), "severity", errors.GetSeverity(stepErr).String())
		return nil, stepErr
	}

	p.status(cfg, fmt.Sprintf("Preparing data for %s", name), 0)
	log.Info("preparation started", "session_dir", sp.Session(), "parse_log", cfg.Settings.ParseLog)

	if cfg.Settings.Lock && p.deps.Locker != nil {
		lock, err := p.deps.Locker.Acquire(sp.Session(), name, runID)
		if err != nil {
			return fail(errors.StepLock, err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("failed to release session lock", "error", err.Error())
			}
		}()
	}

	if cfg.Settings.ParseLog {
		p.status(cfg, "parsing session log...", 1)

		opts := task.ParseOptions{Select: cfg.Task.Select, Process: cfg.Task.Process}
		artifact, err := p.deps.Parser.ParseSession(ctx, sp, opts)
		if err != nil {
			return fail(errors.StepParseLog, err)
		}

		result.TaskPath, err = p.deps.TaskSaver.SaveTask(artifact, name, sp.Task())
		if err != nil {
			return fail(errors.StepSaveTask, err)
		}
		if counted, ok := artifact.(interface{ NumEvents() int }); ok {
			result.TaskEvents = counted.NumEvents()
		}
		log.WithStep(string(errors.StepSaveTask)).Info("task saved", "path", result.TaskPath, "events", result.TaskEvents)
	}

	p.status(cfg, "preparing metadata files...", 1)

	dir := cfg.Metadata.ResolveDir(p.baseDir())
	files, err := p.deps.Metadata.GetFiles(dir, configio.SelectOptions{
		Select: cfg.Metadata.Select,
		Ignore: cfg.Metadata.Ignore,
	})
	if err != nil {
		return fail(errors.StepCollectMetadata, err)
	}

	metadata, err := p.deps.Metadata.LoadConfigs(files, dir)
	if err != nil {
		return fail(errors.StepCollectMetadata, err)
	}

	result.MetadataPath, err = p.deps.MetadataSaver.SaveConfig(metadata, name, sp.Metadata())
	if err != nil {
		return fail(errors.StepSaveMetadata, err)
	}
	result.MetadataFiles = files
	result.MetadataKeys = len(metadata)
	log.WithStep(string(errors.StepSaveMetadata)).Info("metadata saved",
		"path", result.MetadataPath, "files", len(files), "keys", len(metadata))

	result.Duration = time.Since(start)
	p.status(cfg, fmt.Sprintf("Completed data preparation for %s", name), 0)
	log.Info("preparation completed", "duration_ms", result.Duration.Milliseconds())

	return result, nil
}

func (p *Preparer) status(cfg *config.Config, msg string, level int) {
	if !cfg.Settings.Verbose || p.deps.Reporter == nil {
		return
	}
	p.deps.Reporter.Print(msg, level)
}

func (p *Preparer) baseDir() string {
	if p.workDir != "" {
		return p.workDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
