package cmd

import (
	"fmt"

	"github.com/Iron-Ham/nwbprep/internal/configio"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/Iron-Ham/nwbprep/internal/prepare"
	"github.com/Iron-Ham/nwbprep/internal/session"
	"github.com/Iron-Ham/nwbprep/internal/task"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// newDeps wires the default collaborators over fsys
func newDeps(fsys afero.Fs, logger *logging.Logger, reporter prepare.Reporter) prepare.Deps {
	metadata := configio.New(fsys, logger)
	return prepare.Deps{
		Paths:         paths.Resolver{},
		Namer:         session.Namer{},
		Parser:        task.NewParser(fsys, logger),
		TaskSaver:     task.NewSaver(fsys, logger),
		Metadata:      metadata,
		MetadataSaver: metadata,
		Reporter:      reporter,
		Locker:        session.NewLocker(fsys, logger),
	}
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sp, err := paths.New(cfg.ProjectPath, cfg.Session.Subject, cfg.Session.Experiment, cfg.Session.Session)
	if err != nil {
		return err
	}

	// The run log lives in the session folder it describes
	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(sp.Session(), cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open run log: %w", err)
		}
		defer func() { _ = logger.Close() }()
	}

	status := logging.NewStatus(cmd.OutOrStdout(), cfg.Settings.Verbose)
	preparer := prepare.New(
		newDeps(afero.NewOsFs(), logger, status),
		prepare.WithLogger(logger),
		prepare.WithRunID(uuid.NewString()),
	)

	result, err := preparer.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	if result.TaskPath != "" {
		status.Print(fmt.Sprintf("task: %s (%d events)", result.TaskPath, result.TaskEvents), 1)
	}
	status.Print(fmt.Sprintf("metadata: %s (%d files, %d keys)",
		result.MetadataPath, len(result.MetadataFiles), result.MetadataKeys), 1)

	return nil
}
