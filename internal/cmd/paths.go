package cmd

import (
	"fmt"
	"sort"

	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/Iron-Ham/nwbprep/internal/session"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var pathsCmd = &cobra.Command{
	Use:   "paths [folder]",
	Short: "Show the folder layout of the configured session",
	Long: `Show the session name and the folders the configured session reads
from and writes to.

With a folder name (session, behavior, logs, task, sync, electrophysiology,
metadata, nwb) only that folder is printed, which is handy in scripts:
  cd "$(nwbprep paths logs)"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPaths,
}

var pathsMake bool

func init() {
	rootCmd.AddCommand(pathsCmd)
	pathsCmd.Flags().BoolVar(&pathsMake, "make", false, "Create the session folders")
}

// sessionPaths resolves the configured session
func sessionPaths() (*paths.Paths, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return paths.New(cfg.ProjectPath, cfg.Session.Subject, cfg.Session.Experiment, cfg.Session.Session)
}

func runPaths(cmd *cobra.Command, args []string) error {
	sp, err := sessionPaths()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if pathsMake {
		if err := sp.Make(afero.NewOsFs()); err != nil {
			return err
		}
	}

	if len(args) == 1 {
		dir, err := sp.Folder(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, dir)
		return nil
	}

	fmt.Fprintf(out, "Session: %s\n", session.MakeSessionName(sp.SubjectID(), sp.ExperimentID(), sp.SessionID()))
	fmt.Fprintf(out, "Project: %s\n\n", sp.Root())

	folders := sp.Folders()
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %-18s %s\n", name+":", folders[name])
	}
	return nil
}
