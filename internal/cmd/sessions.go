package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/config"
	"github.com/Iron-Ham/nwbprep/internal/session"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the recording sessions of a project",
	Long: `List every session found under <project_path>/recordings with its
preparation status:
- whether session logs, a task file, and a metadata file exist
- lock status (whether a preparation is running)`,
	Args: cobra.NoArgs,
	RunE: runSessionsList,
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale session locks",
	Long: `Remove lock files left behind by preparations that did not exit
cleanly. Locks held by running processes are kept.`,
	Args: cobra.NoArgs,
	RunE: runSessionsClean,
}

var (
	sessionsPending bool
	sessionsJSON    bool
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsCleanCmd)

	sessionsCmd.Flags().BoolVar(&sessionsPending, "pending", false, "Only list sessions without a metadata file")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Output sessions as JSON")
}

// projectRoot returns the configured project path. Unlike loadConfig it does
// not require session identifiers.
func projectRoot() (string, error) {
	if configErr != nil {
		return "", configErr
	}
	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.ProjectPath) == "" {
		return "", config.ValidationErrors{{
			Field:   "project_path",
			Value:   cfg.ProjectPath,
			Message: "must not be empty",
		}}
	}
	return cfg.ProjectPath, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	var sessions []*session.Info
	if sessionsPending {
		sessions, err = session.FindUnprepared(fsys, root)
	} else {
		sessions, err = session.List(fsys, root)
	}
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		if sessions == nil {
			sessions = []*session.Info{}
		}
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sessions: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, strings.Repeat("─", 70))
	fmt.Fprintf(out, "Sessions in %s\n", root)
	fmt.Fprintln(out, strings.Repeat("─", 70))

	if len(sessions) == 0 {
		fmt.Fprintln(out, "\nNo sessions found.")
		return nil
	}

	fmt.Fprintf(out, "\nFound %d session(s):\n\n", len(sessions))
	for _, s := range sessions {
		lockStatus := "unlocked"
		if s.LockInfo != nil && s.LockInfo.Unreadable() {
			lockStatus = "unreadable lock file"
		} else if s.IsLocked {
			lockStatus = fmt.Sprintf("LOCKED (PID %d on %s)", s.LockInfo.PID, s.LockInfo.Hostname)
		} else if s.LockInfo != nil {
			lockStatus = fmt.Sprintf("stale lock (PID %d)", s.LockInfo.PID)
		}

		fmt.Fprintf(out, "  Session: %s\n", s.Name)
		fmt.Fprintf(out, "    Logs:     %s\n", yesNo(s.HasLogs))
		fmt.Fprintf(out, "    Task:     %s\n", yesNo(s.HasTask))
		fmt.Fprintf(out, "    Metadata: %s\n", yesNo(s.HasMetadata))
		fmt.Fprintf(out, "    Status:   %s\n", lockStatus)
		fmt.Fprintln(out)
	}

	return nil
}

func runSessionsClean(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	cleaned, err := session.CleanupStaleLocks(afero.NewOsFs(), root)
	if err != nil {
		return fmt.Errorf("failed to clean stale locks: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(cleaned) == 0 {
		fmt.Fprintln(out, "No stale locks found.")
		return nil
	}
	for _, name := range cleaned {
		fmt.Fprintf(out, "Removed stale lock: %s\n", name)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
