package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/configio"
	"github.com/Iron-Ham/nwbprep/internal/session"
	"github.com/Iron-Ham/nwbprep/internal/task"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the preparation status of the configured session",
	Long: `Display which artifacts the configured session has, whether it is
locked, and a summary of its task file and merged metadata.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sp, err := sessionPaths()
	if err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	info := session.GetInfo(fsys, sp)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Session: %s\n", info.Name)
	fmt.Fprintf(out, "Folder: %s\n", info.Dir)
	switch {
	case info.LockInfo != nil && info.LockInfo.Unreadable() && info.IsLocked:
		fmt.Fprintln(out, "Lock: unreadable lock file, possibly being written")
	case info.LockInfo != nil && info.LockInfo.Unreadable():
		fmt.Fprintln(out, "Lock: unreadable lock file, run 'nwbprep sessions clean'")
	case info.IsLocked:
		fmt.Fprintf(out, "Lock: held by PID %d on %s since %s\n",
			info.LockInfo.PID, info.LockInfo.Hostname, info.LockInfo.StartedAt.Format("2006-01-02 15:04:05"))
	case info.LockInfo != nil:
		fmt.Fprintf(out, "Lock: stale (PID %d), run 'nwbprep sessions clean'\n", info.LockInfo.PID)
	default:
		fmt.Fprintln(out, "Lock: none")
	}
	fmt.Fprintln(out)

	taskPath := filepath.Join(sp.Task(), info.Name+task.FileExt)
	if info.HasTask {
		t, err := task.LoadTask(fsys, taskPath)
		if err != nil {
			return err
		}
		printTaskSummary(cmd, taskPath, t)
	} else {
		fmt.Fprintln(out, "Task: not prepared")
	}

	metadataPath := filepath.Join(sp.Metadata(), info.Name+configio.ConfigExt)
	if info.HasMetadata {
		m, err := configio.New(fsys, nil).LoadConfig(metadataPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Metadata: %s\n", metadataPath)
		fmt.Fprintf(out, "  Keys: %s\n", strings.Join(m.Keys(), ", "))
	} else {
		fmt.Fprintln(out, "Metadata: not prepared")
	}

	return nil
}

func printTaskSummary(cmd *cobra.Command, path string, t *task.Task) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Task: %s\n", path)
	fmt.Fprintf(out, "  Log files: %s\n", strings.Join(t.Files, ", "))
	fmt.Fprintf(out, "  Events: %d (%d session-level)\n", t.NumEvents(), len(t.SessionEvents()))
	fmt.Fprintf(out, "  Trials: %d\n", t.NumTrials())

	if !t.Processed || len(t.Counts) == 0 {
		return
	}

	names := make([]string, 0, len(t.Counts))
	for name := range t.Counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if t.Counts[names[i]] != t.Counts[names[j]] {
			return t.Counts[names[i]] > t.Counts[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Fprintln(out, "  Event counts:")
	for _, name := range names {
		fmt.Fprintf(out, "    %-20s %d\n", name, t.Counts[name])
	}
}
