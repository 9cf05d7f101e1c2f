package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the run log of the configured session",
	Long: `View and filter the run log written to the session folder.

Examples:
  # Show the last 50 lines
  nwbprep logs

  # Show everything from the most recent run
  nwbprep logs --run last -n 0

  # Filter by log level
  nwbprep logs --level warn

  # Show logs from the last hour
  nwbprep logs --since 1h

  # Search for specific patterns
  nwbprep logs --grep "overridden|failed"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail  int
	logsLevel string
	logsRun   string
	logsSince string
	logsGrep  string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Only show one run id (\"last\" for the most recent run)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Session string         `json:"session,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
	Step    string         `json:"step,omitempty"`
	Extra   map[string]any `json:"-"` // Captures additional fields
}

// UnmarshalJSON implements custom unmarshaling to capture extra fields
func (e *logEntry) UnmarshalJSON(data []byte) error {
	// First, unmarshal known fields using a type alias to avoid recursion
	type Alias logEntry
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Then unmarshal all fields to capture extras
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	// Remove known fields, keep the rest as extra
	for _, known := range []string{"time", "level", "msg", "session", "run_id", "step"} {
		delete(all, known)
	}

	if len(all) > 0 {
		e.Extra = all
	}

	return nil
}

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

var levelStyle = map[string]lipgloss.Style{
	logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// logFilter selects log entries for display
type logFilter struct {
	minLevel int
	runID    string
	since    time.Time
	grep     *regexp.Regexp
}

// matches checks if a log entry passes all filter criteria
func (f *logFilter) matches(entry *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}
	if f.runID != "" && entry.RunID != f.runID {
		return false
	}
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}

	// Grep filter - search in message and extra fields
	if f.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry *logEntry, styled bool) string {
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var sb strings.Builder
	level := strings.ToUpper(entry.Level)

	sb.WriteString(render(timeStyle, "["+entry.Time.Format("15:04:05.000")+"]"))
	sb.WriteString(" ")
	sb.WriteString(render(levelStyle[level], "["+level+"]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	if entry.Step != "" {
		sb.WriteString(" ")
		sb.WriteString(render(fieldStyle, "step="))
		sb.WriteString(entry.Step)
	}

	keys := make([]string, 0, len(entry.Extra))
	for key := range entry.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(" ")
		sb.WriteString(render(fieldStyle, key+"="))
		sb.WriteString(fmt.Sprintf("%v", entry.Extra[key]))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	sp, err := sessionPaths()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	logPath := filepath.Join(sp.Session(), logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No logs found for this session.")
		fmt.Fprintln(out, "Logs are stored at:", logPath)
		return nil
	}

	filter := &logFilter{minLevel: -1, runID: logsRun}
	if logsLevel != "" {
		filter.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.since = time.Now().Add(-duration)
	}

	if logsGrep != "" {
		filter.grep, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	return displayLogs(out, logPath, logsTail, filter)
}

// displayLogs reads the log file and displays filtered entries
func displayLogs(out io.Writer, logPath string, tail int, filter *logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []*logEntry
	var raw []string
	scanner := bufio.NewScanner(file)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// If we can't parse as JSON, display raw line
			entries = append(entries, nil)
			raw = append(raw, line)
			continue
		}
		entries = append(entries, &entry)
		raw = append(raw, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	// "last" selects the run id of the final entry that has one
	if filter.runID == "last" {
		filter.runID = ""
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i] != nil && entries[i].RunID != "" {
				filter.runID = entries[i].RunID
				break
			}
		}
	}

	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	var lines []string
	for i, entry := range entries {
		if entry == nil {
			lines = append(lines, raw[i])
			continue
		}
		if filter.matches(entry) {
			lines = append(lines, formatLogEntry(entry, styled))
		}
	}

	// Apply tail limit
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}

	return nil
}
