package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// statusIndent is the indentation added per status level.
const statusIndent = "    "

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Status prints progress lines for a preparation run. Output is suppressed
// entirely when verbose is false.
type Status struct {
	w       io.Writer
	verbose bool
	styled  bool
}

// NewStatus creates a Status writing to w. Styling is enabled only when w is
// a terminal.
func NewStatus(w io.Writer, verbose bool) *Status {
	return &Status{
		w:       w,
		verbose: verbose,
		styled:  isTerminal(w),
	}
}

// Print writes msg indented by level. Level 0 marks the start and end of a
// run; higher levels are sub-steps.
func (s *Status) Print(msg string, level int) {
	if s == nil || !s.verbose {
		return
	}
	if level < 0 {
		level = 0
	}

	if s.styled {
		if level == 0 {
			msg = headingStyle.Render(msg)
		} else {
			msg = detailStyle.Render(msg)
		}
	}
	fmt.Fprintln(s.w, strings.Repeat(statusIndent, level)+msg)
}

// Verbose reports whether status output is enabled.
func (s *Status) Verbose() bool {
	return s != nil && s.verbose
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
