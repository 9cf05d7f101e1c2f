package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/errors"
)

// FormatError renders err for the terminal. It names the failed preparation
// step and adds a hint for common setup mistakes.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	if step, ok := errors.FailedStep(err); ok {
		fmt.Fprintf(&sb, "Error (step %s): %v\n", step, err)
	} else {
		fmt.Fprintf(&sb, "Error: %v\n", err)
	}

	if errors.GetSeverity(err) == errors.SeverityCritical {
		sb.WriteString("The task file was written but the metadata file was not; the session is partially prepared.\n")
	}
	if hint := errorHint(err); hint != "" {
		sb.WriteString("Hint: " + hint + "\n")
	}
	return sb.String()
}

func errorHint(err error) string {
	step, _ := errors.FailedStep(err)

	switch {
	case errors.Is(err, errors.ErrSessionLocked):
		return "another preparation holds the session lock; if none is running, run 'nwbprep sessions clean'"
	case errors.IsNotFound(err) && step == errors.StepCollectMetadata:
		return "set metadata.dir (or --metadata-dir) to the folder holding the shared metadata files"
	case errors.IsNotFound(err) && step == errors.StepParseLog:
		return "session logs are read from behavior/logs; use --parse-log=false to skip the task file"
	case errors.IsParse(err):
		return "fix the file named above and run nwbprep again"
	}
	return ""
}
