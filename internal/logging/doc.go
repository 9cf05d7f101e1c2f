// Package logging provides structured logging and console status output for
// nwbprep runs.
//
// [Logger] wraps Go's log/slog to write JSON-formatted run logs with persistent
// context attributes (session name, run id, pipeline step). [Status] prints the
// short human-readable progress lines a researcher watches while a session is
// prepared, gated by the verbosity setting.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/data/recordings/S1/E1/01", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithSession("S1_E1_01").WithRun(runID)
//	runLogger.WithStep("collect_metadata").Info("metadata merged", "files", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"metadata merged","session":"S1_E1_01","run_id":"...","step":"collect_metadata","files":3}
//
// # Status Output
//
//	status := logging.NewStatus(os.Stdout, verbose)
//	status.Print("Preparing data for S1_E1_01", 0)
//	status.Print("preparing metadata files...", 1)
//
// Each level indents the message by four spaces. When the writer is a
// terminal, level-0 lines are rendered bold.
//
// # Testing
//
// Use [NopLogger] to discard all log output.
package logging
