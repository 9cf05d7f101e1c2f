package task

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/errors"
	"github.com/Iron-Ham/nwbprep/internal/logging"
	"github.com/Iron-Ham/nwbprep/internal/paths"
	"github.com/spf13/afero"
)

// DefaultSelect is the extension of session log files.
const DefaultSelect = "jsonl"

// maxLineSize bounds a single log line.
const maxLineSize = 10 * 1024 * 1024

// ParseOptions controls how a session log is parsed.
type ParseOptions struct {
	// Select is the log file extension, without the dot. Defaults to "jsonl".
	Select string
	// Process computes trial timing and event counts after parsing.
	Process bool
}

// Parser reads session logs.
type Parser struct {
	fs     afero.Fs
	logger *logging.Logger
}

// NewParser creates a Parser over fsys. A nil logger discards log output.
func NewParser(fsys afero.Fs, logger *logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Parser{fs: fsys, logger: logger}
}

// ParseSession parses the logs of the session described by sp.
func (p *Parser) ParseSession(ctx context.Context, sp *paths.Paths, opts ParseOptions) (Artifact, error) {
	t, err := p.Parse(ctx, sp, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse reads every log file in the session's logs folder, in name order, and
// builds a Task. It fails with errors.ErrNotFound if there are no log files
// and with a ParseError naming the file and line of the first bad event.
func (p *Parser) Parse(ctx context.Context, sp *paths.Paths, opts ParseOptions) (*Task, error) {
	files, err := p.logFiles(sp.Logs(), opts.Select)
	if err != nil {
		return nil, err
	}

	t := &Task{
		Subject:    sp.SubjectID(),
		Experiment: sp.ExperimentID(),
		Session:    sp.SessionID(),
		Files:      files,
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := p.parseFile(filepath.Join(sp.Logs(), name))
		if err != nil {
			return nil, err
		}
		p.logger.Debug("session log parsed", "file", name, "events", len(events))
		t.Events = append(t.Events, events...)
	}

	t.groupTrials()
	if opts.Process {
		t.Process()
	}
	return t, nil
}

func (p *Parser) logFiles(dir, selectExt string) ([]string, error) {
	if selectExt == "" {
		selectExt = DefaultSelect
	}
	suffix := "." + strings.TrimPrefix(selectExt, ".")

	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("session log folder", dir).WithCause(err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, errors.NewNotFoundError("session log", filepath.Join(dir, "*"+suffix))
	}

	sort.Strings(files)
	return files, nil
}

func (p *Parser) parseFile(path string) ([]Event, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []Event
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		e, err := parseEvent(line)
		if err != nil {
			return nil, errors.NewParseError(path, err).WithLine(lineNo)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewParseError(path, err).WithLine(lineNo + 1)
	}
	return events, nil
}

// maxExactTrial is the largest trial number a float literal such as 3.0 can
// hold without rounding.
const maxExactTrial = 1 << 53

// parseEvent decodes one log line. Numbers are kept as json.Number so that
// large integer ids in extra fields survive unchanged.
func parseEvent(line []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Event{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Event{}, fmt.Errorf("unexpected data after event object")
	}

	var e Event
	switch v := raw["time"].(type) {
	case json.Number:
		t, err := v.Float64()
		if err != nil {
			return Event{}, fmt.Errorf("\"time\" out of range: %s", v)
		}
		e.Time = t
	case nil:
		return Event{}, fmt.Errorf("missing \"time\"")
	default:
		return Event{}, fmt.Errorf("\"time\" must be a number, got %T", v)
	}

	name, ok := raw["event"].(string)
	if !ok || name == "" {
		return Event{}, fmt.Errorf("missing \"event\"")
	}
	e.Name = name

	if v, present := raw["trial"]; present && v != nil {
		idx, ok := parseTrial(v)
		if !ok {
			return Event{}, fmt.Errorf("\"trial\" must be a non-negative integer, got %v", v)
		}
		e.Trial = &idx
	}

	delete(raw, "time")
	delete(raw, "event")
	delete(raw, "trial")
	if len(raw) > 0 {
		e.Data = raw
	}
	return e, nil
}

func parseTrial(v any) (int, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if n, err := num.Int64(); err == nil {
		return int(n), n >= 0 && n <= math.MaxInt
	}
	f, err := num.Float64()
	if err != nil || f < 0 || f > maxExactTrial || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
