// Package task turns a session's raw behavioral log into a structured task
// description and persists it next to the session's other artifacts.
//
// Session logs are JSON Lines files in the session's behavior/logs folder.
// Each line is one event:
//
//	{"time": 12.5, "event": "stimulus_on", "trial": 3, "stimulus": "face"}
//
// "time" (seconds) and "event" are required. "trial" is optional; events
// without it describe the session as a whole. Every other field is kept as
// event data.
package task

import (
	"encoding/json"
	"io"
	"sort"
)

// FileExt is the extension of saved task artifacts.
const FileExt = ".json"

// Artifact is a parsed session log that can be serialized. The preparation
// pipeline treats it as opaque.
type Artifact interface {
	Encode(w io.Writer) error
}

// Event is one line of a session log.
type Event struct {
	Time  float64        `json:"time"`
	Name  string         `json:"event"`
	Trial *int           `json:"trial,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Trial groups the events that share a trial number.
type Trial struct {
	Index  int     `json:"index"`
	Events []Event `json:"events"`

	// Summary fields, filled in by Process.
	Start     float64 `json:"start,omitempty"`
	End       float64 `json:"end,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	NumEvents int     `json:"num_events,omitempty"`
}

// Task is the structured description of one session's behavioral log.
type Task struct {
	Subject    string   `json:"subject"`
	Experiment string   `json:"experiment"`
	Session    string   `json:"session"`
	Files      []string `json:"files"`

	// Events holds every event in log order; session-level events have no trial.
	Events []Event `json:"events"`
	Trials []Trial `json:"trials"`

	Processed bool           `json:"processed"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// Encode writes the task as indented JSON.
func (t *Task) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// NumEvents returns the number of parsed events.
func (t *Task) NumEvents() int {
	return len(t.Events)
}

// NumTrials returns the number of trials.
func (t *Task) NumTrials() int {
	return len(t.Trials)
}

// SessionEvents returns the events that do not belong to a trial.
func (t *Task) SessionEvents() []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Trial == nil {
			out = append(out, e)
		}
	}
	return out
}

// groupTrials rebuilds Trials from Events, ordered by trial number.
func (t *Task) groupTrials() {
	byIndex := make(map[int]*Trial)
	for _, e := range t.Events {
		if e.Trial == nil {
			continue
		}
		tr, ok := byIndex[*e.Trial]
		if !ok {
			tr = &Trial{Index: *e.Trial}
			byIndex[*e.Trial] = tr
		}
		tr.Events = append(tr.Events, e)
	}

	t.Trials = make([]Trial, 0, len(byIndex))
	for _, tr := range byIndex {
		t.Trials = append(t.Trials, *tr)
	}
	sort.Slice(t.Trials, func(i, j int) bool {
		return t.Trials[i].Index < t.Trials[j].Index
	})
}

// Process computes per-trial timing and per-event counts.
func (t *Task) Process() {
	for i := range t.Trials {
		tr := &t.Trials[i]
		tr.NumEvents = len(tr.Events)
		if len(tr.Events) == 0 {
			continue
		}
		tr.Start, tr.End = tr.Events[0].Time, tr.Events[0].Time
		for _, e := range tr.Events[1:] {
			if e.Time < tr.Start {
				tr.Start = e.Time
			}
			if e.Time > tr.End {
				tr.End = e.Time
			}
		}
		tr.Duration = tr.End - tr.Start
	}

	t.Counts = make(map[string]int)
	for _, e := range t.Events {
		t.Counts[e.Name]++
	}
	t.Processed = true
}
