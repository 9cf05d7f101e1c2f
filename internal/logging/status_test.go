package logging

import (
	"bytes"
	"testing"
)

func TestStatus_Print(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		msg     string
		level   int
		want    string
	}{
		{"top level", true, "Preparing data for S1_E1_01", 0, "Preparing data for S1_E1_01\n"},
		{"sub step", true, "preparing metadata files...", 1, "    preparing metadata files...\n"},
		{"nested", true, "a.yaml", 2, "        a.yaml\n"},
		{"negative level clamps", true, "x", -3, "x\n"},
		{"quiet", false, "Preparing data for S1_E1_01", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewStatus(&buf, tt.verbose)
			s.Print(tt.msg, tt.level)

			if got := buf.String(); got != tt.want {
				t.Errorf("Print() wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatus_NotStyledForBuffers(t *testing.T) {
	s := NewStatus(&bytes.Buffer{}, true)
	if s.styled {
		t.Error("status writing to a buffer should not be styled")
	}
	if !s.Verbose() {
		t.Error("Verbose() = false, want true")
	}
}

func TestStatus_NilIsQuiet(t *testing.T) {
	var s *Status
	s.Print("nothing", 0)
	if s.Verbose() {
		t.Error("nil Status should not be verbose")
	}
}
