package session

import (
	"testing"

	"github.com/Iron-Ham/nwbprep/internal/errors"
)

func TestMakeSessionName(t *testing.T) {
	tests := []struct {
		subject, experiment, session string
		want                         string
	}{
		{"S1", "E1", "01", "S1_E1_01"},
		{"wv001", "ThreeStreams", "session_0", "wv001_ThreeStreams_session_0"},
		{"", "", "", "__"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := MakeSessionName(tt.subject, tt.experiment, tt.session)
			if got != tt.want {
				t.Errorf("MakeSessionName() = %q, want %q", got, tt.want)
			}
			if again := MakeSessionName(tt.subject, tt.experiment, tt.session); again != got {
				t.Errorf("MakeSessionName() not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestNamer(t *testing.T) {
	if got := (Namer{}).SessionName("S1", "E1", "01"); got != "S1_E1_01" {
		t.Errorf("Namer.SessionName() = %q, want %q", got, "S1_E1_01")
	}
}

func TestParseSessionName(t *testing.T) {
	subject, experiment, sess, err := ParseSessionName("S1_E1_01")
	if err != nil {
		t.Fatalf("ParseSessionName() error = %v", err)
	}
	if subject != "S1" || experiment != "E1" || sess != "01" {
		t.Errorf("ParseSessionName() = %q, %q, %q", subject, experiment, sess)
	}

	for _, bad := range []string{"S1_E1", "S1_E1_session_0", "S1__01", ""} {
		if _, _, _, err := ParseSessionName(bad); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("ParseSessionName(%q) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}
