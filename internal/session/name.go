// Package session names recording sessions, guards a session folder against
// concurrent preparation runs, and discovers sessions inside a project.
package session

import (
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/errors"
)

// nameSeparator joins the identifiers of a session name.
const nameSeparator = "_"

// MakeSessionName builds the label used to name a session's artifacts, e.g.
// MakeSessionName("S1", "E1", "01") == "S1_E1_01". It is a pure function of
// its inputs.
func MakeSessionName(subject, experiment, session string) string {
	return strings.Join([]string{subject, experiment, session}, nameSeparator)
}

// ParseSessionName splits a name produced by MakeSessionName back into its
// identifiers. Names that do not have exactly three non-empty parts are
// rejected, so identifiers containing the separator cannot round-trip.
func ParseSessionName(name string) (subject, experiment, session string, err error) {
	parts := strings.Split(name, nameSeparator)
	if len(parts) != 3 {
		return "", "", "", errors.NewValidationError("session name must have three parts").
			WithField("session_name").WithValue(name)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", errors.NewValidationError("session name has an empty part").
				WithField("session_name").WithValue(name)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Namer exposes MakeSessionName as a method so it can be injected.
type Namer struct{}

// SessionName returns MakeSessionName(subject, experiment, session).
func (Namer) SessionName(subject, experiment, session string) string {
	return MakeSessionName(subject, experiment, session)
}
