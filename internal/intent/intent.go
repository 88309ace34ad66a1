package intent

import (
	"fmt"
	"strings"
)

// Intent is the label assigned to every assistant turn. The set is closed:
// Parse rejects anything outside it.
type Intent string

const (
	Event    Intent = "event"
	Task     Intent = "task"
	Note     Intent = "note"
	Response Intent = "response"
)

var all = []Intent{Event, Task, Note, Response}

// All returns the enumerated intents in a stable order.
func All() []Intent { return append([]Intent(nil), all...) }

func Parse(s string) (Intent, error) {
	switch in := Intent(strings.ToLower(strings.TrimSpace(s))); in {
	case Event, Task, Note, Response:
		return in, nil
	default:
		return "", fmt.Errorf("intent %q is not one of event, task, note, response", s)
	}
}

// HasArtifact reports whether a turn with this intent produces a structured
// artifact.
func (i Intent) HasArtifact() bool {
	return i == Event || i == Task || i == Note
}

func (i Intent) String() string { return string(i) }
