package reply

import (
	"fmt"
	"strings"

	"ai-planner/internal/intent"
)

const unresolvedDate = "(date to be confirmed)"

// Render builds the text shown to the user. Responses pass through verbatim;
// artifacts get a confirmation built from their fields alone.
func Render(c intent.Classification) string {
	switch c.Intent {
	case intent.Response:
		return c.Content
	case intent.Event:
		var b strings.Builder
		fmt.Fprintf(&b, "Event scheduled: %s", label(c))
		switch {
		case c.Date != "" && c.Time != "":
			fmt.Fprintf(&b, " on %s at %s", c.Date, c.Time)
		case c.Date != "":
			fmt.Fprintf(&b, " on %s", c.Date)
		case c.Time != "":
			fmt.Fprintf(&b, " at %s", c.Time)
		case c.DateUnresolved:
			b.WriteString(" " + unresolvedDate)
		}
		if c.Location != "" {
			fmt.Fprintf(&b, " (%s)", c.Location)
		}
		return b.String()
	case intent.Task:
		s := "Task added: " + label(c)
		switch {
		case c.Date != "" && c.Time != "":
			s += fmt.Sprintf(" (due %s %s)", c.Date, c.Time)
		case c.Date != "":
			s += fmt.Sprintf(" (due %s)", c.Date)
		case c.DateUnresolved:
			s += " " + unresolvedDate
		}
		return s
	case intent.Note:
		s := "Note saved: " + label(c)
		if c.Date != "" {
			s += fmt.Sprintf(" (%s)", c.Date)
		}
		return s
	default:
		return c.Content
	}
}

func label(c intent.Classification) string {
	if c.Title != "" {
		return c.Title
	}
	return c.Content
}
