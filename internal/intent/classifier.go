package intent

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"ai-planner/internal/llm"
	"ai-planner/internal/temporal"
)

// DefaultWindow is how many prior turns the classifier sees by default.
const DefaultWindow = 20

// Default reminder offsets in minutes, applied when the oracle gives none.
const (
	defaultEventReminder = 30
	defaultTaskReminder  = 60
)

// Classification is the classifier's output for one message. Date and Time
// are empty when absent; DateUnresolved marks temporal text that could not be
// normalized.
type Classification struct {
	Intent         Intent   `json:"intent"`
	Title          string   `json:"title,omitempty"`
	Content        string   `json:"content"`
	When           string   `json:"when,omitempty"`
	Date           string   `json:"date,omitempty"`
	Time           string   `json:"time,omitempty"`
	DateUnresolved bool     `json:"date_unresolved,omitempty"`
	Location       string   `json:"location,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Reminders      []int    `json:"reminders,omitempty"`
}

type Classifier struct {
	oracle Oracle
	window int
}

// NewClassifier builds a classifier that passes at most window prior turns to
// the oracle. window <= 0 selects DefaultWindow.
func NewClassifier(oracle Oracle, window int) *Classifier {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Classifier{oracle: oracle, window: window}
}

// Classify labels message given the chronological history that precedes it.
// Relative dates are resolved against now, never against the oracle's clock.
func (c *Classifier) Classify(ctx context.Context, history []llm.Message, message string, now time.Time) (Classification, error) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return Classification{}, ErrEmptyMessage
	}
	if len(history) > c.window {
		history = history[len(history)-c.window:]
	}

	v, err := c.oracle.Classify(ctx, Request{History: history, Message: msg, Now: now})
	if err != nil {
		return Classification{}, oracleError(ctx, err)
	}
	in, err := Parse(v.Intent)
	if err != nil {
		return Classification{}, &ClassificationError{Reason: ReasonInvalidIntent, Err: err}
	}

	content := strings.TrimSpace(v.Content)
	if in == Response {
		if content == "" {
			return Classification{}, &ClassificationError{Reason: ReasonEmptyReply}
		}
		return Classification{Intent: Response, Content: content}, nil
	}

	title := strings.TrimSpace(v.Title)
	if content == "" {
		content = title
	}
	if content == "" {
		content = msg
	}
	if title == "" {
		title = content
	}

	out := Classification{
		Intent:    in,
		Title:     title,
		Content:   content,
		When:      strings.TrimSpace(v.When),
		Location:  strings.TrimSpace(v.Location),
		Tags:      v.Tags,
		Reminders: v.Reminders,
	}
	res, err := temporal.Normalize(out.When, now)
	switch {
	case errors.Is(err, temporal.ErrUnresolved):
		log.Printf("classifier: could not resolve %q for %s, keeping it unresolved", out.When, in)
		out.DateUnresolved = true
	case err != nil:
		return Classification{}, err
	default:
		out.Date, out.Time = res.Date, res.Time
	}
	// Notes carry a date but never a time of day.
	if in == Note {
		out.Time = ""
	}
	if len(out.Reminders) == 0 {
		switch {
		case in == Event && out.Date != "":
			out.Reminders = []int{defaultEventReminder}
		case in == Task && out.Date != "":
			out.Reminders = []int{defaultTaskReminder}
		}
	}
	if in == Note {
		out.Reminders = nil
	}
	return out, nil
}

func oracleError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrMalformedReply):
		return &ClassificationError{Reason: ReasonMalformed, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClassificationError{Reason: ReasonTimeout, Err: err}
	default:
		return &ClassificationError{Reason: ReasonOracle, Err: err}
	}
}
