package intent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-planner/internal/llm"
)

var now = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

func stub(v Verdict, err error) Oracle {
	return OracleFunc(func(ctx context.Context, req Request) (Verdict, error) { return v, err })
}

func TestClassifyEventScenario(t *testing.T) {
	c := NewClassifier(stub(Verdict{Intent: "event", Title: "Meeting", When: "tomorrow at 3pm"}, nil), 0)
	got, err := c.Classify(context.Background(), nil, "Schedule meeting tomorrow at 3pm", now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Intent != Event || got.Date != "2024-01-11" || got.Time != "15:00" {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if got.Title != "Meeting" || got.Content != "Meeting" {
		t.Fatalf("title/content fallback broken: %+v", got)
	}
	if len(got.Reminders) != 1 || got.Reminders[0] != 30 {
		t.Fatalf("default event reminder missing: %+v", got.Reminders)
	}
}

func TestClassifyTaskWithoutDate(t *testing.T) {
	c := NewClassifier(stub(Verdict{Intent: "Task", Content: "Call mom"}, nil), 0)
	got, err := c.Classify(context.Background(), nil, "Remind me to call mom", now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Intent != Task || got.Date != "" || got.Time != "" || got.DateUnresolved {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if len(got.Reminders) != 0 {
		t.Fatalf("no deadline means no default reminder: %+v", got.Reminders)
	}
}

func TestClassifyResponseDropsTemporalFields(t *testing.T) {
	c := NewClassifier(stub(Verdict{Intent: "response", Content: " Hi there! ", When: "tomorrow"}, nil), 0)
	got, err := c.Classify(context.Background(), nil, "hello", now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Intent != Response || got.Content != "Hi there!" || got.Date != "" || got.Time != "" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestClassifyUnresolvedDateIsSoft(t *testing.T) {
	c := NewClassifier(stub(Verdict{Intent: "event", Title: "Party", When: "sometime soon"}, nil), 0)
	got, err := c.Classify(context.Background(), nil, "party sometime soon", now)
	if err != nil {
		t.Fatalf("ambiguity must not fail the turn: %v", err)
	}
	if got.Intent != Event || !got.DateUnresolved || got.Date != "" || got.Time != "" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestClassifyNoteKeepsDateOnly(t *testing.T) {
	c := NewClassifier(stub(Verdict{Intent: "note", Content: "room code 4567", When: "today at 10am"}, nil), 0)
	got, err := c.Classify(context.Background(), nil, "remember the room code is 4567", now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Date != "2024-01-10" || got.Time != "" || got.Reminders != nil {
		t.Fatalf("unexpected note: %+v", got)
	}
}

func TestClassifyRejectsEmptyMessage(t *testing.T) {
	called := false
	c := NewClassifier(OracleFunc(func(ctx context.Context, req Request) (Verdict, error) {
		called = true
		return Verdict{}, nil
	}), 0)
	if _, err := c.Classify(context.Background(), nil, "   ", now); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if called {
		t.Fatalf("oracle must not be called for empty input")
	}
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		name   string
		oracle Oracle
		reason Reason
	}{
		{"unknown intent", stub(Verdict{Intent: "reminder", Content: "x"}, nil), ReasonInvalidIntent},
		{"empty intent", stub(Verdict{Content: "x"}, nil), ReasonInvalidIntent},
		{"empty reply", stub(Verdict{Intent: "response"}, nil), ReasonEmptyReply},
		{"oracle down", stub(Verdict{}, errors.New("connection refused")), ReasonOracle},
		{"timeout", stub(Verdict{}, fmt.Errorf("call: %w", context.DeadlineExceeded)), ReasonTimeout},
		{"malformed", stub(Verdict{}, fmt.Errorf("%w: nope", ErrMalformedReply)), ReasonMalformed},
	}
	for _, tc := range cases {
		_, err := NewClassifier(tc.oracle, 0).Classify(context.Background(), nil, "hi", now)
		var ce *ClassificationError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: want ClassificationError, got %v", tc.name, err)
		}
		if ce.Reason != tc.reason {
			t.Fatalf("%s: want reason %s, got %s", tc.name, tc.reason, ce.Reason)
		}
	}
}

func TestClassifyBoundsHistory(t *testing.T) {
	var seen Request
	c := NewClassifier(OracleFunc(func(ctx context.Context, req Request) (Verdict, error) {
		seen = req
		return Verdict{Intent: "response", Content: "ok"}, nil
	}), 3)

	var history []llm.Message
	for i := 0; i < 10; i++ {
		history = append(history, llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	if _, err := c.Classify(context.Background(), history, "  next  ", now); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(seen.History) != 3 || seen.History[0].Content != "m7" || seen.History[2].Content != "m9" {
		t.Fatalf("want the 3 most recent turns in order, got %+v", seen.History)
	}
	if seen.Message != "next" || !seen.Now.Equal(now) {
		t.Fatalf("request not forwarded as expected: %+v", seen)
	}
}

func TestParseIntent(t *testing.T) {
	for _, in := range All() {
		got, err := Parse(" " + string(in) + " ")
		if err != nil || got != in {
			t.Fatalf("parse %q: %v %v", in, got, err)
		}
	}
	if _, err := Parse("meeting"); err == nil {
		t.Fatalf("expected error")
	}
	if Response.HasArtifact() || !Event.HasArtifact() || !Task.HasArtifact() || !Note.HasArtifact() {
		t.Fatalf("HasArtifact mapping broken")
	}
}
