package artifact

import (
	"errors"
	"testing"
	"time"

	"ai-planner/internal/intent"
	"ai-planner/internal/storage"
)

var ref = Ref{SessionID: "s1", TurnID: "t1"}

func TestDeriveEvent(t *testing.T) {
	c := intent.Classification{Intent: intent.Event, Title: "Meeting", Content: "Schedule meeting tomorrow at 3pm", Date: "2024-01-11", Time: "15:00", Reminders: []int{30}}
	a, ok := Derive(c, ref)
	if !ok {
		t.Fatalf("event should produce an artifact")
	}
	ev, isEvent := a.(Event)
	if !isEvent {
		t.Fatalf("want Event, got %T", a)
	}
	if ev.Title != "Meeting" || ev.Date != c.Date || ev.Time != c.Time || ev.Origin() != ref {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDeriveTaskStartsOpen(t *testing.T) {
	a, ok := Derive(intent.Classification{Intent: intent.Task, Title: "Call mom", Content: "Call mom"}, ref)
	if !ok {
		t.Fatalf("task should produce an artifact")
	}
	task := a.(Task)
	if task.Completed || task.Deadline != "" || task.Description != "Call mom" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestDeriveResponseProducesNothing(t *testing.T) {
	if a, ok := Derive(intent.Classification{Intent: intent.Response, Content: "hi"}, ref); ok || a != nil {
		t.Fatalf("response must not produce an artifact, got %+v", a)
	}
}

func TestDeriveMatchesIntent(t *testing.T) {
	for _, in := range intent.All() {
		a, ok := Derive(intent.Classification{Intent: in, Content: "x"}, ref)
		if ok != in.HasArtifact() {
			t.Fatalf("%s: ok=%v, HasArtifact=%v", in, ok, in.HasArtifact())
		}
		if ok && string(a.Kind()) != in.String() {
			t.Fatalf("%s derived %s", in, a.Kind())
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	items := []Artifact{
		Event{Ref: ref, Title: "Standup", Description: "daily", Location: "office", Date: "2024-01-11", Time: "10:00", Reminders: []int{30}},
		Task{Ref: ref, Description: "Pay rent", Deadline: "2024-02-01", Reminders: []int{60}, Tags: []string{"home"}},
		Note{Ref: ref, Title: "Wifi", Content: "password is hunter2", Date: "2024-01-10"},
	}
	for _, want := range items {
		rec := ToRecord(want, at)
		if rec.Kind != want.Kind() || rec.SessionID != "s1" || rec.TurnID != "t1" || !rec.CreatedAt.Equal(at) {
			t.Fatalf("bad record for %T: %+v", want, rec)
		}
		got, err := FromRecord(rec)
		if err != nil {
			t.Fatalf("from record: %v", err)
		}
		if got.Kind() != want.Kind() || got.Origin() != want.Origin() {
			t.Fatalf("round trip changed %T: %+v", want, got)
		}
	}
	if _, err := FromRecord(storage.Artifact{Kind: "meeting"}); !errors.Is(err, storage.ErrInvalidData) {
		t.Fatalf("want ErrInvalidData, got %v", err)
	}
}
