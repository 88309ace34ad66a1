package reply

import (
	"testing"

	"ai-planner/internal/intent"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   intent.Classification
		want string
	}{
		{
			name: "response verbatim",
			in:   intent.Classification{Intent: intent.Response, Content: "  Hi there!  "},
			want: "  Hi there!  ",
		},
		{
			name: "event with date and time",
			in:   intent.Classification{Intent: intent.Event, Title: "Meeting", Date: "2024-01-11", Time: "15:00"},
			want: "Event scheduled: Meeting on 2024-01-11 at 15:00",
		},
		{
			name: "event with location",
			in:   intent.Classification{Intent: intent.Event, Title: "Lunch", Date: "2024-01-11", Location: "Cafe"},
			want: "Event scheduled: Lunch on 2024-01-11 (Cafe)",
		},
		{
			name: "event unresolved",
			in:   intent.Classification{Intent: intent.Event, Title: "Party", DateUnresolved: true},
			want: "Event scheduled: Party (date to be confirmed)",
		},
		{
			name: "task without deadline",
			in:   intent.Classification{Intent: intent.Task, Content: "Call mom"},
			want: "Task added: Call mom",
		},
		{
			name: "task with deadline",
			in:   intent.Classification{Intent: intent.Task, Title: "Pay rent", Date: "2024-02-01"},
			want: "Task added: Pay rent (due 2024-02-01)",
		},
		{
			name: "note",
			in:   intent.Classification{Intent: intent.Note, Title: "Wifi password", Content: "hunter2"},
			want: "Note saved: Wifi password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.in); got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	c := intent.Classification{Intent: intent.Event, Title: "Meeting", Date: "2024-01-11", Time: "15:00"}
	if Render(c) != Render(c) {
		t.Fatalf("render must be deterministic")
	}
}
