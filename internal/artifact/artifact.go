// Package artifact maps a classified turn onto the structured record it
// produces: an Event, a Task or a Note. Response turns produce nothing.
package artifact

import (
	"fmt"
	"time"

	"ai-planner/internal/intent"
	"ai-planner/internal/storage"
)

// Artifact is the closed set {Event, Task, Note}.
type Artifact interface {
	Kind() storage.ArtifactKind
	Origin() Ref
	isArtifact()
}

// Ref points back at the originating assistant turn.
type Ref struct {
	SessionID string
	TurnID    string
}

type Event struct {
	Ref
	Title       string
	Description string
	Location    string
	Date        string
	Time        string
	Reminders   []int
	Tags        []string
}

type Task struct {
	Ref
	Description string
	Deadline    string
	DueTime     string
	Reminders   []int
	Tags        []string
	Completed   bool
}

type Note struct {
	Ref
	Title   string
	Content string
	Date    string
	Tags    []string
}

func (Event) Kind() storage.ArtifactKind { return storage.KindEvent }
func (Task) Kind() storage.ArtifactKind  { return storage.KindTask }
func (Note) Kind() storage.ArtifactKind  { return storage.KindNote }

func (e Event) Origin() Ref { return e.Ref }
func (t Task) Origin() Ref  { return t.Ref }
func (n Note) Origin() Ref  { return n.Ref }

func (Event) isArtifact() {}
func (Task) isArtifact()  {}
func (Note) isArtifact()  {}

// Derive builds the artifact for c. ok is false for responses.
func Derive(c intent.Classification, ref Ref) (Artifact, bool) {
	switch c.Intent {
	case intent.Event:
		return Event{
			Ref:         ref,
			Title:       c.Title,
			Description: c.Content,
			Location:    c.Location,
			Date:        c.Date,
			Time:        c.Time,
			Reminders:   c.Reminders,
			Tags:        c.Tags,
		}, true
	case intent.Task:
		return Task{
			Ref:         ref,
			Description: c.Content,
			Deadline:    c.Date,
			DueTime:     c.Time,
			Reminders:   c.Reminders,
			Tags:        c.Tags,
		}, true
	case intent.Note:
		return Note{
			Ref:     ref,
			Title:   c.Title,
			Content: c.Content,
			Date:    c.Date,
			Tags:    c.Tags,
		}, true
	default:
		return nil, false
	}
}

// ToRecord flattens a into its persisted form.
func ToRecord(a Artifact, createdAt time.Time) storage.Artifact {
	rec := storage.Artifact{Kind: a.Kind(), SessionID: a.Origin().SessionID, TurnID: a.Origin().TurnID, CreatedAt: createdAt}
	switch v := a.(type) {
	case Event:
		rec.Title, rec.Description, rec.Location = v.Title, v.Description, v.Location
		rec.Date, rec.Time = v.Date, v.Time
		rec.Reminders, rec.Tags = v.Reminders, v.Tags
	case Task:
		rec.Title, rec.Description = v.Description, v.Description
		rec.Date, rec.Time = v.Deadline, v.DueTime
		rec.Reminders, rec.Tags, rec.Completed = v.Reminders, v.Tags, v.Completed
	case Note:
		rec.Title, rec.Content, rec.Date, rec.Tags = v.Title, v.Content, v.Date, v.Tags
	}
	return rec
}

// FromRecord restores the typed artifact from a stored record.
func FromRecord(rec storage.Artifact) (Artifact, error) {
	ref := Ref{SessionID: rec.SessionID, TurnID: rec.TurnID}
	switch rec.Kind {
	case storage.KindEvent:
		return Event{Ref: ref, Title: rec.Title, Description: rec.Description, Location: rec.Location,
			Date: rec.Date, Time: rec.Time, Reminders: rec.Reminders, Tags: rec.Tags}, nil
	case storage.KindTask:
		return Task{Ref: ref, Description: rec.Description, Deadline: rec.Date, DueTime: rec.Time,
			Reminders: rec.Reminders, Tags: rec.Tags, Completed: rec.Completed}, nil
	case storage.KindNote:
		return Note{Ref: ref, Title: rec.Title, Content: rec.Content, Date: rec.Date, Tags: rec.Tags}, nil
	default:
		return nil, fmt.Errorf("%w: unknown artifact kind %q", storage.ErrInvalidData, rec.Kind)
	}
}
