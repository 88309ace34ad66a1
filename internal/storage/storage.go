package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid record")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session owns one ordered sequence of turns. It is created by the first
// committed turn and never deleted by this package.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one immutable message of a session. Turns are ordered by Seq,
// which the store assigns at commit time; Timestamp never decreases within
// a session. Intent, Date and Time are set on assistant turns only.
type Turn struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Seq            int64     `json:"seq"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Intent         string    `json:"intent,omitempty"`
	Date           string    `json:"date,omitempty"`
	Time           string    `json:"time,omitempty"`
	DateUnresolved bool      `json:"date_unresolved,omitempty"`
}

type ArtifactKind string

const (
	KindEvent ArtifactKind = "event"
	KindTask  ArtifactKind = "task"
	KindNote  ArtifactKind = "note"
)

// Artifact is the flat persisted form of an event, task or note. SessionID
// and TurnID point back at the originating assistant turn.
type Artifact struct {
	ID          string       `json:"id"`
	Kind        ArtifactKind `json:"kind"`
	SessionID   string       `json:"session_id"`
	TurnID      string       `json:"turn_id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	Date        string       `json:"date,omitempty"`
	Time        string       `json:"time,omitempty"`
	Location    string       `json:"location,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Reminders   []int        `json:"reminders,omitempty"`
	Completed   bool         `json:"completed"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ArtifactFilter narrows Artifacts. Zero fields match everything; OpenOnly
// drops completed tasks.
type ArtifactFilter struct {
	SessionID string
	Kind      ArtifactKind
	Date      string
	OpenOnly  bool
}

func (f ArtifactFilter) Match(a Artifact) bool {
	if f.SessionID != "" && a.SessionID != f.SessionID {
		return false
	}
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.OpenOnly && a.Kind == KindTask && a.Completed {
		return false
	}
	return true
}

// Tx collects the writes of one conversation turn. Nothing is visible to
// readers until the enclosing WithTx returns nil.
type Tx interface {
	EnsureSession(id string, at time.Time) error
	AppendTurn(t Turn) (string, error)
	PutArtifact(a Artifact) (string, error)
}

// Store persists sessions, turns and artifacts.
// Implementations must be safe for concurrent use and must serialize
// commits touching the same session.
type Store interface {
	// WithTx runs fn and commits its writes atomically. If fn fails, or the
	// context is done before the commit, nothing is written.
	WithTx(ctx context.Context, fn func(Tx) error) error
	// Turns returns the most recent limit turns in chronological order.
	// limit <= 0 returns the whole session.
	Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Artifacts(ctx context.Context, f ArtifactFilter) ([]Artifact, error)
	// CompleteTask marks the task id of sessionID completed. A missing id, an
	// id of another session or a non-task artifact all yield ErrNotFound.
	CompleteTask(ctx context.Context, sessionID, id string) (Artifact, error)
	Close() error
}

func validateTurn(t Turn) error {
	if t.SessionID == "" {
		return fmt.Errorf("%w: turn without session id", ErrInvalidData)
	}
	if t.Role != RoleUser && t.Role != RoleAssistant {
		return fmt.Errorf("%w: unknown turn role %q", ErrInvalidData, t.Role)
	}
	return nil
}

func validateArtifact(a Artifact) error {
	switch a.Kind {
	case KindEvent, KindTask, KindNote:
	default:
		return fmt.Errorf("%w: unknown artifact kind %q", ErrInvalidData, a.Kind)
	}
	if a.SessionID == "" || a.TurnID == "" {
		return fmt.Errorf("%w: artifact without session or turn reference", ErrInvalidData)
	}
	return nil
}
