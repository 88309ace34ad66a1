package assistant

import (
	"errors"
	"fmt"
)

// Kind groups failures by what the caller can do about them.
type Kind string

const (
	// KindInput: bad arguments, nothing was touched; fix and resubmit.
	KindInput Kind = "input"
	// KindClassification: the oracle failed or timed out; nothing was written.
	KindClassification Kind = "classification"
	// KindPersistence: the commit failed; nothing was written, retry the turn.
	KindPersistence Kind = "persistence"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMissingSession = errors.New("session id is required")
)

// Error is the structured failure returned by every Service operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func inputErr(op string, err error) error { return &Error{Kind: KindInput, Op: op, Err: err} }

func classificationErr(op string, err error) error {
	return &Error{Kind: KindClassification, Op: op, Err: err}
}

func persistenceErr(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// Warning is a soft, non-fatal condition attached to a successful result.
type Warning string

const (
	WarnDateUnresolved Warning = "date_unresolved"
	WarnExportFailed   Warning = "calendar_export_failed"
)
