package intent

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMalformedReply = errors.New("oracle reply is not valid classification JSON")
)

type Reason string

const (
	ReasonOracle        Reason = "oracle_unavailable"
	ReasonTimeout       Reason = "timeout"
	ReasonInvalidIntent Reason = "invalid_intent"
	ReasonMalformed     Reason = "malformed_reply"
	ReasonEmptyReply    Reason = "empty_reply"
)

// ClassificationError means the oracle could not produce a usable verdict.
// Nothing about the turn should be persisted when it is returned.
type ClassificationError struct {
	Reason Reason
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("classification failed: %s", e.Reason)
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Reason, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
