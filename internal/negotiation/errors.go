package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned by Connect while another session runs.
	ErrSessionActive = errors.New("a session is already active")
	// ErrAnswerTimeout is wrapped in a NegotiationError when no answer
	// arrives in time.
	ErrAnswerTimeout = errors.New("timed out waiting for answer")
	// ErrTransportClosed ends a session whose transport reported a terminal state.
	ErrTransportClosed = errors.New("transport disconnected")
)

// NegotiationError reports a failed description or offer step. It always
// ends the session; there is no automatic retry.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation: %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
