package signaling

import (
	"errors"
	"fmt"
)

var (
	errMissingType    = errors.New("missing message type")
	errMissingPayload = errors.New("missing payload")

	// ErrChannelClosed is returned by Send once the channel has terminated.
	ErrChannelClosed = errors.New("signaling channel closed")
)

// ParseError reports an inbound frame that is not a valid signaling message.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string {
	const maxRaw = 128
	raw := e.Raw
	if len(raw) > maxRaw {
		raw = raw[:maxRaw]
	}
	return fmt.Sprintf("parse signaling message %q: %v", raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConnectionError reports a channel that failed to open or closed unexpectedly.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("signaling connection %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
