package negotiation

// State is the negotiation state of a session.
type State int32

const (
	StateIdle State = iota
	StateAwaitingLocalMedia
	StateNegotiating
	StateAwaitingAnswer
	// StateConnected means the answer has been applied. Whether media is
	// flowing yet is reported separately through the view.
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocalMedia:
		return "awaiting-local-media"
	case StateNegotiating:
		return "negotiating"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
