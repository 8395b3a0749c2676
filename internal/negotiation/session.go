package negotiation

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/datachannel"
	"github.com/1ureka/callr/internal/media"
	"github.com/1ureka/callr/internal/signaling"
	"github.com/1ureka/callr/internal/transport"
)

// Transceiver records one media section the session asked for.
type Transceiver struct {
	Kind             webrtc.RTPCodecType
	Direction        webrtc.RTPTransceiverDirection
	CodecPreferences []string

	handle transport.Transceiver
}

// Session is the single negotiation context of one open signaling channel.
// It is owned by the coordinator's loop goroutine.
type Session struct {
	state State

	channel     signaling.Channel
	engine      transport.Engine
	audio       *media.LocalTrack
	dataChannel *datachannel.Manager

	localTransceivers       []Transceiver
	pendingRemoteCandidates []webrtc.ICECandidateInit

	// cycle counts offers sent; timers compare against it.
	cycle int
	// mediaReady is set once transceivers and the data channel exist.
	mediaReady bool
	// deferredOffer records a negotiation trigger seen before mediaReady.
	deferredOffer bool
	// renegotiate records a trigger seen while an answer was outstanding.
	renegotiate bool

	answerTimer *time.Timer
}

func newSession(ch signaling.Channel, dc *datachannel.Manager) *Session {
	return &Session{
		state:       StateIdle,
		channel:     ch,
		dataChannel: dc,
	}
}

func (s *Session) addTransceiver(t Transceiver) {
	s.localTransceivers = append(s.localTransceivers, t)
}

func (s *Session) queueCandidate(c webrtc.ICECandidateInit) {
	s.pendingRemoteCandidates = append(s.pendingRemoteCandidates, c)
}

// takeCandidates empties the queue and returns it in arrival order.
func (s *Session) takeCandidates() []webrtc.ICECandidateInit {
	out := s.pendingRemoteCandidates
	s.pendingRemoteCandidates = nil
	return out
}

func (s *Session) stopAnswerTimer() {
	if s.answerTimer != nil {
		s.answerTimer.Stop()
		s.answerTimer = nil
	}
}

// close releases everything the session holds, in reverse order of
// acquisition. It reports every failure rather than the first.
func (s *Session) close() error {
	var result *multierror.Error

	s.stopAnswerTimer()
	for _, t := range s.localTransceivers {
		if t.handle == nil {
			continue
		}
		if err := t.handle.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.dataChannel != nil {
		if err := s.dataChannel.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.audio != nil {
		if err := s.audio.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.localTransceivers = nil
	s.pendingRemoteCandidates = nil
	return result.ErrorOrNil()
}
