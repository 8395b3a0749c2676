package negotiation

import (
	"errors"
	"fmt"
	"time"

	"github.com/bep/debounce"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/codec"
	"github.com/1ureka/callr/internal/media"
	"github.com/1ureka/callr/internal/signaling"
	"github.com/1ureka/callr/internal/util"
	"github.com/1ureka/callr/internal/view"
)

// debounced returns f wrapped so that a burst of calls within after runs it
// once, after the burst settles.
func debounced(after time.Duration, f func()) func() {
	d := debounce.New(after)
	return func() { d(f) }
}

// ---------------------------------------------------------------------------
// Local media
// ---------------------------------------------------------------------------

func (r *runner) handleMedia(track *media.LocalTrack, err error) {
	if r.state() != StateAwaitingLocalMedia {
		if track != nil {
			_ = track.Close()
		}
		return
	}
	if err != nil {
		if errors.Is(err, media.ErrPermissionDenied) {
			util.LogWarning("local audio unavailable: %v", err)
		}
		r.end(err)
		return
	}

	sess := r.sess
	sess.audio = track

	audio, err := sess.engine.AddAudioTrack(track.Track)
	if err != nil {
		r.end(&NegotiationError{Op: "add audio transceiver", Err: err})
		return
	}
	sess.addTransceiver(Transceiver{
		Kind:      webrtc.RTPCodecTypeAudio,
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
		handle:    audio,
	})

	video, err := sess.engine.AddVideoReceiver()
	if err != nil {
		r.end(&NegotiationError{Op: "add video transceiver", Err: err})
		return
	}
	vt := Transceiver{
		Kind:      webrtc.RTPCodecTypeVideo,
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
		handle:    video,
	}
	available := sess.engine.ReceiveCodecs(webrtc.RTPCodecTypeVideo)
	applied, err := r.opts.Codecs.Apply(video, available)
	switch {
	case err != nil:
		util.LogWarning("video codec preference %s not applied: %v", r.opts.Codecs.MimeType, err)
	case applied:
		for _, c := range r.opts.Codecs.ComputeVideoCodecPreferences(available) {
			vt.CodecPreferences = append(vt.CodecPreferences, c.MimeType)
		}
	default:
		util.LogDebug("video codec preference %s skipped", r.opts.Codecs.MimeType)
	}
	sess.addTransceiver(vt)

	if _, err := sess.dataChannel.Create(sess.engine); err != nil {
		r.end(&NegotiationError{Op: "create data channel", Err: err})
		return
	}
	if r.opts.OnDataChannel != nil {
		r.opts.OnDataChannel(sess.dataChannel)
	}

	sess.mediaReady = true
	util.LogDebug("local media ready: %d transceiver(s)", len(sess.localTransceivers))
	if sess.deferredOffer {
		sess.deferredOffer = false
		r.offer()
	}
}

// ---------------------------------------------------------------------------
// Offer / answer
// ---------------------------------------------------------------------------

func (r *runner) handleNegotiationNeeded(epoch int64) {
	sess := r.sess
	if epoch < r.offered.Load() {
		util.LogTrace("negotiation needed already covered by offer %d", r.offered.Load())
		return
	}
	switch r.state() {
	case StateAwaitingLocalMedia:
		if !sess.mediaReady {
			sess.deferredOffer = true
			return
		}
		r.offer()
	case StateNegotiating, StateAwaitingAnswer:
		if !sess.renegotiate {
			util.LogDebug("negotiation needed during cycle %d, deferring", sess.cycle)
		}
		sess.renegotiate = true
	case StateConnected:
		r.offer()
	}
}

// offer runs one negotiation cycle up to the point of waiting for the answer.
func (r *runner) offer() {
	sess := r.sess
	r.setState(StateNegotiating)
	sess.cycle++
	sess.renegotiate = false
	r.offered.Add(1)

	offer, err := sess.engine.CreateOffer()
	if err != nil {
		r.end(&NegotiationError{Op: "create offer", Err: err})
		return
	}
	if err := sess.engine.SetLocalDescription(offer); err != nil {
		r.end(&NegotiationError{Op: "set local description", Err: err})
		return
	}
	if local := sess.engine.LocalDescription(); local != nil {
		offer = *local
	}

	msg, err := signaling.Offer(offer)
	if err != nil {
		r.end(&NegotiationError{Op: "encode offer", Err: err})
		return
	}
	if err := sess.channel.Send(msg); err != nil {
		r.end(&signaling.ConnectionError{URL: r.url, Err: err})
		return
	}
	util.LogDebug("offer sent (cycle %d)", sess.cycle)

	r.setState(StateAwaitingAnswer)
	if d := r.opts.AnswerTimeout; d > 0 {
		cycle := sess.cycle
		sess.answerTimer = time.AfterFunc(d, func() {
			r.post(answerTimeoutEvent{cycle: cycle})
		})
	}
}

func (r *runner) handleMessage(msg signaling.Message) {
	switch msg.Type {
	case signaling.MsgTypeAnswer:
		r.handleAnswer(msg)
	case signaling.MsgTypeCandidate:
		r.handleRemoteCandidate(msg)
	case signaling.MsgTypeOffer:
		util.LogWarning("ignoring inbound offer in state %s", r.state())
	}
}

func (r *runner) handleAnswer(msg signaling.Message) {
	sess := r.sess
	if r.state() != StateAwaitingAnswer {
		util.LogDebug("ignoring answer in state %s", r.state())
		return
	}
	answer, err := msg.SessionDescription()
	if err != nil {
		r.end(err)
		return
	}
	if err := sess.engine.SetRemoteDescription(answer); err != nil {
		r.end(&NegotiationError{Op: "set remote description", Err: err})
		return
	}
	sess.stopAnswerTimer()
	for _, c := range sess.takeCandidates() {
		r.applyCandidate(c)
	}
	r.setState(StateConnected)
	r.logNegotiatedCodecs(answer)

	if sess.renegotiate {
		r.offer()
	}
}

func (r *runner) logNegotiatedCodecs(answer webrtc.SessionDescription) {
	codecs, err := codec.NegotiatedCodecs(answer, webrtc.RTPCodecTypeVideo)
	if err != nil {
		util.LogDebug("inspect answer: %v", err)
		return
	}
	if len(codecs) > 0 && !codec.Contains(codecs, r.opts.Codecs.MimeType) {
		util.LogWarning("remote did not accept %s, video codecs: %v", r.opts.Codecs.MimeType, codecs)
		return
	}
	util.LogDebug("video codecs: %v", codecs)
}

// ---------------------------------------------------------------------------
// Candidates
// ---------------------------------------------------------------------------

func (r *runner) handleRemoteCandidate(msg signaling.Message) {
	c, err := msg.ICECandidate()
	if err != nil {
		r.end(err)
		return
	}
	if !r.sess.engine.HasRemoteDescription() {
		r.sess.queueCandidate(c)
		util.Stats.AddCandidateQueued()
		return
	}
	r.applyCandidate(c)
}

func (r *runner) applyCandidate(c webrtc.ICECandidateInit) {
	if err := r.sess.engine.AddICECandidate(c); err != nil {
		util.LogWarning("add remote candidate: %v", err)
		return
	}
	util.Stats.AddCandidateApplied()
}

func (r *runner) handleLocalCandidate(c webrtc.ICECandidateInit) {
	msg, err := signaling.Candidate(c)
	if err != nil {
		util.LogWarning("encode local candidate: %v", err)
		return
	}
	if err := r.sess.channel.Send(msg); err != nil {
		util.LogWarning("send local candidate: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Transport state
// ---------------------------------------------------------------------------

func (r *runner) handleConnectionState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		r.opts.View.Render(view.PhaseConnected)
		if r.sess.audio != nil {
			r.sess.audio.Start(r.ctx)
		}
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		r.end(fmt.Errorf("%w: %s", ErrTransportClosed, state))
	}
}
