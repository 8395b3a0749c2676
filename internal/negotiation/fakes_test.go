package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/datachannel"
	"github.com/1ureka/callr/internal/media"
	"github.com/1ureka/callr/internal/signaling"
	"github.com/1ureka/callr/internal/transport"
)

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

type fakeChannel struct {
	h signaling.Handlers

	mu      sync.Mutex
	sent    []signaling.Message
	closed  bool
	sendErr error
}

func (c *fakeChannel) Send(msg signaling.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messages returns the sent messages of type typ.
func (c *fakeChannel) messages(typ signaling.MessageType) []signaling.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []signaling.Message
	for _, m := range c.sent {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// deliver feeds one inbound frame through the same path the WebSocket
// receiver uses.
func (c *fakeChannel) deliver(raw string) {
	msg, err := signaling.Parse([]byte(raw))
	if err != nil {
		c.h.OnError(err)
		return
	}
	c.h.OnMessage(msg)
}

type fakeDialer struct {
	err    error
	dialed chan *fakeChannel
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeChannel, 4)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, h signaling.Handlers) (signaling.Channel, error) {
	if d.err != nil {
		return nil, &signaling.ConnectionError{URL: url, Err: d.err}
	}
	ch := &fakeChannel{h: h}
	d.dialed <- ch
	return ch, nil
}

// ---------------------------------------------------------------------------
// Transport engine
// ---------------------------------------------------------------------------

type fakeTransceiver struct {
	kind      webrtc.RTPCodecType
	direction webrtc.RTPTransceiverDirection

	mu      sync.Mutex
	prefs   []webrtc.RTPCodecParameters
	stopped bool
}

func (t *fakeTransceiver) Kind() webrtc.RTPCodecType                 { return t.kind }
func (t *fakeTransceiver) Direction() webrtc.RTPTransceiverDirection { return t.direction }

func (t *fakeTransceiver) SetCodecPreferences(c []webrtc.RTPCodecParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prefs = c
	return nil
}

func (t *fakeTransceiver) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *fakeTransceiver) preferences() []webrtc.RTPCodecParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prefs
}

func (t *fakeTransceiver) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeDataChannel struct{}

func (fakeDataChannel) Label() string                                 { return datachannel.Label }
func (fakeDataChannel) OnOpen(func())                                 {}
func (fakeDataChannel) OnClose(func())                                {}
func (fakeDataChannel) OnMessage(func(msg webrtc.DataChannelMessage)) {}
func (fakeDataChannel) Send([]byte) error                             { return nil }
func (fakeDataChannel) SendText(string) error                         { return nil }
func (fakeDataChannel) Close() error                                  { return nil }

type fakeEngine struct {
	h transport.Handlers

	// autoNegotiate raises negotiation-needed on every change, the way a
	// real engine does.
	autoNegotiate bool

	createOfferErr error
	setLocalErr    error
	setRemoteErr   error

	mu sync.Mutex
	st engineState
}

// engineState is what the engine has been asked to do so far.
type engineState struct {
	transceivers []*fakeTransceiver
	dataChannels int
	offers       int
	local        *webrtc.SessionDescription
	remote       *webrtc.SessionDescription
	remoteSets   int
	candidates   []webrtc.ICECandidateInit
	closed       bool
}

var _ transport.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) changed() {
	if e.autoNegotiate && e.h.OnNegotiationNeeded != nil {
		e.h.OnNegotiationNeeded()
	}
}

func (e *fakeEngine) addTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) *fakeTransceiver {
	t := &fakeTransceiver{kind: kind, direction: dir}
	e.mu.Lock()
	e.st.transceivers = append(e.st.transceivers, t)
	e.mu.Unlock()
	e.changed()
	return t
}

func (e *fakeEngine) AddAudioTrack(webrtc.TrackLocal) (transport.Transceiver, error) {
	return e.addTransceiver(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverDirectionSendrecv), nil
}

func (e *fakeEngine) AddVideoReceiver() (transport.Transceiver, error) {
	return e.addTransceiver(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverDirectionRecvonly), nil
}

func (e *fakeEngine) ReceiveCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	return transport.ReceiveCodecs(kind)
}

func (e *fakeEngine) CreateDataChannel(string, *webrtc.DataChannelInit) (datachannel.Channel, error) {
	e.mu.Lock()
	e.st.dataChannels++
	e.mu.Unlock()
	e.changed()
	return fakeDataChannel{}, nil
}

func (e *fakeEngine) CreateOffer() (webrtc.SessionDescription, error) {
	if e.createOfferErr != nil {
		return webrtc.SessionDescription{}, e.createOfferErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", e.st.offers)}, nil
}

func (e *fakeEngine) SetLocalDescription(sd webrtc.SessionDescription) error {
	if e.setLocalErr != nil {
		return e.setLocalErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.local = &sd
	return nil
}

func (e *fakeEngine) LocalDescription() *webrtc.SessionDescription {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.local
}

func (e *fakeEngine) SetRemoteDescription(sd webrtc.SessionDescription) error {
	if e.setRemoteErr != nil {
		return e.setRemoteErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.remote = &sd
	e.st.remoteSets++
	return nil
}

func (e *fakeEngine) HasRemoteDescription() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.remote != nil
}

func (e *fakeEngine) AddICECandidate(c webrtc.ICECandidateInit) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st.remote == nil {
		return fmt.Errorf("candidate %q before remote description", c.Candidate)
	}
	e.st.candidates = append(e.st.candidates, c)
	return nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.closed = true
	return nil
}

func (e *fakeEngine) snapshot() engineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.st
	st.transceivers = append([]*fakeTransceiver(nil), e.st.transceivers...)
	st.candidates = append([]webrtc.ICECandidateInit(nil), e.st.candidates...)
	return st
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// heldSource blocks media requests until release is closed.
type heldSource struct {
	release chan struct{}
	inner   media.Source
}

func (s *heldSource) RequestAudio(ctx context.Context) (*media.LocalTrack, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.inner.RequestAudio(ctx)
}
