// Package negotiation drives one WebRTC session from channel open to
// teardown: local media, offer/answer, candidate exchange and the side data
// channel, all serialized through a single event loop.
package negotiation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/codec"
	"github.com/1ureka/callr/internal/datachannel"
	"github.com/1ureka/callr/internal/media"
	"github.com/1ureka/callr/internal/signaling"
	"github.com/1ureka/callr/internal/transport"
	"github.com/1ureka/callr/internal/util"
	"github.com/1ureka/callr/internal/view"
)

// Options wires the coordinator to its collaborators.
type Options struct {
	Dialer  signaling.Dialer
	Engines transport.Factory
	Media   media.Source
	Codecs  codec.Policy
	View    view.ConnectionStateView

	// DataChannel receives the side channel's open and message events.
	DataChannel datachannel.Hooks
	// TrackSink consumes remote tracks; media.Drain when nil.
	TrackSink media.TrackSink
	// OnDataChannel is called with the session's data channel manager once
	// it has been created, so callers can send on it.
	OnDataChannel func(*datachannel.Manager)

	// Debounce coalesces bursts of negotiation-needed triggers. Zero
	// disables it.
	Debounce time.Duration
	// AnswerTimeout bounds the wait for an answer. Zero waits forever.
	AnswerTimeout time.Duration
}

// Coordinator runs sessions one at a time.
type Coordinator struct {
	opts Options

	running atomic.Bool
	state   atomic.Int32
}

// New validates opts and returns a coordinator in the idle state.
func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.Dialer == nil:
		return nil, errors.New("negotiation: dialer is required")
	case opts.Engines == nil:
		return nil, errors.New("negotiation: engine factory is required")
	case opts.Media == nil:
		return nil, errors.New("negotiation: media source is required")
	case opts.View == nil:
		return nil, errors.New("negotiation: view is required")
	}
	if opts.Codecs.MimeType == "" {
		opts.Codecs.MimeType = codec.DefaultVideoMimeType
	}
	if opts.TrackSink == nil {
		opts.TrackSink = media.Drain
	}
	return &Coordinator{opts: opts}, nil
}

// State returns the state of the current or most recent session.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Connect opens a channel to url and runs one session until it ends. It
// returns only after teardown has completed, with the error that ended the
// session: nil for a normal remote close, ctx.Err() on cancellation.
func (c *Coordinator) Connect(ctx context.Context, url string) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrSessionActive
	}
	defer c.running.Store(false)

	c.state.Store(int32(StateIdle))
	r := newRunner(ctx, c)
	return r.run(url)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

type event interface{}

type messageEvent struct{ msg signaling.Message }

type channelErrorEvent struct{ err error }

type channelClosedEvent struct{ err error }

type mediaEvent struct {
	track *media.LocalTrack
	err   error
}

// negotiationNeededEvent carries the number of offers built when it was
// raised; an offer built since then already covers it.
type negotiationNeededEvent struct{ epoch int64 }

type localCandidateEvent struct{ candidate webrtc.ICECandidateInit }

type connectionStateEvent struct{ state webrtc.PeerConnectionState }

type answerTimeoutEvent struct{ cycle int }

const eventBuffer = 64

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// runner owns one session. Only its loop goroutine touches sess.
type runner struct {
	c    *Coordinator
	opts Options
	url  string

	ctx    context.Context
	cancel context.CancelFunc

	events chan event
	done   chan struct{}

	sess      *Session
	negotiate func()
	offered   atomic.Int64

	ended bool
	err   error
}

func newRunner(ctx context.Context, c *Coordinator) *runner {
	rCtx, cancel := context.WithCancel(ctx)
	return &runner{
		c:      c,
		opts:   c.opts,
		ctx:    rCtx,
		cancel: cancel,
		events: make(chan event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// post hands ev to the loop. It reports false once the session is over.
func (r *runner) post(ev event) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

func (r *runner) run(url string) error {
	r.url = url
	r.opts.View.Render(view.PhaseConnecting)

	ch, err := r.opts.Dialer.Dial(r.ctx, url, signaling.Handlers{
		OnMessage: func(msg signaling.Message) { r.post(messageEvent{msg: msg}) },
		OnError:   func(err error) { r.post(channelErrorEvent{err: err}) },
		OnClose:   func(err error) { r.post(channelClosedEvent{err: err}) },
	})
	if err != nil {
		r.end(err)
		r.teardown()
		return r.err
	}

	r.open(ch)
	for !r.ended {
		select {
		case ev := <-r.events:
			r.handle(ev)
		case <-r.ctx.Done():
			r.end(r.ctx.Err())
		}
	}
	r.teardown()
	return r.err
}

func (r *runner) setState(s State) {
	if r.sess != nil {
		if r.sess.state == s {
			return
		}
		util.LogDebug("session: %s -> %s", r.sess.state, s)
		r.sess.state = s
	}
	r.c.state.Store(int32(s))
}

func (r *runner) state() State {
	if r.sess == nil {
		return StateIdle
	}
	return r.sess.state
}

// end records the first terminating error and stops the loop.
func (r *runner) end(err error) {
	if r.ended {
		return
	}
	r.ended = true
	r.err = err
}

// open creates the session and its engine, then asks for local media.
func (r *runner) open(ch signaling.Channel) {
	hooks := r.opts.DataChannel
	r.sess = newSession(ch, datachannel.NewManager(datachannel.BestEffort(), hooks))
	r.setState(StateAwaitingLocalMedia)

	r.negotiate = func() { r.post(negotiationNeededEvent{epoch: r.offered.Load()}) }
	if r.opts.Debounce > 0 {
		r.negotiate = debounced(r.opts.Debounce, r.negotiate)
	}

	sink := r.opts.TrackSink
	engine, err := r.opts.Engines(transport.Handlers{
		OnICECandidate: func(c *webrtc.ICECandidateInit) {
			if c != nil {
				r.post(localCandidateEvent{candidate: *c})
			}
		},
		OnTrack: func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			go sink(track, receiver)
		},
		OnNegotiationNeeded: func() { r.negotiate() },
		OnConnectionStateChange: func(state webrtc.PeerConnectionState) {
			r.post(connectionStateEvent{state: state})
		},
	})
	if err != nil {
		r.end(&NegotiationError{Op: "create engine", Err: err})
		return
	}
	r.sess.engine = engine

	go func() {
		track, err := r.opts.Media.RequestAudio(r.ctx)
		if !r.post(mediaEvent{track: track, err: err}) && track != nil {
			_ = track.Close()
		}
	}()
}

func (r *runner) handle(ev event) {
	switch ev := ev.(type) {
	case messageEvent:
		r.handleMessage(ev.msg)
	case channelErrorEvent:
		r.end(ev.err)
	case channelClosedEvent:
		if ev.err != nil {
			r.end(ev.err)
			return
		}
		util.LogInfo("signaling channel closed by remote")
		r.end(nil)
	case mediaEvent:
		r.handleMedia(ev.track, ev.err)
	case negotiationNeededEvent:
		r.handleNegotiationNeeded(ev.epoch)
	case localCandidateEvent:
		r.handleLocalCandidate(ev.candidate)
	case connectionStateEvent:
		r.handleConnectionState(ev.state)
	case answerTimeoutEvent:
		if r.state() == StateAwaitingAnswer && ev.cycle == r.sess.cycle {
			r.end(&NegotiationError{Op: "await answer", Err: ErrAnswerTimeout})
		}
	}
}

// teardown releases the session and resets the view. Events posted after
// this point are dropped.
func (r *runner) teardown() {
	close(r.done)
	r.cancel()

	if r.sess != nil {
		if err := r.sess.close(); err != nil {
			util.LogWarning("session teardown: %v", err)
		}
	}
	r.setState(StateDisconnected)
	r.opts.View.Render(view.PhaseDisconnected)

	switch {
	case r.err == nil:
		util.LogInfo("session closed")
	case errors.Is(r.err, context.Canceled):
		util.LogInfo("session cancelled")
	default:
		util.LogError("session ended: %v", r.err)
	}
}
