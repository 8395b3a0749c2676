// Package transport adapts pion's PeerConnection into the engine the
// negotiation coordinator drives.
package transport

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/datachannel"
	"github.com/1ureka/callr/internal/util"
)

// Handlers are the engine's outbound events. They are registered once, when
// the engine is created.
type Handlers struct {
	// OnICECandidate receives every gathered local candidate. A nil
	// candidate marks the end of gathering.
	OnICECandidate func(*webrtc.ICECandidateInit)
	// OnTrack receives remote tracks.
	OnTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	// OnNegotiationNeeded fires when the session has changed in a way that
	// requires a new offer.
	OnNegotiationNeeded func()
	// OnConnectionStateChange reports aggregate connectivity changes.
	OnConnectionStateChange func(webrtc.PeerConnectionState)
}

// Transceiver is the handle of one media section.
type Transceiver interface {
	Kind() webrtc.RTPCodecType
	Direction() webrtc.RTPTransceiverDirection
	Stop() error
}

// Engine is the real-time media stack the coordinator negotiates with.
type Engine interface {
	AddAudioTrack(track webrtc.TrackLocal) (Transceiver, error)
	AddVideoReceiver() (Transceiver, error)
	ReceiveCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (datachannel.Channel, error)

	CreateOffer() (webrtc.SessionDescription, error)
	SetLocalDescription(sd webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(sd webrtc.SessionDescription) error
	HasRemoteDescription() bool
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	Close() error
}

// Factory creates one engine per session.
type Factory func(h Handlers) (Engine, error)

// NewFactory returns a Factory producing pion engines that use iceServers.
func NewFactory(iceServers []string) Factory {
	return func(h Handlers) (Engine, error) {
		return NewPionEngine(iceServers, h)
	}
}

// PionEngine wraps a single PeerConnection.
type PionEngine struct {
	pc *webrtc.PeerConnection
}

var _ Engine = (*PionEngine)(nil)

// NewPionEngine creates a PeerConnection and registers h on it.
func NewPionEngine(iceServers []string, h Handlers) (*PionEngine, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	pc, err := newPeerConnection(api, iceServers)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if h.OnICECandidate == nil {
			return
		}
		if c == nil {
			h.OnICECandidate(nil)
			return
		}
		init := c.ToJSON()
		h.OnICECandidate(&init)
	})
	if h.OnTrack != nil {
		pc.OnTrack(h.OnTrack)
	}
	if h.OnNegotiationNeeded != nil {
		pc.OnNegotiationNeeded(h.OnNegotiationNeeded)
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		if h.OnConnectionStateChange != nil {
			h.OnConnectionStateChange(state)
		}
	})

	return &PionEngine{pc: pc}, nil
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// AddAudioTrack adds a sendrecv transceiver carrying track.
func (e *PionEngine) AddAudioTrack(track webrtc.TrackLocal) (Transceiver, error) {
	tr, err := e.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		return nil, err
	}

	go drainRTCP(tr.Sender())
	return tr, nil
}

// AddVideoReceiver adds a recvonly video transceiver.
func (e *PionEngine) AddVideoReceiver() (Transceiver, error) {
	tr, err := e.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// ReceiveCodecs returns the registered codecs for kind in registration order.
func (e *PionEngine) ReceiveCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	return ReceiveCodecs(kind)
}

// CreateDataChannel creates a data channel on the PeerConnection.
func (e *PionEngine) CreateDataChannel(label string, init *webrtc.DataChannelInit) (datachannel.Channel, error) {
	dc, err := e.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer without special constraints.
func (e *PionEngine) CreateOffer() (webrtc.SessionDescription, error) {
	return e.pc.CreateOffer(nil)
}

// SetLocalDescription applies the local SDP.
func (e *PionEngine) SetLocalDescription(sd webrtc.SessionDescription) error {
	return e.pc.SetLocalDescription(sd)
}

// LocalDescription returns the applied local SDP, nil before one is set.
func (e *PionEngine) LocalDescription() *webrtc.SessionDescription {
	return e.pc.LocalDescription()
}

// SetRemoteDescription applies the remote SDP.
func (e *PionEngine) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return e.pc.SetRemoteDescription(sd)
}

// HasRemoteDescription reports whether a remote SDP has been applied.
func (e *PionEngine) HasRemoteDescription() bool {
	return e.pc.RemoteDescription() != nil
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (e *PionEngine) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return e.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// ConnectionState returns the current PeerConnection state.
func (e *PionEngine) ConnectionState() webrtc.PeerConnectionState {
	return e.pc.ConnectionState()
}

// Close shuts down the PeerConnection.
func (e *PionEngine) Close() error {
	err := e.pc.Close()
	if errors.Is(err, webrtc.ErrConnectionClosed) {
		return nil
	}
	return err
}
