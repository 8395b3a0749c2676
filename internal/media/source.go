// Package media acquires the local audio track and consumes remote tracks.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// ErrPermissionDenied is returned when microphone access is refused.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Source grants exclusive access to an audio input.
type Source interface {
	RequestAudio(ctx context.Context) (*LocalTrack, error)
}

// device enforces exclusive access to one input.
type device struct {
	mu   sync.Mutex
	held bool
}

func (d *device) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		return fmt.Errorf("%w: device already in use", ErrPermissionDenied)
	}
	d.held = true
	return nil
}

func (d *device) release() {
	d.mu.Lock()
	d.held = false
	d.mu.Unlock()
}

// newOpusTrack creates the sample track every source writes into.
func newOpusTrack(streamID string) (*webrtc.TrackLocalStaticSample, error) {
	if streamID == "" {
		streamID = "callr"
	}
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		streamID,
	)
}

// Decision answers a permission request.
type Decision func(ctx context.Context) (bool, error)

// Granted always allows access.
func Granted() Decision {
	return func(context.Context) (bool, error) { return true, nil }
}

// Denied always refuses access.
func Denied() Decision {
	return func(context.Context) (bool, error) { return false, nil }
}

// Gate asks for permission before delegating to Source.
type Gate struct {
	Decide Decision
	Source Source
}

func (g *Gate) RequestAudio(ctx context.Context) (*LocalTrack, error) {
	if g.Decide != nil {
		ok, err := g.Decide(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}
	return g.Source.RequestAudio(ctx)
}
