package media

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// LocalTrack is a granted audio track. Samples only flow after Start; Close
// stops them and gives the device back.
type LocalTrack struct {
	Track *webrtc.TrackLocalStaticSample

	produce func(ctx context.Context, track *webrtc.TrackLocalStaticSample) error
	release func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

func newLocalTrack(track *webrtc.TrackLocalStaticSample, produce func(context.Context, *webrtc.TrackLocalStaticSample) error, release func()) *LocalTrack {
	return &LocalTrack{Track: track, produce: produce, release: release}
}

// Start begins pacing samples into the track. Calling it again is a no-op.
func (t *LocalTrack) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		if err := t.produce(ctx, t.Track); err != nil && ctx.Err() == nil {
			logProduceError(t.Track.ID(), err)
		}
	}()
}

// Close stops the producer and releases the device.
func (t *LocalTrack) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if t.release != nil {
		t.release()
	}
	return nil
}
