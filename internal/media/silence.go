package media

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const opusFrameDuration = 20 * time.Millisecond

// opusSilence is a single Opus comfort-noise frame (TOC 0xF8, 20ms).
var opusSilence = []byte{0xF8, 0xFF, 0xFE}

// SilenceSource stands in for a microphone on headless machines.
type SilenceSource struct {
	StreamID string

	dev device
}

func (s *SilenceSource) RequestAudio(ctx context.Context) (*LocalTrack, error) {
	if err := s.dev.acquire(); err != nil {
		return nil, err
	}
	track, err := newOpusTrack(s.StreamID)
	if err != nil {
		s.dev.release()
		return nil, err
	}
	return newLocalTrack(track, writeSilence, s.dev.release), nil
}

func writeSilence(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: opusFrameDuration}); err != nil {
				return err
			}
		}
	}
}
