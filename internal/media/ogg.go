package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// OggSource streams an Ogg/Opus file as if it were a microphone, looping at
// end of file.
type OggSource struct {
	Path     string
	StreamID string

	dev device
}

func (s *OggSource) RequestAudio(ctx context.Context) (*LocalTrack, error) {
	if err := s.dev.acquire(); err != nil {
		return nil, err
	}
	if err := s.probe(); err != nil {
		s.dev.release()
		return nil, err
	}

	track, err := newOpusTrack(s.StreamID)
	if err != nil {
		s.dev.release()
		return nil, err
	}
	return newLocalTrack(track, s.stream, s.dev.release), nil
}

// probe checks that the file is readable and carries an Ogg header.
func (s *OggSource) probe() error {
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := oggreader.NewWith(f); err != nil {
		return fmt.Errorf("read ogg header %s: %w", s.Path, err)
	}
	return nil
}

func (s *OggSource) open() (*os.File, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return f, nil
}

// stream paces Ogg pages into the track using their granule positions.
func (s *OggSource) stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	for {
		if err := s.streamOnce(ctx, track); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *OggSource) streamOnce(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		return err
	}

	var lastGranule uint64
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse ogg page: %w", err)
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples)/48000*1000) * time.Millisecond

		if err := track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}
