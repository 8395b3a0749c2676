package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	ctx := context.Background()

	t.Run("denied", func(t *testing.T) {
		g := &Gate{Decide: Denied(), Source: &SilenceSource{}}
		track, err := g.RequestAudio(ctx)
		require.ErrorIs(t, err, ErrPermissionDenied)
		require.Nil(t, track)
	})

	t.Run("decision error counts as denial", func(t *testing.T) {
		g := &Gate{
			Decide: func(context.Context) (bool, error) { return false, errors.New("no tty") },
			Source: &SilenceSource{},
		}
		_, err := g.RequestAudio(ctx)
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("granted", func(t *testing.T) {
		g := &Gate{Decide: Granted(), Source: &SilenceSource{}}
		track, err := g.RequestAudio(ctx)
		require.NoError(t, err)
		require.NoError(t, track.Close())
	})
}

func TestSourceIsExclusive(t *testing.T) {
	ctx := context.Background()
	src := &SilenceSource{StreamID: "test"}

	first, err := src.RequestAudio(ctx)
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeOpus, first.Track.Codec().MimeType)
	require.Equal(t, "test", first.Track.StreamID())

	_, err = src.RequestAudio(ctx)
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, first.Close())
	second, err := src.RequestAudio(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestLocalTrackStartClose(t *testing.T) {
	src := &SilenceSource{}
	track, err := src.RequestAudio(context.Background())
	require.NoError(t, err)

	track.Start(context.Background())
	track.Start(context.Background())
	require.NoError(t, track.Close())
	require.NoError(t, track.Close())

	// a closed track never starts again
	track.Start(context.Background())
	require.NoError(t, track.Close())
}

func TestCloseWithoutStart(t *testing.T) {
	released := false
	track := newLocalTrack(nil, nil, func() { released = true })
	require.NoError(t, track.Close())
	require.True(t, released)
}

func TestOggSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.ogg")

	w, err := oggwriter.New(path, 48000, 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	src := &OggSource{Path: path}
	track, err := src.RequestAudio(context.Background())
	require.NoError(t, err)
	track.Start(context.Background())
	require.NoError(t, track.Close())
}

func TestOggSourceErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := (&OggSource{Path: filepath.Join(dir, "missing.ogg")}).RequestAudio(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPermissionDenied)

	junk := filepath.Join(dir, "junk.ogg")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not ogg"), 0o600))
	src := &OggSource{Path: junk}
	_, err = src.RequestAudio(context.Background())
	require.Error(t, err)

	// a failed probe gives the device back
	_, err = src.RequestAudio(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPermissionDenied)
}
