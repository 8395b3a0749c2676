package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func params(pt webrtc.PayloadType, mime, fmtp string) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000, SDPFmtpLine: fmtp},
		PayloadType:        pt,
	}
}

var available = []webrtc.RTPCodecParameters{
	params(96, webrtc.MimeTypeVP8, ""),
	params(98, webrtc.MimeTypeVP9, "profile-id=0"),
	params(102, webrtc.MimeTypeH264, "profile-level-id=42001f"),
	params(100, webrtc.MimeTypeVP9, "profile-id=1"),
}

type fakePreferrer struct {
	got []webrtc.RTPCodecParameters
	err error
}

func (f *fakePreferrer) SetCodecPreferences(codecs []webrtc.RTPCodecParameters) error {
	f.got = codecs
	return f.err
}

func TestComputeVideoCodecPreferences(t *testing.T) {
	p := Policy{MimeType: DefaultVideoMimeType}

	got := p.ComputeVideoCodecPreferences(available)
	require.Len(t, got, 2)
	require.Equal(t, webrtc.PayloadType(98), got[0].PayloadType)
	require.Equal(t, webrtc.PayloadType(100), got[1].PayloadType)

	lower := Policy{MimeType: strings.ToLower(webrtc.MimeTypeH264)}
	got = lower.ComputeVideoCodecPreferences(available)
	require.Len(t, got, 1)
	require.Equal(t, webrtc.PayloadType(102), got[0].PayloadType)
}

func TestComputeVideoCodecPreferencesEmpty(t *testing.T) {
	p := Policy{MimeType: DefaultVideoMimeType}
	require.Empty(t, p.ComputeVideoCodecPreferences(nil))
	require.Empty(t, p.ComputeVideoCodecPreferences([]webrtc.RTPCodecParameters{}))
	require.Empty(t, Policy{MimeType: webrtc.MimeTypeAV1}.ComputeVideoCodecPreferences(available))
}

func TestApply(t *testing.T) {
	p := Policy{MimeType: DefaultVideoMimeType}

	t.Run("sets filtered preferences", func(t *testing.T) {
		f := &fakePreferrer{}
		ok, err := p.Apply(f, available)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, f.got, 2)
	})

	t.Run("skips transceivers without the extension point", func(t *testing.T) {
		ok, err := p.Apply(struct{}{}, available)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("skips an empty match list", func(t *testing.T) {
		f := &fakePreferrer{}
		ok, err := p.Apply(f, nil)
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, f.got)
	})

	t.Run("reports engine errors", func(t *testing.T) {
		f := &fakePreferrer{err: errors.New("rejected")}
		ok, err := p.Apply(f, available)
		require.Error(t, err)
		require.False(t, ok)
	})
}

const answerSDP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 100 98 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:98 VP9/90000\r\n" +
	"a=rtpmap:100 VP9/90000\r\n"

func TestNegotiatedCodecs(t *testing.T) {
	sd := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}

	video, err := NegotiatedCodecs(sd, webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)
	require.Equal(t, []string{"video/VP9", "video/VP9", "video/VP8"}, video)
	require.True(t, Contains(video, DefaultVideoMimeType))
	require.False(t, Contains(video, webrtc.MimeTypeH264))

	audio, err := NegotiatedCodecs(sd, webrtc.RTPCodecTypeAudio)
	require.NoError(t, err)
	require.Equal(t, []string{"audio/opus"}, audio)

	_, err = NegotiatedCodecs(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "garbage"}, webrtc.RTPCodecTypeVideo)
	require.Error(t, err)
}
