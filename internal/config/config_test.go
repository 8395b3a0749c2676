package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	conf := Default()
	require.NoError(t, conf.Validate())
	require.Equal(t, "video/VP9", conf.Codec.VideoMimeType)
	require.Equal(t, 50*time.Millisecond, conf.Negotiation.Debounce)
	require.Equal(t, 15*time.Second, conf.Negotiation.AnswerTimeout)
	require.Equal(t, AudioSilence, conf.Audio.Source)
}

func TestDefaultDoesNotShareSlices(t *testing.T) {
	a := Default()
	a.ICEServers[0] = "stun:example.com:3478"
	require.NotEqual(t, a.ICEServers[0], Default().ICEServers[0])
}

func TestParseOverridesDefaults(t *testing.T) {
	conf, err := Parse(`
signaling:
  url: wss://example.com/ws
  headers:
    Authorization: Bearer abc
codec:
  video_mime_type: video/H264
negotiation:
  debounce: 0s
  answer_timeout: 2s
audio:
  source: ogg
  file: hello.ogg
  permission: granted
log_level: debug
`)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	require.Equal(t, "wss://example.com/ws", conf.Signaling.URL)
	require.Equal(t, "Bearer abc", conf.Signaling.Headers["Authorization"])
	require.Equal(t, "video/H264", conf.Codec.VideoMimeType)
	require.Zero(t, conf.Negotiation.Debounce)
	require.Equal(t, 2*time.Second, conf.Negotiation.AnswerTimeout)
	require.Equal(t, AudioOgg, conf.Audio.Source)
	require.Equal(t, PermissionGranted, conf.Audio.Permission)
	// untouched keys keep their defaults
	require.Equal(t, 5*time.Second, conf.Signaling.WriteTimeout)
	require.NotEmpty(t, conf.ICEServers)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse("signalling:\n  url: wss://example.com\n")
	require.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	conf, err := Parse("  \n")
	require.NoError(t, err)
	require.Equal(t, Default(), conf)
}

func TestLoad(t *testing.T) {
	conf, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), conf)

	path := filepath.Join(t.TempDir(), "callr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
	conf, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", conf.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad url", func(c *Config) { c.Signaling.URL = "ftp://example.com" }},
		{"negative write timeout", func(c *Config) { c.Signaling.WriteTimeout = -time.Second }},
		{"no ice servers", func(c *Config) { c.ICEServers = nil }},
		{"bad ice server", func(c *Config) { c.ICEServers = []string{"example.com"} }},
		{"audio codec", func(c *Config) { c.Codec.VideoMimeType = "audio/opus" }},
		{"ogg without file", func(c *Config) { c.Audio.Source = AudioOgg }},
		{"unknown source", func(c *Config) { c.Audio.Source = "mic" }},
		{"unknown permission", func(c *Config) { c.Audio.Permission = "maybe" }},
		{"negative debounce", func(c *Config) { c.Negotiation.Debounce = -1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := Default()
			tc.mutate(conf)
			require.Error(t, conf.Validate())
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		in, want string
		ok       bool
	}{
		{"wss://example.com/ws", "wss://example.com/ws", true},
		{"ws://localhost:8080/ws", "ws://localhost:8080/ws", true},
		{"https://example.com/ws", "wss://example.com/ws", true},
		{"http://localhost:8080", "ws://localhost:8080", true},
		{"example.com/ws", "wss://example.com/ws", true},
		{"  wss://example.com  ", "wss://example.com", true},
		{"", "", false},
		{"ftp://example.com", "", false},
	}

	for _, tc := range testCases {
		got, err := NormalizeURL(tc.in)
		if !tc.ok {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}
