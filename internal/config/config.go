// Package config holds the client configuration and its YAML loader.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1ureka/callr/internal/codec"
	"github.com/1ureka/callr/internal/transport"
)

// AudioSource selects where the local audio track comes from.
type AudioSource string

const (
	AudioSilence AudioSource = "silence"
	AudioOgg     AudioSource = "ogg"
)

// Permission is the answer given to microphone access requests.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// Config stores everything the client needs to run a session.
type Config struct {
	Signaling   SignalingConfig   `yaml:"signaling"`
	ICEServers  []string          `yaml:"ice_servers"`
	Codec       CodecConfig       `yaml:"codec"`
	Audio       AudioConfig       `yaml:"audio"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	LogLevel    string            `yaml:"log_level"`
}

type SignalingConfig struct {
	URL          string            `yaml:"url"`
	WriteTimeout time.Duration     `yaml:"write_timeout"`
	Headers      map[string]string `yaml:"headers"`
}

type CodecConfig struct {
	VideoMimeType string `yaml:"video_mime_type"`
}

type AudioConfig struct {
	Source     AudioSource `yaml:"source"`
	File       string      `yaml:"file"`
	Permission Permission  `yaml:"permission"`
}

type NegotiationConfig struct {
	// Debounce coalesces negotiation-needed bursts; 0 disables it.
	Debounce time.Duration `yaml:"debounce"`
	// AnswerTimeout bounds the wait for an answer; 0 waits forever.
	AnswerTimeout time.Duration `yaml:"answer_timeout"`
}

// Default returns a fresh configuration with every default filled in.
func Default() *Config {
	return &Config{
		Signaling: SignalingConfig{
			WriteTimeout: 5 * time.Second,
		},
		ICEServers: append([]string(nil), transport.DefaultSTUNServers...),
		Codec: CodecConfig{
			VideoMimeType: codec.DefaultVideoMimeType,
		},
		Audio: AudioConfig{
			Source:     AudioSilence,
			Permission: PermissionPrompt,
		},
		Negotiation: NegotiationConfig{
			Debounce:      50 * time.Millisecond,
			AnswerTimeout: 15 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	conf := Default()
	if path == "" {
		return conf, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return conf, nil
}

// Parse decodes a YAML document over the defaults.
func Parse(data string) (*Config, error) {
	conf := Default()
	if strings.TrimSpace(data) == "" {
		return conf, nil
	}
	dec := yaml.NewDecoder(strings.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	return conf, nil
}

// Validate checks values the loader cannot. The signaling URL may still be
// empty; the CLI prompts for it.
func (c *Config) Validate() error {
	if c.Signaling.URL != "" {
		if _, err := NormalizeURL(c.Signaling.URL); err != nil {
			return err
		}
	}
	if c.Signaling.WriteTimeout < 0 {
		return errors.New("signaling.write_timeout must not be negative")
	}
	if len(c.ICEServers) == 0 {
		return errors.New("ice_servers must list at least one server")
	}
	for _, s := range c.ICEServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") && !strings.HasPrefix(s, "turns:") {
			return fmt.Errorf("ice server %q: expected a stun:, turn: or turns: URL", s)
		}
	}
	if !strings.HasPrefix(strings.ToLower(c.Codec.VideoMimeType), "video/") {
		return fmt.Errorf("codec.video_mime_type %q is not a video mime type", c.Codec.VideoMimeType)
	}

	switch c.Audio.Source {
	case AudioSilence:
	case AudioOgg:
		if c.Audio.File == "" {
			return errors.New("audio.file is required when audio.source is ogg")
		}
	default:
		return fmt.Errorf("audio.source %q: expected silence or ogg", c.Audio.Source)
	}
	switch c.Audio.Permission {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
	default:
		return fmt.Errorf("audio.permission %q: expected granted, denied or prompt", c.Audio.Permission)
	}

	if c.Negotiation.Debounce < 0 || c.Negotiation.AnswerTimeout < 0 {
		return errors.New("negotiation durations must not be negative")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: expected trace, debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// NormalizeURL validates a signaling endpoint. A bare host becomes wss://host,
// and http(s) schemes are mapped to their WebSocket counterparts.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid signaling URL: %q", raw)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid signaling URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}
