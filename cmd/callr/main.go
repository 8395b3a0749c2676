// Command callr is the terminal client entry point.
//
// Callr joins a one-to-one WebRTC call through a WebSocket signaling
// coordinator: it sends audio, receives video, and opens a best-effort data
// channel next to the media.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/1ureka/callr/internal/codec"
	"github.com/1ureka/callr/internal/config"
	"github.com/1ureka/callr/internal/datachannel"
	"github.com/1ureka/callr/internal/media"
	"github.com/1ureka/callr/internal/negotiation"
	"github.com/1ureka/callr/internal/signaling"
	"github.com/1ureka/callr/internal/transport"
	"github.com/1ureka/callr/internal/util"
	"github.com/1ureka/callr/internal/view"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "callr",
		Usage:   "join a WebRTC call through a WebSocket signaling coordinator",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CALLR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "url",
				Usage:   "signaling WebSocket URL (prompted when empty)",
				EnvVars: []string{"CALLR_URL"},
			},
			&cli.StringFlag{
				Name:  "audio-file",
				Usage: "Ogg/Opus file to send instead of silence",
			},
			&cli.StringFlag{
				Name:  "codec",
				Usage: "preferred video receive codec, e.g. video/VP9",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	util.SetLevel(conf.LogLevel)
	if c.Bool("debug") {
		util.EnableDebug()
	}

	// Cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	pterm.Info.Println(fmt.Sprintf("Callr — v%s", version))
	pterm.Println()

	wsURL := conf.Signaling.URL
	if wsURL == "" {
		wsURL = askURL()
	}

	coord, err := newCoordinator(conf)
	if err != nil {
		return err
	}
	util.StartStatsReporter(ctx, 5*time.Second)

	for {
		err := coord.Connect(ctx, wsURL)
		if ctx.Err() != nil {
			util.LogInfo("interrupted, bye")
			return nil
		}
		if err != nil {
			util.LogWarning("%s", describe(err))
		}
		if !askReconnect() {
			return nil
		}
		pterm.Println()
	}
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("url") {
		conf.Signaling.URL = c.String("url")
	}
	if c.IsSet("audio-file") {
		conf.Audio.Source = config.AudioOgg
		conf.Audio.File = c.String("audio-file")
	}
	if c.IsSet("codec") {
		conf.Codec.VideoMimeType = c.String("codec")
	}
	if err := normalizeConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// normalizeConfig validates conf and rewrites the signaling URL into its
// canonical ws:// or wss:// form.
func normalizeConfig(conf *config.Config) error {
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if conf.Signaling.URL == "" {
		return nil
	}
	wsURL, err := config.NormalizeURL(conf.Signaling.URL)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	conf.Signaling.URL = wsURL
	return nil
}

func newCoordinator(conf *config.Config) (*negotiation.Coordinator, error) {
	header := http.Header{}
	for k, v := range conf.Signaling.Headers {
		header.Set(k, v)
	}

	term := &view.Terminal{}
	return negotiation.New(negotiation.Options{
		Dialer:  &signaling.WSDialer{Header: header, WriteTimeout: conf.Signaling.WriteTimeout},
		Engines: transport.NewFactory(conf.ICEServers),
		Media:   &media.Gate{Decide: permission(conf.Audio.Permission, term), Source: audioSource(conf.Audio)},
		Codecs:  codec.Policy{MimeType: conf.Codec.VideoMimeType},
		View:    term,
		DataChannel: datachannel.Hooks{
			OnOpen: func() { util.LogInfo("data channel open") },
			OnMessage: func(data []byte, isString bool) {
				if isString {
					util.LogInfo("data channel: %s", string(data))
					return
				}
				util.LogDebug("data channel: %d byte(s)", len(data))
			},
		},
		OnDataChannel: func(m *datachannel.Manager) {
			if err := m.SendText("hello from callr " + version); err != nil {
				util.LogWarning("data channel greeting: %v", err)
			}
		},
		Debounce:      conf.Negotiation.Debounce,
		AnswerTimeout: conf.Negotiation.AnswerTimeout,
	})
}

func audioSource(conf config.AudioConfig) media.Source {
	if conf.Source == config.AudioOgg {
		return &media.OggSource{Path: conf.File}
	}
	return &media.SilenceSource{}
}

func permission(p config.Permission, term *view.Terminal) media.Decision {
	switch p {
	case config.PermissionGranted:
		return media.Granted()
	case config.PermissionDenied:
		return media.Denied()
	default:
		return func(context.Context) (ok bool, err error) {
			term.Hold(func() {
				ok, err = pterm.DefaultInteractiveConfirm.
					WithDefaultText("Allow callr to use the microphone?").
					WithDefaultValue(true).
					Show()
			})
			return ok, err
		}
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// describe turns a session error into a one-line hint for the user.
func describe(err error) string {
	var (
		connErr  *signaling.ConnectionError
		parseErr *signaling.ParseError
		negErr   *negotiation.NegotiationError
	)
	switch {
	case errors.Is(err, media.ErrPermissionDenied):
		return fmt.Sprintf("no microphone: %v", err)
	case errors.As(err, &parseErr):
		return fmt.Sprintf("coordinator sent an invalid message: %v", err)
	case errors.As(err, &negErr):
		return fmt.Sprintf("negotiation failed: %v", err)
	case errors.As(err, &connErr):
		return fmt.Sprintf("signaling connection lost: %v", err)
	default:
		return fmt.Sprintf("session ended: %v", err)
	}
}

// askURL prompts the user for a valid signaling URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Signaling URL (e.g. wss://example.com/ws)").
			Show()

		wsURL, err := config.NormalizeURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askReconnect is the manual connect trigger after a session has ended.
func askReconnect() bool {
	ok, err := pterm.DefaultInteractiveConfirm.
		WithDefaultText("Connect again?").
		Show()
	return err == nil && ok
}
