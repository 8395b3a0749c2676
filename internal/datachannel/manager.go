// Package datachannel manages the session's unreliable side channel.
package datachannel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/util"
)

// Label is the label of the side channel.
const Label = "dc"

// pendingLimit bounds messages queued before the channel opens.
const pendingLimit = 64

var (
	// ErrAlreadyCreated is returned when Create is called a second time.
	ErrAlreadyCreated = errors.New("data channel already created")
	// ErrNotCreated is returned when sending before Create.
	ErrNotCreated = errors.New("data channel not created")
)

// Config mirrors the channel's reliability settings.
type Config struct {
	Ordered        bool
	MaxRetransmits uint16
}

// BestEffort is the configuration sessions use: unordered, never retransmitted.
func BestEffort() Config {
	return Config{Ordered: false, MaxRetransmits: 0}
}

func (c Config) dataChannelInit() *webrtc.DataChannelInit {
	ordered := c.Ordered
	maxRetransmits := c.MaxRetransmits
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}

// Channel is the subset of *webrtc.DataChannel the manager drives.
type Channel interface {
	Label() string
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(msg webrtc.DataChannelMessage))
	Send(data []byte) error
	SendText(s string) error
	Close() error
}

// Creator opens a data channel on the transport engine.
type Creator interface {
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (Channel, error)
}

// Hooks are the external consumers of the channel.
type Hooks struct {
	OnOpen    func()
	OnMessage func(data []byte, isString bool)
}

type outgoing struct {
	data     []byte
	isString bool
}

// Manager owns one side channel. Messages sent before the channel opens are
// queued and flushed on open.
type Manager struct {
	cfg   Config
	hooks Hooks

	mu      sync.Mutex
	ch      Channel
	created bool
	open    bool
	closed  bool
	pending deque.Deque[outgoing]
}

// NewManager returns a manager that will create its channel with cfg.
func NewManager(cfg Config, hooks Hooks) *Manager {
	return &Manager{cfg: cfg, hooks: hooks}
}

// Create opens the channel. It succeeds at most once per manager.
func (m *Manager) Create(c Creator) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.created {
		return nil, ErrAlreadyCreated
	}
	ch, err := c.CreateDataChannel(Label, m.cfg.dataChannelInit())
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	m.created = true
	m.ch = ch

	ch.OnOpen(m.handleOpen)
	ch.OnClose(func() {
		m.mu.Lock()
		m.open = false
		m.mu.Unlock()
		util.LogDebug("data channel %q closed", ch.Label())
	})
	ch.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddDataMessageRecv()
		if m.hooks.OnMessage != nil {
			m.hooks.OnMessage(msg.Data, msg.IsString)
		}
	})
	return ch, nil
}

// handleOpen flushes the queue before marking the channel open, so a Send
// racing the flush lands behind the older messages.
func (m *Manager) handleOpen() {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()

	flushed := 0
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if m.pending.Len() == 0 {
			m.open = true
			m.mu.Unlock()
			break
		}
		out := m.pending.PopFront()
		m.mu.Unlock()

		if err := write(ch, out); err != nil {
			util.LogWarning("data channel send: %v", err)
		}
		flushed++
	}
	util.LogDebug("data channel %q open, flushed %d queued message(s)", ch.Label(), flushed)

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen()
	}
}

// Created reports whether Create has succeeded.
func (m *Manager) Created() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Send writes binary data, queueing it while the channel is not yet open.
func (m *Manager) Send(data []byte) error {
	return m.enqueue(outgoing{data: data})
}

// SendText writes a text message, queueing it while the channel is not yet open.
func (m *Manager) SendText(s string) error {
	return m.enqueue(outgoing{data: []byte(s), isString: true})
}

func (m *Manager) enqueue(out outgoing) error {
	m.mu.Lock()
	if !m.created {
		m.mu.Unlock()
		return ErrNotCreated
	}
	if !m.open {
		// Best-effort channel: on overflow the oldest message goes.
		if m.pending.Len() >= pendingLimit {
			m.pending.PopFront()
		}
		m.pending.PushBack(out)
		m.mu.Unlock()
		return nil
	}
	ch := m.ch
	m.mu.Unlock()
	return write(ch, out)
}

func write(ch Channel, out outgoing) error {
	if out.isString {
		return ch.SendText(string(out.data))
	}
	return ch.Send(out.data)
}

// Close closes the channel if it was created.
func (m *Manager) Close() error {
	m.mu.Lock()
	ch := m.ch
	m.open = false
	m.closed = true
	m.pending.Clear()
	m.mu.Unlock()

	if ch == nil {
		return nil
	}
	return ch.Close()
}
