package signaling

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/callr/internal/util"
)

// State is the lifecycle state of a signaling channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handlers are the inbound hooks of a channel. They are registered once, at
// dial time, and invoked from the channel's read goroutine.
type Handlers struct {
	// OnMessage receives every well-formed inbound message in arrival order.
	OnMessage func(Message)
	// OnError receives inbound frames that failed to parse.
	OnError func(error)
	// OnClose fires exactly once when the channel terminates. err is nil for
	// a normal closure and a *ConnectionError otherwise.
	OnClose func(err error)
}

// Channel is an open duplex signaling connection.
type Channel interface {
	Send(msg Message) error
	Close() error
}

// Dialer opens signaling channels.
type Dialer interface {
	Dial(ctx context.Context, url string, h Handlers) (Channel, error)
}

// WSDialer dials the coordinator over a WebSocket.
type WSDialer struct {
	Header       http.Header
	WriteTimeout time.Duration
}

// Dial connects to url and starts the read loop. The returned channel is
// already open; Dial itself blocks while the channel is connecting.
func (d *WSDialer) Dial(ctx context.Context, url string, h Handlers) (Channel, error) {
	ch := &WSChannel{url: url, handlers: h, writeTimeout: d.WriteTimeout}
	ch.state.Store(int32(StateConnecting))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, d.Header)
	if err != nil {
		ch.state.Store(int32(StateClosed))
		return nil, &ConnectionError{URL: url, Err: err}
	}
	util.LogDebug("signaling channel open: %s", url)

	ch.sender = &sender{conn: conn, timeout: d.WriteTimeout}
	ch.conn = conn
	ch.state.Store(int32(StateOpen))

	r := &receiver{conn: conn}
	go ch.watch(r)
	return ch, nil
}

// WSChannel is a Channel backed by a gorilla WebSocket connection.
type WSChannel struct {
	url          string
	conn         *websocket.Conn
	sender       *sender
	handlers     Handlers
	writeTimeout time.Duration

	state     atomic.Int32
	closing   atomic.Bool
	closeOnce sync.Once
}

// State returns the current lifecycle state.
func (c *WSChannel) State() State {
	return State(c.state.Load())
}

// Send serializes and writes one message. There is no delivery acknowledgment.
func (c *WSChannel) Send(msg Message) error {
	if c.State() != StateOpen {
		return ErrChannelClosed
	}
	return c.sender.send(msg)
}

// Close performs a normal closure. OnClose still fires, with a nil error.
func (c *WSChannel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.sender.sendClose()
	return c.conn.Close()
}

// watch runs the read loop and reports termination exactly once.
func (c *WSChannel) watch(r *receiver) {
	err := r.run(c.handlers)

	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		_ = c.conn.Close()

		var closeErr error
		if !c.closing.Load() && !isNormalClosure(err) {
			closeErr = &ConnectionError{URL: c.url, Err: err}
		}
		util.LogDebug("signaling channel closed: %v", err)

		if c.handlers.OnClose != nil {
			c.handlers.OnClose(closeErr)
		}
	})
}

func isNormalClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
