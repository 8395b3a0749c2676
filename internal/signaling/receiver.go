package signaling

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/1ureka/callr/internal/util"
)

// receiver reads frames off the WebSocket and dispatches them (private).
type receiver struct {
	conn *websocket.Conn
}

// run blocks until the connection fails and returns the read error.
// Messages are dispatched in the order they were received.
func (r *receiver) run(h Handlers) error {
	for {
		typ, data, err := r.conn.ReadMessage()
		if err != nil {
			return err
		}
		util.Stats.AddSignalRecv()

		if typ != websocket.TextMessage {
			r.fail(h, &ParseError{Raw: data, Err: errors.New("binary frame")})
			continue
		}

		msg, err := Parse(data)
		if err != nil {
			r.fail(h, err)
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (r *receiver) fail(h Handlers, err error) {
	if h.OnError != nil {
		h.OnError(err)
		return
	}
	util.LogError("%v", err)
}
