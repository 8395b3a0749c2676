package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/callr/internal/util"
)

// sender serializes outgoing signaling messages to the WebSocket (private).
type sender struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

// send writes a signaling message to the WebSocket, guarded by a mutex.
func (s *sender) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s message: %w", msg.Type, err)
	}

	util.Stats.AddSignalSent()
	return nil
}

// sendClose writes a normal-closure control frame.
func (s *sender) sendClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
