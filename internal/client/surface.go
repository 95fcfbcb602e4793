package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/five82/kdebridge/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	messagesBuffer = 64
)

// Surface is an attached UI connection. Messages published by the bridge,
// starting with its greeting, arrive on Messages until the connection ends.
type Surface struct {
	conn     *websocket.Conn
	messages chan protocol.Message

	writeMu sync.Mutex

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
	err       error
}

// Attach opens a surface connection of the given kind ("popup", "options"
// or "cli").
func (c *Client) Attach(ctx context.Context, kind string) (*Surface, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"surface": {kind}}.Encode()

	header := http.Header{"User-Agent": {c.userAgent}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("attach %s surface: %w (status %d)", kind, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("attach %s surface: %w", kind, err)
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	s := &Surface{
		conn:     conn,
		messages: make(chan protocol.Message, messagesBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

// Messages returns the inbound message stream. It is closed when the
// connection ends; Err then reports why.
func (s *Surface) Messages() <-chan protocol.Message {
	return s.messages
}

// Send writes msg to the bridge, assigning it an id when it has none.
func (s *Surface) Send(msg protocol.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Err returns the error that ended the connection, or nil while it is open
// or after a clean close.
func (s *Surface) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close sends a close frame and tears the connection down.
func (s *Surface) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Surface) readPump() {
	defer func() {
		close(s.messages)
		close(s.done)
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.err = err
			}
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		select {
		case s.messages <- msg:
		case <-s.closing:
			return
		}
	}
}
