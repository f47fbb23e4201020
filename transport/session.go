// Package transport owns the client-facing surface: WebSocket
// sessions speaking the chat wire protocol, and the HTTP routes for
// the upgrade, the GIF search proxy, and debug endpoints.
package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	maxInboundBytes = 8192
)

// Session is one live client channel: Connecting -> Active -> Closed.
// It owns the transport read/write loops, forwards inbound requests to
// the hub, and is the hub's EventSink for outbound delivery. Teardown
// runs exactly once and always calls Leave, even when the join's
// history sends never completed.
type Session struct {
	id   string
	conn *websocket.Conn
	hub  *runtime.Hub
	log  *slog.Logger

	out  chan domain.ChatMessage
	done chan struct{}
	once sync.Once
}

func NewSession(conn *websocket.Conn, hub *runtime.Hub, log *slog.Logger, bufferSize int) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		hub:  hub,
		log:  log,
		out:  make(chan domain.ChatMessage, bufferSize),
		done: make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Deliver enqueues a message for the write pump. It never blocks: a
// closed session or a full buffer is a delivery fault the hub isolates
// to this session.
func (s *Session) Deliver(msg domain.ChatMessage) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: session %s closed", errors.ErrDelivery, s.id)
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
		return fmt.Errorf("%w: session %s buffer full", errors.ErrDelivery, s.id)
	}
}

// Close tears the session down; safe to call from any goroutine and
// from the hub's reaper.
func (s *Session) Close() error {
	s.teardown()
	return nil
}

// Run enters Active: joins the hub (history replay + welcome are
// enqueued before any later broadcast), then pumps until the
// connection drops in either direction.
func (s *Session) Run() {
	s.hub.Join(s)
	go s.writePump()
	s.readPump()
}

func (s *Session) teardown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		s.hub.Leave(s)
	})
}

// readPump forwards each inbound frame to the hub. A rejected send is
// answered to this session only, as a system notice.
func (s *Session) readPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxInboundBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("WebSocket read failed", "session", s.id, "error", err)
			}
			return
		}
		var req SendRequest
		if err = json.Unmarshal(raw, &req); err != nil {
			s.log.Warn("Dropping malformed frame", "session", s.id, "error", err)
			continue
		}
		msg := domain.ChatMessage{Sender: req.Sender, Text: req.Text, MediaURL: req.MediaURL}
		if err = s.hub.Send(msg); err != nil {
			s.log.Warn("Send rejected", "session", s.id, "error", err)
			_ = s.Deliver(domain.System(fmt.Sprintf("Message rejected: %v", err)))
		}
	}
}

// writePump drains the outbound buffer to the wire and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("Encoding outbound message failed", "session", s.id, "error", err)
				continue
			}
			if err = s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
