// Package conversation maintains the live upstream session to the voice-AI
// vendor over its signed WebSocket URL.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Status is the connection lifecycle of a session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// ErrNotConnected is returned when an outbound message is attempted without
// a live connection.
var ErrNotConnected = errors.New("conversation not connected")

// Events receives session callbacks. Callbacks run on the session's reader
// goroutine; handlers must not block indefinitely.
type Events struct {
	OnConnect    func()
	OnDisconnect func()
	OnMessage    func(raw []byte) // conversational frames (transcripts, agent responses)
	OnDebug      func(raw []byte) // everything else, including tool-call results
}

// conversational frame types routed to OnMessage; all other frames are
// surfaced through OnDebug.
var messageTypes = map[string]bool{
	"agent_response":  true,
	"user_transcript": true,
}

// Session is one live conversation. Zero value is not usable; use New.
type Session struct {
	id     string
	events Events

	mu     sync.Mutex
	status Status
	conn   *websocket.Conn
}

// New creates a disconnected session.
func New(events Events) *Session {
	return &Session{
		id:     uuid.NewString(),
		events: events,
		status: StatusDisconnected,
	}
}

// ID is the session's identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect dials the signed URL and starts the read loop. It is an error to
// connect a session that is not disconnected.
func (s *Session) Connect(ctx context.Context, signedURL string) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("conversation already %s", s.status)
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.mu.Unlock()
		return fmt.Errorf("dial conversation: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.status = StatusConnected
	s.mu.Unlock()

	slog.Info("conversation connected", "session_id", s.id)
	if s.events.OnConnect != nil {
		s.events.OnConnect()
	}
	go s.readLoop(conn)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("conversation closed", "session_id", s.id, "error", err)
			break
		}
		s.dispatch(data)
	}

	s.mu.Lock()
	s.conn = nil
	s.status = StatusDisconnected
	s.mu.Unlock()

	if s.events.OnDisconnect != nil {
		s.events.OnDisconnect()
	}
}

func (s *Session) dispatch(data []byte) {
	typ := gjson.GetBytes(data, "type").String()
	if messageTypes[typ] {
		if s.events.OnMessage != nil {
			s.events.OnMessage(data)
		}
		return
	}
	if s.events.OnDebug != nil {
		s.events.OnDebug(data)
	}
}

// SendUserMessage writes a user text message into the live conversation.
func (s *Session) SendUserMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConnected || s.conn == nil {
		return ErrNotConnected
	}

	frame, err := json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "user_message", Text: text})
	if err != nil {
		return fmt.Errorf("marshal user message: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	}
	if err = s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write user message: %w", err)
	}
	return nil
}

// Close tears the connection down. Local state resets to disconnected even
// when the close handshake fails; OnDisconnect fires once, from the read
// loop.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	return nil
}
