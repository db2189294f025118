// Package ws serves the browser-facing session endpoint: one WebSocket per
// visitor carrying commands in and view/resource/effect events out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/elevenshopping/gateway/internal/cart"
	"github.com/elevenshopping/gateway/internal/conversation"
	"github.com/elevenshopping/gateway/internal/elevenlabs"
	"github.com/elevenshopping/gateway/internal/mcpui"
	"github.com/elevenshopping/gateway/internal/metrics"
	"github.com/elevenshopping/gateway/internal/session"
	"github.com/elevenshopping/gateway/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CredentialSource issues conversation credentials.
type CredentialSource interface {
	SignedURL(ctx context.Context) (elevenlabs.Credential, error)
}

// Conversation is the live upstream session surface a browser session
// drives.
type Conversation interface {
	session.Conversation
	Close() error
}

// Connector opens the upstream conversation for a signed URL. Swappable in
// tests.
type Connector interface {
	Connect(ctx context.Context, signedURL string, events conversation.Events) (Conversation, error)
}

type vendorConnector struct{}

func (vendorConnector) Connect(ctx context.Context, signedURL string, events conversation.Events) (Conversation, error) {
	sess := conversation.New(events)
	if err := sess.Connect(ctx, signedURL); err != nil {
		return nil, err
	}
	return sess, nil
}

// HandlerConfig holds the shared collaborators for all browser sessions.
type HandlerConfig struct {
	Credentials   CredentialSource
	Connector     Connector // nil means dial the vendor for real
	MaxConcurrent int
	TraceStore    *trace.Store
}

// Handler manages WebSocket sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a session handler with a concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	if cfg.Connector == nil {
		cfg.Connector = vendorConnector{}
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// sessionMetadata is the first text frame sent by the client.
type sessionMetadata struct {
	ClientName string `json:"client_name"`
	Mode       string `json:"mode"`
}

// Command is one client frame after the metadata frame.
type Command struct {
	Type      string          `json:"type"` // start, stop, ui_action, prompt, select_product, get_cart, get_logs
	Action    json.RawMessage `json:"action,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	ProductID string          `json:"product_id,omitempty"`
}

// Event is one server frame.
type Event struct {
	Type      string              `json:"type"`
	View      session.ViewState   `json:"view,omitempty"`
	Status    conversation.Status `json:"status,omitempty"`
	Effect    string              `json:"effect,omitempty"`
	URL       string              `json:"url,omitempty"`
	Resource  *mcpui.Resource     `json:"resource,omitempty"`
	Resources []mcpui.Resource    `json:"resources,omitempty"`
	Cart      []cart.Item         `json:"cart,omitempty"`
	Total     float64             `json:"total,omitempty"`
	Logs      []session.LogEntry  `json:"logs,omitempty"`
	UIResults []mcpui.Resource    `json:"ui_results,omitempty"`
	IsDemo    bool                `json:"is_demo,omitempty"`
	Error     string              `json:"error,omitempty"`
	Details   string              `json:"details,omitempty"`
}

// ServeHTTP upgrades the connection and runs the session.
// Returns 503 at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metaRaw, meta, err := readMetadata(conn)
	if err != nil {
		slog.Error("read session metadata", "error", err)
		return
	}

	sessionID := uuid.NewString()
	slog.Info("session started", "session_id", sessionID, "client", meta.ClientName, "mode", meta.Mode)

	tracer := trace.NewTracer(h.cfg.TraceStore, sessionID, string(metaRaw))
	defer tracer.Close()

	st := newSessionState(sessionID, h.cfg, conn, tracer)
	defer st.teardown()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("session closed", "session_id", sessionID, "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err = json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("bad command frame", "session_id", sessionID, "error", err)
			continue
		}
		st.dispatch(ctx, cmd)
	}
}

func readMetadata(conn *websocket.Conn) ([]byte, *sessionMetadata, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	var meta sessionMetadata
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, nil, err
	}
	return data, &meta, nil
}

func newEventSender(conn *websocket.Conn) func(Event) {
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("write event", "error", err)
		}
	}
}

func credentialError(send func(Event), err error) {
	var apiErr *elevenlabs.APIError
	switch {
	case errors.Is(err, elevenlabs.ErrNotConfigured):
		send(Event{
			Type:    "error",
			Error:   "ELEVENLABS_API_KEY is not configured",
			Details: "Please set the ELEVENLABS_API_KEY environment variable with your ElevenLabs API key.",
		})
	case errors.As(err, &apiErr):
		send(Event{
			Type:    "error",
			Error:   "ElevenLabs API error",
			Details: apiErr.Body,
		})
	default:
		send(Event{Type: "error", Error: "Failed to start conversation", Details: err.Error()})
	}
}

// demoNotice is the user-visible message in demo mode.
const demoNotice = "Demo mode: Using placeholder agent ID. Set up your AGENT_ID environment variable for real functionality."

const credentialStartTimeout = 15 * time.Second
