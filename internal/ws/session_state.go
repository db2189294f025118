package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elevenshopping/gateway/internal/cart"
	"github.com/elevenshopping/gateway/internal/catalog"
	"github.com/elevenshopping/gateway/internal/conversation"
	"github.com/elevenshopping/gateway/internal/mcpui"
	"github.com/elevenshopping/gateway/internal/metrics"
	"github.com/elevenshopping/gateway/internal/session"
	"github.com/elevenshopping/gateway/internal/trace"
)

// sessionState drives one browser session: coordinator, optional upstream
// conversation, and the outbound event stream.
type sessionState struct {
	id     string
	cfg    HandlerConfig
	send   func(Event)
	coord  *session.Coordinator
	tracer *trace.Tracer

	mu       sync.Mutex
	conv     Conversation
	starting bool
}

func newSessionState(id string, cfg HandlerConfig, conn *websocket.Conn, tracer *trace.Tracer) *sessionState {
	st := &sessionState{
		id:     id,
		cfg:    cfg,
		send:   newEventSender(conn),
		tracer: tracer,
	}
	st.coord = session.New(nil, &eventEffects{send: st.send})
	return st
}

// dispatch routes one client command. Commands run sequentially on the
// session's read goroutine.
func (st *sessionState) dispatch(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case "start":
		st.handleStart(ctx)
	case "stop":
		st.handleStop()
	case "ui_action":
		st.handleUIAction(ctx, cmd.Action)
	case "prompt":
		st.coord.HandleAction(ctx, mcpui.Action{
			Type:    mcpui.ActionPrompt,
			Payload: mcpui.ActionPayload{Prompt: cmd.Prompt},
		})
	case "select_product":
		st.handleSelectProduct(cmd.ProductID)
	case "get_cart":
		st.sendCart()
	case "get_logs":
		st.send(Event{Type: "logs", Logs: st.coord.ToolCallLog(), UIResults: st.coord.UIResultLog()})
	default:
		slog.Debug("unknown command", "session_id", st.id, "type", cmd.Type)
	}
}

// handleStart fetches a credential and connects the upstream conversation.
// The busy flag always clears, on success and on every failure path.
func (st *sessionState) handleStart(ctx context.Context) {
	st.mu.Lock()
	if st.starting || st.conv != nil {
		st.mu.Unlock()
		return
	}
	st.starting = true
	st.mu.Unlock()

	st.send(Event{Type: "busy"})
	defer func() {
		st.mu.Lock()
		st.starting = false
		st.mu.Unlock()
		st.send(Event{Type: "ready"})
	}()

	credCtx, cancel := context.WithTimeout(ctx, credentialStartTimeout)
	defer cancel()

	start := time.Now()
	cred, err := st.cfg.Credentials.SignedURL(credCtx)
	metrics.CredentialDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CredentialFetches.WithLabelValues("signed-url", "error").Inc()
		slog.Error("credential fetch failed", "session_id", st.id, "error", err)
		credentialError(st.send, err)
		return
	}
	metrics.CredentialFetches.WithLabelValues("signed-url", "ok").Inc()

	if cred.IsDemo {
		slog.Info("demo mode session", "session_id", st.id)
		st.tracer.Record(trace.EventTransition, "demo_mode")
		st.send(Event{Type: "demo_mode", IsDemo: true, Details: demoNotice})
		return
	}

	conv, err := st.cfg.Connector.Connect(ctx, cred.SignedURL, conversation.Events{
		OnConnect:    st.onConnect,
		OnDisconnect: st.onDisconnect,
		OnMessage:    func(raw []byte) { st.onVendorEvent(session.LogMessage, raw) },
		OnDebug:      func(raw []byte) { st.onVendorEvent(session.LogDebug, raw) },
	})
	if err != nil {
		metrics.Errors.WithLabelValues("conversation", "connect").Inc()
		slog.Error("conversation connect failed", "session_id", st.id, "error", err)
		st.send(Event{Type: "error", Error: "Failed to start conversation", Details: err.Error()})
		return
	}

	st.mu.Lock()
	st.conv = conv
	st.mu.Unlock()
	st.coord.AttachConversation(conv)
}

// handleStop closes the upstream conversation. A failed close is surfaced
// but local state resets regardless.
func (st *sessionState) handleStop() {
	st.mu.Lock()
	conv := st.conv
	st.conv = nil
	st.mu.Unlock()

	if conv != nil {
		if err := conv.Close(); err != nil {
			slog.Error("conversation close", "session_id", st.id, "error", err)
			st.send(Event{Type: "error", Error: "Failed to stop conversation", Details: err.Error()})
		}
	}
	st.coord.OnDisconnect()
	st.sendState(conversation.StatusDisconnected)
}

func (st *sessionState) handleUIAction(ctx context.Context, raw []byte) {
	act, err := mcpui.ParseAction(raw)
	if err != nil {
		slog.Warn("bad ui action", "session_id", st.id, "error", err)
		metrics.Errors.WithLabelValues("ui_action", "parse").Inc()
		return
	}
	st.tracer.Record(trace.EventUIAction, string(raw))
	st.coord.HandleAction(ctx, act)
	st.sendCart()
}

func (st *sessionState) handleSelectProduct(id string) {
	product, ok := catalog.Find(id)
	if !ok {
		st.send(Event{Type: "error", Error: "unknown product", Details: id})
		return
	}
	res, err := catalog.ProductCard(product)
	if err != nil {
		slog.Error("product card", "session_id", st.id, "error", err)
		return
	}
	st.send(Event{Type: "resource", Resource: &res})
}

func (st *sessionState) sendCart() {
	c := st.coord.Cart()
	items := c.Items()
	total := c.Total()
	ev := Event{Type: "cart", Cart: items, Total: total}
	if len(items) > 0 {
		if res, err := catalog.CartSummary(items, total); err == nil {
			ev.Resource = &res
		}
	}
	st.send(ev)
}

func (st *sessionState) sendState(status conversation.Status) {
	st.send(Event{Type: "state", View: st.coord.View(), Status: status})
}

func (st *sessionState) onConnect() {
	st.coord.OnConnect()
	st.tracer.Record(trace.EventTransition, "connected")
	st.sendState(conversation.StatusConnected)
}

func (st *sessionState) onDisconnect() {
	st.coord.OnDisconnect()
	st.tracer.Record(trace.EventTransition, "disconnected")
	st.sendState(conversation.StatusDisconnected)
}

func (st *sessionState) onVendorEvent(kind string, raw []byte) {
	st.tracer.Record(trace.EventToolCall, string(raw))
	resources := st.coord.OnVendorEvent(kind, raw)
	if len(resources) == 0 {
		return
	}
	st.send(Event{Type: "resources", View: st.coord.View(), Resources: resources})
}

// teardown closes any live conversation when the browser goes away.
func (st *sessionState) teardown() {
	st.mu.Lock()
	conv := st.conv
	st.conv = nil
	st.mu.Unlock()
	if conv != nil {
		conv.Close()
	}
	slog.Info("session ended", "session_id", st.id)
}

// eventEffects delivers coordinator side effects to the browser.
type eventEffects struct {
	send func(Event)
}

// OpenURL asks the client for a new, unrelated browsing context.
func (e *eventEffects) OpenURL(target string) {
	e.send(Event{Type: "effect", Effect: "open_url", URL: target})
}

// Navigate serializes the resource into an in-app detail target.
func (e *eventEffects) Navigate(res mcpui.Resource) {
	e.send(Event{Type: "effect", Effect: "navigate", URL: detailTarget(res), Resource: &res})
}

// Checkout confirms a local, illustrative checkout.
func (e *eventEffects) Checkout(items []cart.Item, total float64) {
	e.send(Event{Type: "effect", Effect: "checkout", Cart: items, Total: total})
}

// detailTarget builds the detail-view route carrying the URL-encoded
// resource descriptor.
func detailTarget(res mcpui.Resource) string {
	data, err := json.Marshal(res)
	if err != nil {
		return "/product/detail"
	}
	return "/product/detail?resource=" + url.QueryEscape(string(data))
}
