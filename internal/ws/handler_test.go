package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevenshopping/gateway/internal/conversation"
	"github.com/elevenshopping/gateway/internal/elevenlabs"
)

type fakeCredentials struct {
	cred elevenlabs.Credential
	err  error
}

func (f *fakeCredentials) SignedURL(ctx context.Context) (elevenlabs.Credential, error) {
	return f.cred, f.err
}

type fakeUpstream struct {
	mu      sync.Mutex
	prompts []string
	closed  bool
}

func (f *fakeUpstream) Status() conversation.Status { return conversation.StatusConnected }

func (f *fakeUpstream) SendUserMessage(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, text)
	return nil
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeConnector struct {
	dials    atomic.Int64
	mu       sync.Mutex
	events   conversation.Events
	upstream *fakeUpstream
}

func (f *fakeConnector) Connect(ctx context.Context, signedURL string, events conversation.Events) (Conversation, error) {
	f.dials.Add(1)
	f.mu.Lock()
	f.events = events
	f.upstream = &fakeUpstream{}
	up := f.upstream
	f.mu.Unlock()
	if events.OnConnect != nil {
		events.OnConnect()
	}
	return up, nil
}

func (f *fakeConnector) fire(dispatch func(conversation.Events)) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	dispatch(events)
}

func dialSession(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteJSON(map[string]string{"client_name": "test", "mode": "voice"}))
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readEventOfType skips frames until one of the wanted type arrives.
func readEventOfType(t *testing.T, conn *websocket.Conn, eventType string) Event {
	t.Helper()
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev.Type == eventType {
			return ev
		}
	}
	t.Fatalf("no %q event received", eventType)
	return Event{}
}

func TestDemoModeNeverDialsVendor(t *testing.T) {
	connector := &fakeConnector{}
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{cred: elevenlabs.Credential{
			SignedURL: "wss://demo-signed-url-placeholder.elevenlabs.io/conversation",
			IsDemo:    true,
		}},
		Connector: connector,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})

	assert.Equal(t, "busy", readEvent(t, conn).Type)
	demo := readEvent(t, conn)
	assert.Equal(t, "demo_mode", demo.Type)
	assert.True(t, demo.IsDemo)
	assert.Contains(t, demo.Details, "Demo mode")
	assert.Equal(t, "ready", readEvent(t, conn).Type)

	assert.Equal(t, int64(0), connector.dials.Load())
}

func TestMissingAPIKeyReportsConfigError(t *testing.T) {
	connector := &fakeConnector{}
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{err: fmt.Errorf("credentials: %w", elevenlabs.ErrNotConfigured)},
		Connector:   connector,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})

	assert.Equal(t, "busy", readEvent(t, conn).Type)
	errEv := readEvent(t, conn)
	assert.Equal(t, "error", errEv.Type)
	assert.Contains(t, errEv.Error, "ELEVENLABS_API_KEY")
	assert.Contains(t, errEv.Details, "environment variable")
	assert.Equal(t, "ready", readEvent(t, conn).Type)

	assert.Equal(t, int64(0), connector.dials.Load())
}

func TestVendorErrorBodyReachesClient(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{err: &elevenlabs.APIError{
			Status: http.StatusUnauthorized,
			Body:   `{"detail":"invalid api key"}`,
		}},
		Connector: &fakeConnector{},
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})

	errEv := readEventOfType(t, conn, "error")
	assert.Contains(t, errEv.Details, "invalid api key")
}

func TestStartConnectsAndRoutesVendorEvents(t *testing.T) {
	connector := &fakeConnector{}
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{cred: elevenlabs.Credential{SignedURL: "wss://upstream.example/conversation"}},
		Connector:   connector,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})

	state := readEventOfType(t, conn, "state")
	assert.Equal(t, conversation.StatusConnected, state.Status)
	assert.Equal(t, "listening", string(state.View))
	readEventOfType(t, conn, "ready")
	assert.Equal(t, int64(1), connector.dials.Load())

	payload := `{"mcp_tool_call":{"tool_name":"search","result":[` +
		`{"type":"resource","resource":{"uri":"ui://shop/results","mimeType":"text/html","text":"<ol/>"}}]}}`
	connector.fire(func(ev conversation.Events) { ev.OnDebug([]byte(payload)) })

	res := readEventOfType(t, conn, "resources")
	assert.Equal(t, "results", string(res.View))
	require.Len(t, res.Resources, 1)
	assert.Equal(t, "ui://shop/results", res.Resources[0].URI)
}

func TestPromptForwardsToConversation(t *testing.T) {
	connector := &fakeConnector{}
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{cred: elevenlabs.Credential{SignedURL: "wss://upstream.example/conversation"}},
		Connector:   connector,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})
	readEventOfType(t, conn, "ready")

	sendCommand(t, conn, Command{Type: "prompt", Prompt: "show me headphones"})
	sendCommand(t, conn, Command{Type: "get_cart"})
	readEventOfType(t, conn, "cart")

	connector.mu.Lock()
	prompts := append([]string(nil), connector.upstream.prompts...)
	connector.mu.Unlock()
	assert.Equal(t, []string{"show me headphones"}, prompts)
}

func TestUIActionAddToCartUpdatesCart(t *testing.T) {
	connector := &fakeConnector{}
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{cred: elevenlabs.Credential{SignedURL: "wss://upstream.example/conversation"}},
		Connector:   connector,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "start"})
	readEventOfType(t, conn, "ready")

	action := json.RawMessage(`{"type":"tool","payload":{"toolName":"add_to_cart",` +
		`"params":{"productId":"1","productName":"Wireless Headphones","price":199.99}}}`)
	sendCommand(t, conn, Command{Type: "ui_action", Action: action})

	cartEv := readEventOfType(t, conn, "cart")
	require.Len(t, cartEv.Cart, 1)
	assert.Equal(t, "1", cartEv.Cart[0].ID)
	assert.Equal(t, 1, cartEv.Cart[0].Quantity)
	assert.InDelta(t, 199.99, cartEv.Total, 0.001)
	require.NotNil(t, cartEv.Resource)
	assert.Contains(t, cartEv.Resource.Text, "Wireless Headphones")
}

func TestSelectProductReturnsWidget(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Credentials: &fakeCredentials{cred: elevenlabs.Credential{IsDemo: true}},
		Connector:   &fakeConnector{},
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialSession(t, srv)
	sendCommand(t, conn, Command{Type: "select_product", ProductID: "2"})

	ev := readEventOfType(t, conn, "resource")
	require.NotNil(t, ev.Resource)
	assert.Equal(t, "ui://commerce/product-2", ev.Resource.URI)
	assert.Contains(t, ev.Resource.Text, "Smart Watch")

	sendCommand(t, conn, Command{Type: "select_product", ProductID: "nope"})
	errEv := readEventOfType(t, conn, "error")
	assert.Equal(t, "unknown product", errEv.Error)
}

func TestAtCapacityReturns503(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Credentials:   &fakeCredentials{cred: elevenlabs.Credential{IsDemo: true}},
		Connector:     &fakeConnector{},
		MaxConcurrent: 1,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	dialSession(t, srv) // occupies the only slot

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
