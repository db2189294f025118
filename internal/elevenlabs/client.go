// Package elevenlabs exchanges the server-held API key for short-lived
// conversation credentials (signed WebSocket URLs and WebRTC tokens).
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Demo-mode placeholders returned when no agent is configured. The signed
// URL is deliberately non-functional.
const (
	demoSignedURL         = "wss://demo-signed-url-placeholder.elevenlabs.io/conversation"
	demoConversationToken = "demo-token-placeholder"
)

// ErrNotConfigured is returned when the API key is absent.
var ErrNotConfigured = errors.New("ELEVENLABS_API_KEY is not configured")

// Config holds the server-held vendor settings. An empty AgentID switches
// the client into demo mode: credentials are synthesized locally and no
// vendor call is made.
type Config struct {
	APIKey  string
	AgentID string
	BaseURL string // defaults to the public API
}

// APIError carries a vendor non-2xx response through unchanged so callers
// can mirror its status and body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs api status %d: %s", e.Status, e.Body)
}

// Credential is one short-lived conversation credential.
type Credential struct {
	SignedURL         string
	ConversationToken string
	IsDemo            bool
}

// Client is the credential gateway's vendor client.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a client with the injected config. A nil http client
// gets a small pooled default.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if client == nil {
		client = NewPooledHTTPClient(10, credentialTimeout)
	}
	return &Client{cfg: cfg, client: client}
}

// Demo reports whether the client runs without a configured agent.
func (c *Client) Demo() bool { return c.cfg.AgentID == "" }

// SignedURL fetches a signed WebSocket URL for the configured agent.
// In demo mode it returns a placeholder without contacting the vendor.
func (c *Client) SignedURL(ctx context.Context) (Credential, error) {
	if c.cfg.APIKey == "" {
		return Credential{}, ErrNotConfigured
	}
	if c.Demo() {
		slog.Warn("AGENT_ID not set, returning demo signed url")
		return Credential{SignedURL: demoSignedURL, IsDemo: true}, nil
	}

	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get_signed_url?agent_id=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.AgentID))
	var out struct {
		SignedURL string `json:"signed_url"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return Credential{}, err
	}
	if out.SignedURL == "" {
		return Credential{}, errors.New("no signed url in vendor response")
	}
	return Credential{SignedURL: out.SignedURL}, nil
}

// WebRTCToken fetches a WebRTC conversation token for the configured agent.
// In demo mode it returns a placeholder without contacting the vendor.
func (c *Client) WebRTCToken(ctx context.Context) (Credential, error) {
	if c.cfg.APIKey == "" {
		return Credential{}, ErrNotConfigured
	}
	if c.Demo() {
		slog.Warn("AGENT_ID not set, returning demo conversation token")
		return Credential{ConversationToken: demoConversationToken, IsDemo: true}, nil
	}

	endpoint := fmt.Sprintf("%s/v1/convai/conversation/token?agent_id=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.AgentID))
	var out struct {
		Token string `json:"token"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return Credential{}, err
	}
	if out.Token == "" {
		return Credential{}, errors.New("no conversation token in vendor response")
	}
	return Credential{ConversationToken: out.Token}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read elevenlabs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode elevenlabs response: %w", err)
	}
	return nil
}
