package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/elevenshopping/gateway/internal/cart"
	"github.com/elevenshopping/gateway/internal/catalog"
	"github.com/elevenshopping/gateway/internal/conversation"
	"github.com/elevenshopping/gateway/internal/mcpui"
	"github.com/elevenshopping/gateway/internal/metrics"
	"github.com/elevenshopping/gateway/internal/ringlog"
)

// Conversation is the live vendor session surface the coordinator speaks
// into. Prompts sent while disconnected are dropped, never errors.
type Conversation interface {
	Status() conversation.Status
	SendUserMessage(ctx context.Context, text string) error
}

// Effects receives the side effects of action dispatch. Implementations
// deliver them to the browser (open a URL, navigate in-app, confirm a
// checkout).
type Effects interface {
	OpenURL(url string)
	Navigate(res mcpui.Resource)
	Checkout(items []cart.Item, total float64)
}

// defaultAddToCartPrompt is forwarded into the conversation when an
// add_to_cart action carries no prompt of its own.
const defaultAddToCartPrompt = "Add this item to my cart"

// Coordinator is the per-session state machine. It tracks the visible view,
// the current resource list, the cart, and the debug log ring buffers, and
// dispatches UI actions. Safe for concurrent use, though actions are
// expected to arrive sequentially per user interaction.
type Coordinator struct {
	mu        sync.Mutex
	view      ViewState
	resources []mcpui.Resource
	cart      *cart.Cart
	toolCalls *ringlog.Ring[LogEntry]
	uiResults *ringlog.Ring[mcpui.Resource]
	conv      Conversation
	effects   Effects
}

// New creates a coordinator in the initial view. conv may be nil until a
// conversation is attached.
func New(conv Conversation, effects Effects) *Coordinator {
	return &Coordinator{
		view:      ViewInitial,
		cart:      cart.New(),
		toolCalls: ringlog.New[LogEntry](toolCallLogCap),
		uiResults: ringlog.New[mcpui.Resource](uiResultLogCap),
		conv:      conv,
		effects:   effects,
	}
}

// AttachConversation swaps in the live conversation session.
func (c *Coordinator) AttachConversation(conv Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv = conv
}

// View returns the current view state.
func (c *Coordinator) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Resources returns the current renderable resource list.
func (c *Coordinator) Resources() []mcpui.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mcpui.Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Cart exposes the session cart.
func (c *Coordinator) Cart() *cart.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart
}

// ToolCallLog returns the recent debug/tool-call log, oldest first.
func (c *Coordinator) ToolCallLog() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toolCalls.Items()
}

// UIResultLog returns the recently extracted UI resources, oldest first.
func (c *Coordinator) UIResultLog() []mcpui.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uiResults.Items()
}

// OnConnect moves initial -> listening.
func (c *Coordinator) OnConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ViewInitial {
		c.view = ViewListening
	}
}

// OnDisconnect resets to the initial view from any state, clearing the
// rendered resource list.
func (c *Coordinator) OnDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = ViewInitial
	c.resources = nil
}

// OnVendorEvent records the payload in the debug log and, when it yields
// resources, replaces the current list wholesale and moves to the results
// view. Tool results carrying structured product JSON instead of ready-made
// resources get a search-results widget synthesized for them. Events
// without resources leave the view and the current list untouched. Returns
// the extracted resources (possibly empty).
func (c *Coordinator) OnVendorEvent(kind string, raw []byte) []mcpui.Resource {
	metrics.VendorEvents.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls.Push(LogEntry{Timestamp: time.Now().UTC(), Type: kind, Data: json.RawMessage(raw)})

	extracted := mcpui.ExtractResources(raw)
	if len(extracted) == 0 {
		extracted = synthesizeSearchResults(raw)
	}
	if len(extracted) == 0 {
		return nil
	}

	metrics.ResourcesExtracted.Add(float64(len(extracted)))
	for _, res := range extracted {
		c.uiResults.Push(res)
	}
	c.resources = extracted
	c.view = ViewResults
	return extracted
}

// HandleAction routes one UI action from the renderer. Unknown types and
// unknown tool names are logged and dropped; dispatch never errors.
func (c *Coordinator) HandleAction(ctx context.Context, act mcpui.Action) {
	c.logAction(act)

	switch act.Type {
	case mcpui.ActionTool:
		c.handleTool(ctx, act.Payload)

	case mcpui.ActionPrompt:
		c.sendPrompt(ctx, act.Payload.Prompt)
		metrics.UIActions.WithLabelValues(string(act.Type), "handled").Inc()

	case mcpui.ActionLink:
		c.handleLink(act.Payload)

	case mcpui.ActionIntent:
		c.handleIntent(ctx, act.Payload)

	case mcpui.ActionNavigate, mcpui.ActionDetail:
		if act.Payload.Resource != nil {
			c.effects.Navigate(*act.Payload.Resource)
			metrics.UIActions.WithLabelValues(string(act.Type), "handled").Inc()
			return
		}
		slog.Debug("navigate action without resource")
		metrics.UIActions.WithLabelValues(string(act.Type), "ignored").Inc()

	default:
		slog.Debug("unhandled ui action", "type", act.Type)
		metrics.UIActions.WithLabelValues(string(act.Type), "ignored").Inc()
	}
}

func (c *Coordinator) handleTool(ctx context.Context, p mcpui.ActionPayload) {
	switch p.ToolName {
	case mcpui.ToolRedirectToCheckout:
		var params mcpui.RedirectParams
		if err := p.DecodeParams(&params); err != nil || params.URL == "" {
			slog.Warn("redirect_to_checkout without url", "error", err)
			metrics.UIActions.WithLabelValues("tool", "ignored").Inc()
			return
		}
		c.effects.OpenURL(params.URL)
		metrics.UIActions.WithLabelValues("tool", "handled").Inc()

	case mcpui.ToolAddToCart:
		var params mcpui.CartParams
		if err := p.DecodeParams(&params); err != nil {
			slog.Warn("add_to_cart params", "error", err)
			metrics.UIActions.WithLabelValues("tool", "ignored").Inc()
			return
		}
		if params.ProductID != "" {
			c.mu.Lock()
			c.cart.Add(params.ProductID, params.ProductName, params.Price)
			c.mu.Unlock()
		}
		prompt := params.Prompt
		if prompt == "" {
			prompt = defaultAddToCartPrompt
		}
		c.sendPrompt(ctx, prompt)
		metrics.UIActions.WithLabelValues("tool", "handled").Inc()

	case mcpui.ToolCheckout:
		var params mcpui.CheckoutParams
		if err := p.DecodeParams(&params); err != nil {
			slog.Warn("checkout params", "error", err)
			metrics.UIActions.WithLabelValues("tool", "ignored").Inc()
			return
		}
		c.mu.Lock()
		items := c.cart.Items()
		total := params.Total
		if total == 0 {
			total = c.cart.Total()
		}
		c.cart.Clear()
		c.mu.Unlock()
		c.effects.Checkout(items, total)
		metrics.UIActions.WithLabelValues("tool", "handled").Inc()

	default:
		slog.Debug("unhandled tool action", "tool", p.ToolName)
		metrics.UIActions.WithLabelValues("tool", "ignored").Inc()
	}
}

func (c *Coordinator) handleLink(p mcpui.ActionPayload) {
	if p.URL == "" {
		metrics.UIActions.WithLabelValues("link", "ignored").Inc()
		return
	}
	if p.Resource != nil && isProductDetailURL(p.URL) {
		c.effects.Navigate(*p.Resource)
	} else {
		c.effects.OpenURL(p.URL)
	}
	metrics.UIActions.WithLabelValues("link", "handled").Inc()
}

func (c *Coordinator) handleIntent(ctx context.Context, p mcpui.ActionPayload) {
	switch p.Intent {
	case "view_details", "detail":
		if p.Resource != nil {
			c.effects.Navigate(*p.Resource)
			metrics.UIActions.WithLabelValues("intent", "handled").Inc()
			return
		}
		c.sendPrompt(ctx, "Show me more details about this product")
		metrics.UIActions.WithLabelValues("intent", "handled").Inc()

	default:
		if p.Prompt != "" {
			c.sendPrompt(ctx, p.Prompt)
			metrics.UIActions.WithLabelValues("intent", "handled").Inc()
			return
		}
		slog.Debug("unhandled intent", "intent", p.Intent)
		metrics.UIActions.WithLabelValues("intent", "ignored").Inc()
	}
}

// sendPrompt forwards text into the live conversation. A disconnected or
// absent conversation makes this a no-op.
func (c *Coordinator) sendPrompt(ctx context.Context, prompt string) {
	if prompt == "" {
		return
	}
	c.mu.Lock()
	conv := c.conv
	c.mu.Unlock()
	if conv == nil || conv.Status() != conversation.StatusConnected {
		slog.Debug("prompt dropped, conversation not connected")
		return
	}
	if err := conv.SendUserMessage(ctx, prompt); err != nil {
		slog.Error("send prompt", "error", err)
		metrics.Errors.WithLabelValues("conversation", "send").Inc()
	}
}

func (c *Coordinator) logAction(act mcpui.Action) {
	data, err := json.Marshal(act)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.toolCalls.Push(LogEntry{Timestamp: time.Now().UTC(), Type: LogUIAction, Data: data})
	c.mu.Unlock()
}

// synthesizeSearchResults builds a search-results widget for catalog-search
// tool results whose first result entry is structured product JSON.
func synthesizeSearchResults(raw []byte) []mcpui.Resource {
	tr, ok := mcpui.ExtractToolResult(raw)
	if !ok {
		return nil
	}
	products, cursor, ok := catalog.ParseSearchPayload(tr.Text)
	if !ok {
		return nil
	}
	query := tr.Query
	if query == "" {
		query = "products"
	}
	res, err := catalog.SearchResults(query, products, cursor)
	if err != nil {
		slog.Warn("search results widget", "error", err)
		return nil
	}
	return []mcpui.Resource{res}
}

// isProductDetailURL matches links that should stay in-app when a resource
// rides along.
func isProductDetailURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "product" || seg == "products" {
			return true
		}
	}
	return false
}
