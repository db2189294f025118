package mcpui

import (
	"encoding/json"
	"fmt"
)

// ActionType tags the interaction variants a rendered resource can emit.
type ActionType string

const (
	ActionTool     ActionType = "tool"
	ActionLink     ActionType = "link"
	ActionPrompt   ActionType = "prompt"
	ActionIntent   ActionType = "intent"
	ActionNavigate ActionType = "navigate"
	ActionDetail   ActionType = "detail"
)

// Tool names dispatched by the coordinator.
const (
	ToolRedirectToCheckout = "redirect_to_checkout"
	ToolAddToCart          = "add_to_cart"
	ToolCheckout           = "checkout"
)

// Action is one typed user interaction emitted from inside a rendered
// resource. Unknown types parse fine and are dropped at dispatch.
type Action struct {
	Type    ActionType    `json:"type"`
	Payload ActionPayload `json:"payload"`
}

// ActionPayload is the union of per-variant fields. Which fields are
// meaningful depends on the action type.
type ActionPayload struct {
	ToolName string          `json:"toolName,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	URL      string          `json:"url,omitempty"`
	Prompt   string          `json:"prompt,omitempty"`
	Intent   string          `json:"intent,omitempty"`
	Resource *Resource       `json:"resource,omitempty"`
}

// RedirectParams is the params shape for redirect_to_checkout tool actions.
type RedirectParams struct {
	URL string `json:"url"`
}

// CartParams is the params shape for add_to_cart tool actions.
type CartParams struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Prompt      string  `json:"prompt,omitempty"`
}

// CheckoutParams is the params shape for checkout tool actions.
type CheckoutParams struct {
	Total float64 `json:"total"`
}

// ParseAction decodes a single action frame.
func ParseAction(data []byte) (Action, error) {
	var act Action
	if err := json.Unmarshal(data, &act); err != nil {
		return Action{}, fmt.Errorf("parse ui action: %w", err)
	}
	return act, nil
}

// DecodeParams unmarshals the raw tool params into v. Absent params leave
// v untouched.
func (p ActionPayload) DecodeParams(v any) error {
	if len(p.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Params, v); err != nil {
		return fmt.Errorf("decode tool params: %w", err)
	}
	return nil
}

// MarshalParams encodes v for embedding in an ActionPayload.
func MarshalParams(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
