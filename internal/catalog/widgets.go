package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/elevenshopping/gateway/internal/cart"
	"github.com/elevenshopping/gateway/internal/mcpui"
)

// WidgetMimeType marks a resource whose text is a declarative widget tree.
// Widgets are data, not script: the renderer walks the tree and
// materializes elements, wiring button actions back as UI action results.
const WidgetMimeType = "application/vnd.shop-ui.widget+json"

// Node is one element of a declarative widget tree.
type Node struct {
	Kind     string        `json:"kind"` // container, image, text, button
	Text     string        `json:"text,omitempty"`
	Src      string        `json:"src,omitempty"`
	Style    string        `json:"style,omitempty"`
	Action   *mcpui.Action `json:"action,omitempty"` // emitted on press
	Children []Node        `json:"children,omitempty"`
}

func resource(uri string, root Node) (mcpui.Resource, error) {
	text, err := json.Marshal(root)
	if err != nil {
		return mcpui.Resource{}, fmt.Errorf("marshal widget %s: %w", uri, err)
	}
	return mcpui.Resource{URI: uri, MimeType: WidgetMimeType, Text: string(text)}, nil
}

// ProductCard builds the interactive product view for one catalog entry.
func ProductCard(p Product) (mcpui.Resource, error) {
	root := Node{
		Kind:  "container",
		Style: "card",
		Children: []Node{
			{Kind: "image", Src: p.Image, Text: p.Name},
			{Kind: "text", Style: "title", Text: p.Name},
			{Kind: "text", Style: "price", Text: fmt.Sprintf("$%.2f", p.Price)},
			{Kind: "button", Text: "Add to Cart", Action: &mcpui.Action{
				Type: mcpui.ActionTool,
				Payload: mcpui.ActionPayload{
					ToolName: mcpui.ToolAddToCart,
					Params: mcpui.MarshalParams(mcpui.CartParams{
						ProductID:   p.ID,
						ProductName: p.Name,
						Price:       p.Price,
					}),
				},
			}},
		},
	}
	return resource("ui://commerce/product-"+p.ID, root)
}

// CartSummary builds the cart view with per-line totals and a checkout
// button carrying the grand total.
func CartSummary(items []cart.Item, total float64) (mcpui.Resource, error) {
	lines := make([]Node, 0, len(items))
	for _, item := range items {
		lines = append(lines, Node{
			Kind:  "text",
			Style: "cart-line",
			Text:  fmt.Sprintf("%s x%d  $%.2f", item.Name, item.Quantity, item.Price*float64(item.Quantity)),
		})
	}

	root := Node{
		Kind:  "container",
		Style: "cart",
		Children: []Node{
			{Kind: "text", Style: "title", Text: "Shopping Cart"},
			{Kind: "container", Style: "cart-lines", Children: lines},
			{Kind: "text", Style: "total", Text: fmt.Sprintf("Total: $%.2f", total)},
			{Kind: "button", Text: "Checkout", Action: &mcpui.Action{
				Type: mcpui.ActionTool,
				Payload: mcpui.ActionPayload{
					ToolName: mcpui.ToolCheckout,
					Params:   mcpui.MarshalParams(mcpui.CheckoutParams{Total: total}),
				},
			}},
		},
	}
	return resource("ui://commerce/cart-summary", root)
}

// SearchProduct is one entry of an agent product-search result.
type SearchProduct struct {
	ProductID   string  `json:"product_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	URL         string  `json:"url"`
	Price       float64 `json:"price"`
}

// ParseSearchPayload reads a catalog-search tool result. The agent returns
// a JSON body with a products array plus an optional pagination cursor;
// prices ride in price_range.min. ok is false when text is not such a
// payload.
func ParseSearchPayload(text string) (products []SearchProduct, nextCursor string, ok bool) {
	if !gjson.Valid(text) {
		return nil, "", false
	}
	body := gjson.Parse(text)
	list := body.Get("products")
	if !list.IsArray() {
		return nil, "", false
	}

	for _, p := range list.Array() {
		price := p.Get("price_range.min").Float()
		if price == 0 {
			price = p.Get("price").Float()
		}
		products = append(products, SearchProduct{
			ProductID:   p.Get("product_id").String(),
			Title:       p.Get("title").String(),
			Description: p.Get("description").String(),
			ImageURL:    p.Get("image_url").String(),
			URL:         p.Get("url").String(),
			Price:       price,
		})
	}

	if body.Get("pagination.hasNextPage").Bool() {
		nextCursor = body.Get("pagination.endCursor").String()
	}
	return products, nextCursor, true
}

// SearchResults builds a results grid for an agent catalog search. When
// nextCursor is non-empty a load-more button is appended carrying the
// pagination cursor back through the conversation.
func SearchResults(query string, products []SearchProduct, nextCursor string) (mcpui.Resource, error) {
	cards := make([]Node, 0, len(products))
	for _, p := range products {
		desc := p.Description
		if len(desc) > 120 {
			desc = desc[:120] + "..."
		}
		cards = append(cards, Node{
			Kind:  "container",
			Style: "card",
			Children: []Node{
				{Kind: "image", Src: p.ImageURL, Text: p.Title},
				{Kind: "text", Style: "title", Text: p.Title},
				{Kind: "text", Style: "description", Text: desc},
				{Kind: "text", Style: "price", Text: fmt.Sprintf("$%.2f", p.Price)},
				{Kind: "button", Text: "Add to Cart", Action: &mcpui.Action{
					Type: mcpui.ActionTool,
					Payload: mcpui.ActionPayload{
						ToolName: mcpui.ToolAddToCart,
						Params: mcpui.MarshalParams(mcpui.CartParams{
							ProductID:   p.ProductID,
							ProductName: p.Title,
							Price:       p.Price,
							Prompt:      fmt.Sprintf("Add %s to my cart", p.Title),
						}),
					},
				}},
			},
		})
	}

	children := []Node{
		{Kind: "text", Style: "title", Text: fmt.Sprintf("Search Results: %q", query)},
		{Kind: "text", Style: "count", Text: fmt.Sprintf("%d results", len(products))},
		{Kind: "container", Style: "grid", Children: cards},
	}
	if nextCursor != "" {
		children = append(children, Node{
			Kind: "button", Text: "Load More Products",
			Action: &mcpui.Action{
				Type: mcpui.ActionPrompt,
				Payload: mcpui.ActionPayload{
					Prompt: fmt.Sprintf("Show me more results for %q (cursor %s)", query, nextCursor),
				},
			},
		})
	}

	return resource("ui://commerce/search-results", Node{Kind: "container", Children: children})
}
