package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevenshopping/gateway/internal/cart"
	"github.com/elevenshopping/gateway/internal/catalog"
	"github.com/elevenshopping/gateway/internal/mcpui"
)

func decodeWidget(t *testing.T, res mcpui.Resource) catalog.Node {
	t.Helper()
	require.Equal(t, catalog.WidgetMimeType, res.MimeType)
	var root catalog.Node
	require.NoError(t, json.Unmarshal([]byte(res.Text), &root))
	return root
}

func findButtons(n catalog.Node) []catalog.Node {
	var out []catalog.Node
	if n.Kind == "button" {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, findButtons(c)...)
	}
	return out
}

func TestProductCard(t *testing.T) {
	p, ok := catalog.Find("2")
	require.True(t, ok)

	res, err := catalog.ProductCard(p)
	require.NoError(t, err)
	assert.Equal(t, "ui://commerce/product-2", res.URI)

	root := decodeWidget(t, res)
	buttons := findButtons(root)
	require.Len(t, buttons, 1)
	require.NotNil(t, buttons[0].Action)
	assert.Equal(t, mcpui.ActionTool, buttons[0].Action.Type)
	assert.Equal(t, mcpui.ToolAddToCart, buttons[0].Action.Payload.ToolName)

	var params mcpui.CartParams
	require.NoError(t, buttons[0].Action.Payload.DecodeParams(&params))
	assert.Equal(t, "2", params.ProductID)
	assert.InDelta(t, 299.99, params.Price, 1e-9)
}

func TestCartSummary(t *testing.T) {
	items := []cart.Item{
		{ID: "1", Name: "Wireless Headphones", Price: 199.99, Quantity: 2},
		{ID: "3", Name: "Laptop Stand", Price: 79.99, Quantity: 1},
	}

	res, err := catalog.CartSummary(items, 479.97)
	require.NoError(t, err)
	assert.Equal(t, "ui://commerce/cart-summary", res.URI)
	assert.Contains(t, res.Text, "Wireless Headphones x2")
	assert.Contains(t, res.Text, "Total: $479.97")

	buttons := findButtons(decodeWidget(t, res))
	require.Len(t, buttons, 1)
	assert.Equal(t, mcpui.ToolCheckout, buttons[0].Action.Payload.ToolName)

	var params mcpui.CheckoutParams
	require.NoError(t, buttons[0].Action.Payload.DecodeParams(&params))
	assert.InDelta(t, 479.97, params.Total, 1e-9)
}

func TestSearchResults_Pagination(t *testing.T) {
	products := []catalog.SearchProduct{
		{ProductID: "p-1", Title: "Desk Lamp", Price: 39.99},
	}

	res, err := catalog.SearchResults("lamps", products, "cursor-2")
	require.NoError(t, err)
	buttons := findButtons(decodeWidget(t, res))
	require.Len(t, buttons, 2)
	assert.Equal(t, mcpui.ActionPrompt, buttons[1].Action.Type)
	assert.Contains(t, buttons[1].Action.Payload.Prompt, "cursor-2")

	res, err = catalog.SearchResults("lamps", products, "")
	require.NoError(t, err)
	assert.Len(t, findButtons(decodeWidget(t, res)), 1)
}

func TestParseSearchPayload(t *testing.T) {
	payload := `{
		"products": [
			{"product_id": "gid-1", "title": "Trail Running Shoes", "description": "Lightweight",
			 "image_url": "https://cdn.example/shoes.png", "url": "https://shop.example/products/shoes",
			 "price_range": {"min": 129.99}},
			{"product_id": "gid-2", "title": "Road Running Shoes", "description": "Cushioned",
			 "image_url": "https://cdn.example/road.png", "url": "https://shop.example/products/road",
			 "price": 99.5}
		],
		"pagination": {"hasNextPage": true, "endCursor": "c-42"}
	}`

	products, cursor, ok := catalog.ParseSearchPayload(payload)
	require.True(t, ok)
	require.Len(t, products, 2)
	assert.Equal(t, "gid-1", products[0].ProductID)
	assert.InDelta(t, 129.99, products[0].Price, 0.001)
	assert.InDelta(t, 99.5, products[1].Price, 0.001, "price fallback when price_range absent")
	assert.Equal(t, "c-42", cursor)
}

func TestParseSearchPayload_NotASearchResult(t *testing.T) {
	for _, text := range []string{
		"plain prose",
		`{"status":"ok"}`,
		`{"products":"not an array"}`,
		`123`,
	} {
		_, _, ok := catalog.ParseSearchPayload(text)
		assert.False(t, ok, "payload %q", text)
	}
}

func TestParseSearchPayload_LastPageHasNoCursor(t *testing.T) {
	products, cursor, ok := catalog.ParseSearchPayload(
		`{"products":[],"pagination":{"hasNextPage":false,"endCursor":"c-99"}}`)
	require.True(t, ok)
	assert.Empty(t, products)
	assert.Empty(t, cursor)
}
