// Package cart holds the in-memory demo shopping cart for one session.
package cart

// Item is one cart line.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Cart is a session-scoped cart. Lines are kept in insertion order and only
// removed by clearing the whole cart. Not safe for concurrent use; the
// owning session serializes access.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add increments the quantity when an item with the same id exists,
// otherwise appends a new line with quantity 1. Returns the resulting line.
func (c *Cart) Add(id, name string, price float64) Item {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity++
			return c.items[i]
		}
	}
	item := Item{ID: id, Name: name, Price: price, Quantity: 1}
	c.items = append(c.items, item)
	return item
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Total sums price*quantity over all lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.items) }

// Clear empties the cart.
func (c *Cart) Clear() { c.items = nil }
