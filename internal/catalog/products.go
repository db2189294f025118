// Package catalog provides the demo product set and the declarative widget
// resources built from it.
package catalog

// Product is one demo catalog entry.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// Products is the demo showcase set.
var Products = []Product{
	{ID: "1", Name: "Wireless Headphones", Price: 199.99, Image: "/wireless-headphones.png"},
	{ID: "2", Name: "Smart Watch", Price: 299.99, Image: "/smartwatch-lifestyle.png"},
	{ID: "3", Name: "Laptop Stand", Price: 79.99, Image: "/laptop-stand.png"},
	{ID: "4", Name: "USB-C Hub", Price: 49.99, Image: "/usb-hub.png"},
}

// Find looks a product up by id.
func Find(id string) (Product, bool) {
	for _, p := range Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
