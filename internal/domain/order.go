package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the central entity of the operations board. All monetary amounts
// are taken verbatim from the server; the client never recomputes money.
type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Type          OrderType       `json:"type"`
	Status        OrderStatus     `json:"status"`
	TableID       *string         `json:"table_id,omitempty"`
	CustomerName  *string         `json:"customer_name,omitempty"`
	CustomerPhone *string         `json:"customer_phone,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Notes         string          `json:"notes,omitempty"`
	Items         []OrderItem     `json:"items"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderItem carries a denormalized menu item name so the line survives the
// item being deleted from the catalog later.
type OrderItem struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     ItemStatus      `json:"status"`
	Notes      string          `json:"notes,omitempty"`
}

// KitchenOrder is a read-only projection of Order; it is recomputed on every
// projection refresh and never stored.
type KitchenOrder struct {
	Order
	PrepTime int  `json:"prep_time"`
	IsRush   bool `json:"is_rush"`
}

// Clone returns a deep copy so that consumers can hold a snapshot without
// aliasing the reconciled collection.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}
