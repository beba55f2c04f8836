package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusFinished  OrderStatus = "finished"

	// StatusCompleted exists in the schema but is never assigned by any code
	// path. It is accepted on import for round-trip compatibility.
	StatusCompleted OrderStatus = "completed"
)

// Valid reports whether s is one of the known status values.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusFinished, StatusCompleted:
		return true
	}
	return false
}

// Order is a customer transaction. The number is the customer-visible ticket
// number, unique and strictly increasing across all orders. Hidden is a soft
// delete flag orthogonal to status.
type Order struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Number    int          `json:"number" db:"number"`
	Status    OrderStatus  `json:"status" db:"status"`
	Hidden    bool         `json:"hidden" db:"hidden"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
	Items     []*OrderItem `json:"items"`
}

// OrderItem is a line within an order. Name and price are snapshots of the
// product at the moment the item was added.
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
}
