package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents an item on the menu. Name and price are copied onto
// order items at purchase time, so editing a product never rewrites history.
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Category      string          `json:"category" db:"category"`
	Amount        *string         `json:"amount" db:"amount"`
	Available     bool            `json:"available" db:"available"`
	Hidden        bool            `json:"hidden" db:"hidden"`
	ImageURL      *string         `json:"image_url" db:"image_url"`
	ImageData     []byte          `json:"-" db:"image_data"`
	ImageMimeType *string         `json:"-" db:"image_mime_type"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// HasImage reports whether the product carries an embedded image blob.
func (p *Product) HasImage() bool {
	return len(p.ImageData) > 0
}
