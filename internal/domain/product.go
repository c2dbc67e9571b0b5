package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
// Images holds stored-file names in display order.
type Product struct {
	ID           uuid.UUID
	Title        string
	Price        decimal.NullDecimal
	PrevPrice    decimal.NullDecimal
	ShowDiscount bool
	IsListed     bool
	UnitCount    int
	Images       []string
	Description  *string
	Categories   []*Category
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// SetPrice records price and, when it differs from the current one, moves the
// current price into PrevPrice.
func (p *Product) SetPrice(price decimal.NullDecimal) {
	if samePrice(p.Price, price) {
		return
	}
	p.PrevPrice = p.Price
	p.Price = price
}

func samePrice(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
