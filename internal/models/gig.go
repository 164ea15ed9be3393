package models

import (
	"time"

	"github.com/google/uuid"
)

// Gig is the listing an order is placed against. Listing management is a
// thin CRUD surface; the settlement engine only needs the seller and the
// package pricing.
type Gig struct {
	ID          uuid.UUID    `json:"id"`
	SellerID    uuid.UUID    `json:"seller_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Packages    []GigPackage `json:"packages"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type GigPackage struct {
	Title        string `json:"title"`
	PriceTON     string `json:"price_ton"`
	DeliveryDays int    `json:"delivery_days"`
}

func (g *Gig) Package(index int) *GigPackage {
	if index < 0 || index >= len(g.Packages) {
		return nil
	}
	return &g.Packages[index]
}
