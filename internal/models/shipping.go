package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingRecord is created at most once per order, after payment settles
// (or after a cash-on-delivery order is confirmed).
type ShippingRecord struct {
	ID                uuid.UUID      `json:"id"`
	OrderID           uuid.UUID      `json:"order_id"`
	ProviderOrderCode string         `json:"provider_order_code"`
	Destination       map[string]any `json:"destination"`
	Fee               int64          `json:"fee"`
	CreatedAt         time.Time      `json:"created_at"`
}
