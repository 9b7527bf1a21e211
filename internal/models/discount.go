package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Discount is a redeemable code. usedCount only moves on confirmed redemption
// (payment settlement) and on reversal of a settled order, never at
// reservation time.
type Discount struct {
	ID                uuid.UUID    `json:"id"`
	Code              string       `json:"code"`
	Type              DiscountType `json:"type"`
	Value             int64        `json:"value"` // percent points or fixed VND
	MaxDiscountAmount int64        `json:"max_discount_amount"` // 0 = uncapped
	MinOrderValue     int64        `json:"min_order_value"`
	UsageLimit        int64        `json:"usage_limit"`      // 0 = unlimited
	UserUsageLimit    int64        `json:"user_usage_limit"` // 0 = unlimited
	UsedCount         int64        `json:"used_count"`
	StartsAt          time.Time    `json:"starts_at"`
	EndsAt            time.Time    `json:"ends_at"`
	Active            bool         `json:"active"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (d *Discount) WithinWindow(now time.Time) bool {
	if d == nil {
		return false
	}
	if !d.StartsAt.IsZero() && now.Before(d.StartsAt) {
		return false
	}
	if !d.EndsAt.IsZero() && now.After(d.EndsAt) {
		return false
	}
	return true
}

// AmountFor computes the discount for an order subtotal, applying the cap for
// percentage discounts.
func (d *Discount) AmountFor(subtotal int64) int64 {
	if d == nil || subtotal <= 0 {
		return 0
	}
	var amount int64
	switch d.Type {
	case DiscountPercent:
		amount = subtotal * d.Value / 100
		if d.MaxDiscountAmount > 0 && amount > d.MaxDiscountAmount {
			amount = d.MaxDiscountAmount
		}
	case DiscountFixed:
		amount = d.Value
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
