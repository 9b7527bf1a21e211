package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderReturned  OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodVNPay PaymentMethod = "vnpay"
	MethodMoMo  PaymentMethod = "momo"
	MethodCOD   PaymentMethod = "cod"
)

// Order is the ledger record for a placed order. All monetary fields are
// VND integers. Orders are never deleted; terminal states close the record.
type Order struct {
	ID            uuid.UUID      `json:"id"`
	Code          string         `json:"code"`
	UserID        uuid.UUID      `json:"user_id"`      // uuid.Nil for guest orders
	ContactEmail  string         `json:"contact_email"` // mandatory for guests
	Subtotal      int64          `json:"subtotal"`
	ShippingFee   int64          `json:"shipping_fee"`
	TotalDiscount int64          `json:"total_discount"`
	Total         int64          `json:"total"`
	DiscountID    uuid.UUID      `json:"discount_id"` // uuid.Nil when no discount applied
	Method        PaymentMethod  `json:"payment_method"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	Destination   map[string]any `json:"destination"`
	CreatedAt     time.Time      `json:"created_at"`
	PaidAt        time.Time      `json:"paid_at"`
	CompletedAt   time.Time      `json:"completed_at"`
	CancelledAt   time.Time      `json:"cancelled_at"`
}

func (o *Order) IsGuest() bool {
	return o != nil && o.UserID == uuid.Nil
}

func (o *Order) HasDiscount() bool {
	return o != nil && o.DiscountID != uuid.Nil
}

// ConsistentTotals reports whether total = subtotal - totalDiscount + shippingFee
// and no monetary field is negative.
func (o *Order) ConsistentTotals() bool {
	if o == nil {
		return false
	}
	if o.Subtotal < 0 || o.ShippingFee < 0 || o.TotalDiscount < 0 || o.Total < 0 {
		return false
	}
	return o.Total == o.Subtotal-o.TotalDiscount+o.ShippingFee
}

// legalOrderTransitions is the admin/fulfillment transition table. Payment
// status is driven separately by reconciliation.
var legalOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipping, OrderCancelled},
	OrderShipping:  {OrderDelivered, OrderCancelled},
	OrderDelivered: {OrderCompleted, OrderReturned},
	OrderCompleted: {OrderReturned},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, allowed := range legalOrderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
