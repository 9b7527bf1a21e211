package models

import (
	"time"

	"github.com/google/uuid"
)

type GatewayProvider string

const (
	ProviderVNPay GatewayProvider = "vnpay"
	ProviderMoMo  GatewayProvider = "momo"
)

type GatewayPaymentStatus string

const (
	GatewayPaymentPending GatewayPaymentStatus = "pending"
	GatewayPaymentPaid    GatewayPaymentStatus = "paid"
	GatewayPaymentFailed  GatewayPaymentStatus = "failed"
)

// GatewayPayment tracks one provider-side transaction for an order. The
// (provider, txn_ref) pair is globally unique. The record transitions to a
// terminal status at most once; later notifications for the same reference
// are no-ops.
type GatewayPayment struct {
	ID         uuid.UUID            `json:"id"`
	OrderID    uuid.UUID            `json:"order_id"`
	Provider   GatewayProvider      `json:"provider"`
	TxnRef     string               `json:"txn_ref"`
	Amount     int64                `json:"amount"`
	ResultCode string               `json:"result_code"`
	Status     GatewayPaymentStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	SettledAt  time.Time            `json:"settled_at"`
}

func (p *GatewayPayment) IsTerminal() bool {
	if p == nil {
		return false
	}
	return p.Status == GatewayPaymentPaid || p.Status == GatewayPaymentFailed
}
