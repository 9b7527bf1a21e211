package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/ghn"
	"github.com/vietcartapp/vietcart/internal/models"
)

// Store interfaces are the slices of internal/db the services consume.
// Tests substitute in-package fakes.

type OrderStore interface {
	Create(ctx context.Context, order *db.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	GetByCode(ctx context.Context, code string) (*db.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, from, to db.OrderStatus) error
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to db.PaymentStatus) error
	MarkProvisionallyPaid(ctx context.Context, orderID uuid.UUID) error
	CountSettledDiscountUses(ctx context.Context, userID, discountID uuid.UUID) (int64, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *db.GatewayPayment) error
	GetByTxnRef(ctx context.Context, provider db.GatewayProvider, txnRef string) (*db.GatewayPayment, error)
	Settle(ctx context.Context, provider db.GatewayProvider, txnRef string, amount int64, resultCode string, outcome models.GatewayPaymentStatus, orderOutcome db.PaymentStatus) (*db.SettleResult, error)
}

type WalletStore interface {
	Apply(ctx context.Context, params db.ApplyParams) (*db.ApplyResult, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*db.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
}

type DiscountStore interface {
	GetByID(ctx context.Context, discountID uuid.UUID) (*db.Discount, error)
	GetByCode(ctx context.Context, code string) (*db.Discount, error)
	Redeem(ctx context.Context, discountID uuid.UUID) error
	Revert(ctx context.Context, discountID uuid.UUID) error
}

type ShippingStore interface {
	CreateOnce(ctx context.Context, record *db.ShippingRecord) (bool, error)
	ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*db.ShippingRecord, error)
}

type ReturnStore interface {
	CreateActive(ctx context.Context, request *db.ReturnRequest) error
	GetByID(ctx context.Context, requestID uuid.UUID) (*db.ReturnRequest, error)
	Decide(ctx context.Context, requestID uuid.UUID, decision models.ReturnStatus, adminID, note string) error
}

// ShippingClient is the outbound shipping-provider call surface.
type ShippingClient interface {
	CreateOrder(ctx context.Context, req ghn.CreateOrderRequest) (*ghn.CreateOrderResult, error)
}
