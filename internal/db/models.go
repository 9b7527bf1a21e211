package db

import "github.com/vietcartapp/vietcart/internal/models"

type Order = models.Order
type OrderStatus = models.OrderStatus
type PaymentStatus = models.PaymentStatus
type PaymentMethod = models.PaymentMethod
type GatewayPayment = models.GatewayPayment
type GatewayProvider = models.GatewayProvider
type Wallet = models.Wallet
type WalletTransaction = models.WalletTransaction
type Discount = models.Discount
type ShippingRecord = models.ShippingRecord
type ReturnRequest = models.ReturnRequest

const (
	OrderPending   = models.OrderPending
	OrderConfirmed = models.OrderConfirmed
	OrderShipping  = models.OrderShipping
	OrderDelivered = models.OrderDelivered
	OrderCompleted = models.OrderCompleted
	OrderCancelled = models.OrderCancelled
	OrderReturned  = models.OrderReturned

	PaymentPending   = models.PaymentPending
	PaymentPaid      = models.PaymentPaid
	PaymentFailed    = models.PaymentFailed
	PaymentCancelled = models.PaymentCancelled

	MethodVNPay = models.MethodVNPay
	MethodMoMo  = models.MethodMoMo
	MethodCOD   = models.MethodCOD

	ProviderVNPay = models.ProviderVNPay
	ProviderMoMo  = models.ProviderMoMo
)
