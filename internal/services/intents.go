package services

import "github.com/vietcartapp/vietcart/internal/db"

type IntentKind string

const (
	IntentCreateShipping   IntentKind = "create_shipping"
	IntentRedeemDiscount   IntentKind = "redeem_discount"
	IntentSendPaymentEmail IntentKind = "send_payment_email"
	IntentCreditReward     IntentKind = "credit_reward"
	IntentCreditRefund     IntentKind = "credit_refund"
	IntentRevertDiscount   IntentKind = "revert_discount"
	IntentDeductReward     IntentKind = "deduct_reward"
	IntentManualRefund     IntentKind = "manual_refund"
)

// Intent is one deferred side effect produced by reconciliation or an order
// lifecycle transition. Each kind is idempotent at the storage layer, so a
// list may be re-executed after a crash without double effects.
type Intent struct {
	Kind  IntentKind
	Order *db.Order

	// Amount carries the refund value for IntentCreditRefund and
	// IntentManualRefund; other kinds derive their amounts from the order.
	Amount int64
}
