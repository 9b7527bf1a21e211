package models

import (
	"time"

	"github.com/google/uuid"
)

type WalletTransactionType string

const (
	WalletTxReward    WalletTransactionType = "reward"
	WalletTxRefund    WalletTransactionType = "refund"
	WalletTxDeduction WalletTransactionType = "deduction"
)

// Wallet holds a registered user's store-credit balance. Balance never goes
// negative; deductions clamp at zero. Created lazily on first use.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletTransaction is an append-only ledger entry. Replaying all entries for
// a wallet from zero must reproduce the stored balance.
type WalletTransaction struct {
	ID            uuid.UUID             `json:"id"`
	WalletID      uuid.UUID             `json:"wallet_id"`
	OrderID       uuid.UUID             `json:"order_id"` // uuid.Nil when not tied to an order
	Type          WalletTransactionType `json:"type"`
	Amount        int64                 `json:"amount"` // signed: negative for deductions
	BalanceBefore int64                 `json:"balance_before"`
	BalanceAfter  int64                 `json:"balance_after"`
	Note          string                `json:"note"`
	CreatedAt     time.Time             `json:"created_at"`
}

// ReplayBalance folds a transaction sequence from zero. Used by audit checks.
func ReplayBalance(txs []WalletTransaction) int64 {
	var balance int64
	for _, tx := range txs {
		balance += tx.Amount
	}
	return balance
}
