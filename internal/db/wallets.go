package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietcartapp/vietcart/internal/models"
)

var ErrWalletNotFound = errors.New("wallet not found")

type WalletStore struct {
	pool *pgxpool.Pool
}

func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// ApplyParams describes one ledger mutation. Amount is the signed delta:
// positive for reward/refund credits, negative for deductions.
type ApplyParams struct {
	UserID  uuid.UUID
	OrderID uuid.UUID // uuid.Nil when not tied to an order
	Type    models.WalletTransactionType
	Amount  int64
	Note    string

	// ClampToBalance caps a negative amount at the current balance instead of
	// failing; the recorded amount is the amount actually taken.
	ClampToBalance bool

	// OncePerOrder skips the mutation when a transaction of the same type
	// already references the same order. Used for exactly-once reward credits.
	OncePerOrder bool
}

// ApplyResult carries the ledger entry written and whether anything changed.
type ApplyResult struct {
	Transaction *WalletTransaction
	Applied     bool
	Shortfall   int64 // amount a clamped deduction could not take
}

// Apply ensures the user's wallet exists, locks its row, and appends a ledger
// entry. The wallet row lock serializes concurrent mutations per wallet;
// callers needing an order lock too must take the order lock first.
func (s *WalletStore) Apply(ctx context.Context, params ApplyParams) (*ApplyResult, error) {
	if params.UserID == uuid.Nil {
		return nil, fmt.Errorf("wallet mutation requires a registered user")
	}
	if params.Amount == 0 {
		return &ApplyResult{Applied: false}, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin wallet transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lazy wallet creation on first access.
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, params.UserID); err != nil {
		return nil, err
	}

	var walletID uuid.UUID
	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE
	`, params.UserID).Scan(&walletID, &balance)
	if err != nil {
		return nil, err
	}

	if params.OncePerOrder && params.OrderID != uuid.Nil {
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM wallet_transactions
				WHERE wallet_id = $1 AND order_id = $2 AND type = $3
			)
		`, walletID, params.OrderID, string(params.Type)).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return &ApplyResult{Applied: false}, nil
		}
	}

	amount := params.Amount
	var shortfall int64
	if amount < 0 && balance+amount < 0 {
		if !params.ClampToBalance {
			return nil, fmt.Errorf("wallet balance %d cannot absorb deduction %d", balance, -amount)
		}
		shortfall = -(balance + amount)
		amount = -balance
	}

	entry := &WalletTransaction{
		WalletID:      walletID,
		OrderID:       params.OrderID,
		Type:          params.Type,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance + amount,
		Note:          params.Note,
	}

	var createdAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (wallet_id, order_id, type, amount, balance_before, balance_after, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		walletID,
		uuid.NullUUID{UUID: params.OrderID, Valid: params.OrderID != uuid.Nil},
		string(params.Type),
		amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		params.Note,
	).Scan(&entry.ID, &createdAt)
	if err != nil {
		return nil, err
	}
	entry.CreatedAt = createdAt.Time

	if _, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2
	`, entry.BalanceAfter, walletID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ApplyResult{Transaction: entry, Applied: true, Shortfall: shortfall}, nil
}

func (s *WalletStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var wallet Wallet
	var createdAt, updatedAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&wallet.ID, &wallet.UserID, &wallet.Balance, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	wallet.CreatedAt = createdAt.Time
	wallet.UpdatedAt = updatedAt.Time
	return &wallet, nil
}

// ListTransactions returns the wallet ledger oldest-first so a replay
// reproduces the stored balance.
func (s *WalletStore) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet_id, order_id, type, amount, balance_before, balance_after, note, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at ASC, id ASC
	`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WalletTransaction
	for rows.Next() {
		var (
			entry     models.WalletTransaction
			orderID   uuid.NullUUID
			txType    string
			createdAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&entry.ID, &entry.WalletID, &orderID, &txType, &entry.Amount,
			&entry.BalanceBefore, &entry.BalanceAfter, &entry.Note, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		entry.OrderID = orderID.UUID
		entry.Type = models.WalletTransactionType(txType)
		entry.CreatedAt = createdAt.Time
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
