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

var (
	ErrUnknownTransaction = errors.New("no gateway payment for transaction reference")
	ErrAmountMismatch     = errors.New("notification amount does not match signed amount")
)

type PaymentStore struct {
	pool *pgxpool.Pool
}

func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

func (s *PaymentStore) Create(ctx context.Context, payment *GatewayPayment) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO gateway_payments (order_id, provider, txn_ref, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`,
		payment.OrderID,
		string(payment.Provider),
		payment.TxnRef,
		payment.Amount,
		string(models.GatewayPaymentPending),
	)

	var createdAt pgtype.Timestamptz
	if err := row.Scan(&payment.ID, &createdAt); err != nil {
		return err
	}
	payment.Status = models.GatewayPaymentPending
	payment.CreatedAt = createdAt.Time
	return nil
}

func (s *PaymentStore) GetByTxnRef(ctx context.Context, provider GatewayProvider, txnRef string) (*GatewayPayment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, order_id, provider, txn_ref, amount, result_code, status, created_at, settled_at
		FROM gateway_payments
		WHERE provider = $1 AND txn_ref = $2
	`, string(provider), txnRef)

	payment, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownTransaction
	}
	return payment, err
}

// SettleResult reports what a settlement attempt did. Applied is false for
// duplicate deliveries that hit an already-terminal record.
type SettleResult struct {
	Payment *GatewayPayment
	Order   *Order
	Applied bool
}

// Settle performs the terminal transition for a gateway payment and mirrors
// the outcome onto the order, all inside one transaction holding row locks on
// both records. Concurrent deliveries of the same notification serialize on
// the payment row lock; the loser sees a terminal record and becomes a no-op.
func (s *PaymentStore) Settle(ctx context.Context, provider GatewayProvider, txnRef string, amount int64, resultCode string, outcome models.GatewayPaymentStatus, orderOutcome PaymentStatus) (*SettleResult, error) {
	if outcome != models.GatewayPaymentPaid && outcome != models.GatewayPaymentFailed {
		return nil, fmt.Errorf("settle requires a terminal outcome, got %s", outcome)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin settlement transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, order_id, provider, txn_ref, amount, result_code, status, created_at, settled_at
		FROM gateway_payments
		WHERE provider = $1 AND txn_ref = $2
		FOR UPDATE
	`, string(provider), txnRef)

	payment, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownTransaction
	}
	if err != nil {
		return nil, err
	}

	orderRow := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, payment.OrderID)
	order, err := scanOrder(orderRow)
	if err != nil {
		return nil, err
	}

	if payment.IsTerminal() {
		// Duplicate delivery or the redirect/IPN race duplicate.
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &SettleResult{Payment: payment, Order: order, Applied: false}, nil
	}

	if payment.Amount != amount {
		return nil, fmt.Errorf("%w: signed %d, notified %d", ErrAmountMismatch, payment.Amount, amount)
	}

	var settledAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		UPDATE gateway_payments
		SET status = $1, result_code = $2, settled_at = NOW()
		WHERE id = $3
		RETURNING settled_at
	`, string(outcome), resultCode, payment.ID).Scan(&settledAt)
	if err != nil {
		return nil, err
	}

	paidAtClause := ""
	if orderOutcome == PaymentPaid {
		paidAtClause = ", paid_at = NOW()"
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status = $1`+paidAtClause+`
		WHERE id = $2
	`, string(orderOutcome), order.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	payment.Status = outcome
	payment.ResultCode = resultCode
	payment.SettledAt = settledAt.Time
	order.PaymentStatus = orderOutcome
	if orderOutcome == PaymentPaid {
		order.PaidAt = settledAt.Time
	}
	return &SettleResult{Payment: payment, Order: order, Applied: true}, nil
}

func scanPayment(row orderRow) (*GatewayPayment, error) {
	var (
		payment    GatewayPayment
		provider   string
		status     string
		resultCode pgtype.Text
		createdAt  pgtype.Timestamptz
		settledAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&payment.ID, &payment.OrderID, &provider, &payment.TxnRef,
		&payment.Amount, &resultCode, &status, &createdAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Provider = GatewayProvider(provider)
	payment.Status = models.GatewayPaymentStatus(status)
	if resultCode.Valid {
		payment.ResultCode = resultCode.String
	}
	payment.CreatedAt = createdAt.Time
	assignTime(&payment.SettledAt, settledAt)
	return &payment, nil
}

// GetByOrderID returns the payment attached to an order, if any.
func (s *PaymentStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*GatewayPayment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, order_id, provider, txn_ref, amount, result_code, status, created_at, settled_at
		FROM gateway_payments
		WHERE order_id = $1
	`, orderID)
	return scanPayment(row)
}
