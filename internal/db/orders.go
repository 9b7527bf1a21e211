package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietcartapp/vietcart/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")
var ErrInvalidStatusTransition = errors.New("invalid order status transition")
var ErrInconsistentTotals = errors.New("order totals are inconsistent")

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, code, user_id, contact_email, subtotal, shipping_fee, total_discount,
	total, discount_id, payment_method, status, payment_status, destination,
	created_at, paid_at, completed_at, cancelled_at
`

func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if !order.ConsistentTotals() {
		return ErrInconsistentTotals
	}
	if order.IsGuest() && order.ContactEmail == "" {
		return fmt.Errorf("guest order requires a contact email")
	}

	destinationJSON, err := json.Marshal(order.Destination)
	if err != nil {
		return err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO orders (
			code, user_id, contact_email, subtotal, shipping_fee,
			total_discount, total, discount_id, payment_method, status,
			payment_status, destination
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`,
		order.Code,
		uuid.NullUUID{UUID: order.UserID, Valid: order.UserID != uuid.Nil},
		order.ContactEmail,
		order.Subtotal,
		order.ShippingFee,
		order.TotalDiscount,
		order.Total,
		uuid.NullUUID{UUID: order.DiscountID, Valid: order.DiscountID != uuid.Nil},
		string(order.Method),
		string(order.Status),
		string(order.PaymentStatus),
		destinationJSON,
	)

	var createdAt pgtype.Timestamptz
	if err := row.Scan(&order.ID, &createdAt); err != nil {
		return err
	}
	order.CreatedAt = createdAt.Time
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

func (s *OrderStore) GetByCode(ctx context.Context, code string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code)
	return scanOrder(row)
}

// Transition applies an admin/fulfillment status change. The legal-transition
// table is enforced both here (the status guard in SQL) and by the caller.
func (s *OrderStore) Transition(ctx context.Context, orderID uuid.UUID, from, to OrderStatus) error {
	if !models.CanTransitionOrder(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}

	var extra string
	switch to {
	case OrderCompleted:
		extra = ", completed_at = NOW()"
	case OrderCancelled, OrderReturned:
		extra = ", cancelled_at = NOW()"
	}

	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $1`+extra+`
		WHERE id = $2 AND status = $3
	`, string(to), orderID, string(from))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, from)
	}
	return nil
}

// SetPaymentStatus mirrors a payment outcome onto the order outside of a
// gateway settlement, e.g. cancelling an unpaid order.
func (s *OrderStore) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to PaymentStatus) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders SET payment_status = $1
		WHERE id = $2 AND payment_status = $3
	`, string(to), orderID, string(from))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected payment status %s", ErrInvalidStatusTransition, from)
	}
	return nil
}

// MarkProvisionallyPaid flips only the order's visible payment status from the
// advisory browser-return path. The gateway payment record stays pending, so
// the verified IPN still drives the real settlement.
func (s *OrderStore) MarkProvisionallyPaid(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders SET payment_status = $1
		WHERE id = $2 AND payment_status = $3
	`, string(PaymentPaid), orderID, string(PaymentPending))
	return err
}

// CountSettledDiscountUses counts a user's non-cancelled orders that redeemed
// the discount, for the per-user usage limit.
func (s *OrderStore) CountSettledDiscountUses(ctx context.Context, userID, discountID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE user_id = $1 AND discount_id = $2 AND status <> $3
	`, userID, discountID, string(OrderCancelled)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type orderRow interface {
	Scan(dest ...any) error
}

func scanOrder(row orderRow) (*Order, error) {
	var (
		order       Order
		userID      uuid.NullUUID
		discountID  uuid.NullUUID
		method      string
		status      string
		payStatus   string
		destination []byte
		createdAt   pgtype.Timestamptz
		paidAt      pgtype.Timestamptz
		completedAt pgtype.Timestamptz
		cancelledAt pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.Code, &userID, &order.ContactEmail, &order.Subtotal,
		&order.ShippingFee, &order.TotalDiscount, &order.Total, &discountID,
		&method, &status, &payStatus, &destination,
		&createdAt, &paidAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	order.UserID = userID.UUID
	order.DiscountID = discountID.UUID
	order.Method = PaymentMethod(method)
	order.Status = OrderStatus(status)
	order.PaymentStatus = PaymentStatus(payStatus)
	order.CreatedAt = createdAt.Time
	assignTime(&order.PaidAt, paidAt)
	assignTime(&order.CompletedAt, completedAt)
	assignTime(&order.CancelledAt, cancelledAt)

	if destination != nil {
		if err := json.Unmarshal(destination, &order.Destination); err != nil {
			return nil, err
		}
	}

	return &order, nil
}

func assignTime(dst *time.Time, src pgtype.Timestamptz) {
	if src.Valid {
		*dst = src.Time
	}
}
