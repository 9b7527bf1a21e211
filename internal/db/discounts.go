package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietcartapp/vietcart/internal/models"
)

var (
	ErrDiscountNotFound  = errors.New("discount not found")
	ErrDiscountExhausted = errors.New("discount usage limit reached")
)

type DiscountStore struct {
	pool *pgxpool.Pool
}

func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

const discountColumns = `
	id, code, type, value, max_discount_amount, min_order_value,
	usage_limit, user_usage_limit, used_count, starts_at, ends_at, active, created_at
`

func (s *DiscountStore) GetByID(ctx context.Context, discountID uuid.UUID) (*Discount, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, discountID)
	return scanDiscount(row)
}

func (s *DiscountStore) GetByCode(ctx context.Context, code string) (*Discount, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE code = $1`, code)
	return scanDiscount(row)
}

// Redeem is the compare-and-increment consuming one use at settlement time.
// The usage-limit guard is in the UPDATE itself, so concurrent settlements
// cannot push used_count past the limit.
func (s *DiscountStore) Redeem(ctx context.Context, discountID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE discounts
		SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)
	`, discountID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrDiscountExhausted
	}
	return nil
}

// Revert releases one redeemed use, clamped at zero.
func (s *DiscountStore) Revert(ctx context.Context, discountID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE discounts
		SET used_count = GREATEST(used_count - 1, 0)
		WHERE id = $1
	`, discountID)
	return err
}

func scanDiscount(row orderRow) (*Discount, error) {
	var (
		discount  Discount
		dType     string
		startsAt  pgtype.Timestamptz
		endsAt    pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(
		&discount.ID, &discount.Code, &dType, &discount.Value,
		&discount.MaxDiscountAmount, &discount.MinOrderValue,
		&discount.UsageLimit, &discount.UserUsageLimit, &discount.UsedCount,
		&startsAt, &endsAt, &discount.Active, &createdAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, err
	}

	discount.Type = models.DiscountType(dType)
	assignTime(&discount.StartsAt, startsAt)
	assignTime(&discount.EndsAt, endsAt)
	discount.CreatedAt = createdAt.Time
	return &discount, nil
}
