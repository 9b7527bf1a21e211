package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/logging"
)

var (
	ErrDiscountInactive     = errors.New("discount is not active")
	ErrDiscountOutOfWindow  = errors.New("discount is outside its validity window")
	ErrOrderBelowMinimum    = errors.New("order total is below the discount minimum")
	ErrDiscountLimitReached = errors.New("discount usage limit reached")
	ErrUserLimitReached     = errors.New("per-user discount limit reached")
)

// DiscountGuard validates discount eligibility at order creation. Reservation
// never touches usedCount; redemption happens at settlement in the executor,
// where a second limit check runs in SQL.
type DiscountGuard struct {
	discountStore DiscountStore
	orderStore    OrderStore
	logger        *slog.Logger
	now           func() time.Time
}

func NewDiscountGuard(discountStore DiscountStore, orderStore OrderStore, logger *slog.Logger) *DiscountGuard {
	return &DiscountGuard{
		discountStore: discountStore,
		orderStore:    orderStore,
		logger:        logger,
		now:           time.Now,
	}
}

// Reservation is the validated outcome of a reserve call.
type Reservation struct {
	Discount *db.Discount
	Amount   int64
}

// Reserve validates, in order: existence and active flag, validity window,
// minimum order value, global usage limit, per-user usage limit. Returns the
// computed discount amount without consuming anything.
func (g *DiscountGuard) Reserve(ctx context.Context, code string, userID uuid.UUID, orderSubtotal int64) (*Reservation, error) {
	discount, err := g.discountStore.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !discount.Active {
		return nil, ErrDiscountInactive
	}
	if !discount.WithinWindow(g.now()) {
		return nil, ErrDiscountOutOfWindow
	}
	// The threshold applies to the merchandise subtotal: the order total is
	// not final until this discount is computed, and shipping does not count
	// toward eligibility.
	if orderSubtotal < discount.MinOrderValue {
		return nil, fmt.Errorf("%w: minimum %d", ErrOrderBelowMinimum, discount.MinOrderValue)
	}
	if discount.UsageLimit > 0 && discount.UsedCount >= discount.UsageLimit {
		return nil, ErrDiscountLimitReached
	}
	if discount.UserUsageLimit > 0 && userID != uuid.Nil {
		used, err := g.orderStore.CountSettledDiscountUses(ctx, userID, discount.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count prior uses: %w", err)
		}
		if used >= discount.UserUsageLimit {
			return nil, ErrUserLimitReached
		}
	}

	amount := discount.AmountFor(orderSubtotal)
	logging.FromContext(ctx, g.logger).Info("discount reserved", "discount_id", discount.ID, "code", discount.Code, "amount", amount)
	return &Reservation{Discount: discount, Amount: amount}, nil
}
