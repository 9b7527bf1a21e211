package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/gatewayconf"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/observability"
)

var (
	ErrMethodNotAvailable = errors.New("payment method not available for this order")
	ErrGuestEmailRequired = errors.New("guest orders require a contact email")
	ErrTotalsInconsistent = errors.New("order totals do not add up")
)

// CheckoutInput is the finalized draft the cart collaborator posts. Pricing
// is already computed; this service validates, reserves the discount, and
// opens the payment leg.
type CheckoutInput struct {
	UserID       uuid.UUID
	ContactEmail string
	Subtotal     int64
	ShippingFee  int64
	DiscountCode string
	Method       db.PaymentMethod
	Destination  map[string]any
	ClientIP     string
}

type CheckoutResult struct {
	Order       *db.Order
	RedirectURL string // empty for COD
}

type CheckoutService struct {
	orderStore    OrderStore
	paymentStore  PaymentStore
	discountGuard *DiscountGuard
	adapters      map[db.PaymentMethod]gateway.Adapter
	policy        *gatewayconf.ProvidersConfig
	logger        *slog.Logger
	now           func() time.Time
}

func NewCheckoutService(orderStore OrderStore, paymentStore PaymentStore, discountGuard *DiscountGuard, adapters map[db.PaymentMethod]gateway.Adapter, policy *gatewayconf.ProvidersConfig, logger *slog.Logger) *CheckoutService {
	if policy == nil {
		policy = gatewayconf.Default()
	}
	return &CheckoutService{
		orderStore:    orderStore,
		paymentStore:  paymentStore,
		discountGuard: discountGuard,
		adapters:      adapters,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Submit validates the draft, reserves the discount, writes the order (and
// the gateway payment record for gateway methods), and returns the provider
// redirect URL.
func (s *CheckoutService) Submit(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.submit",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("Submit"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("checkout.received", 1, sentry.WithAttributes(
		attribute.String("method", string(input.Method)),
	))

	if input.UserID == uuid.Nil && strings.TrimSpace(input.ContactEmail) == "" {
		return nil, ErrGuestEmailRequired
	}
	if input.Subtotal < 0 || input.ShippingFee < 0 {
		return nil, ErrTotalsInconsistent
	}

	var discountID uuid.UUID
	var discountAmount int64
	if input.DiscountCode != "" {
		reservation, err := s.discountGuard.Reserve(ctx, input.DiscountCode, input.UserID, input.Subtotal)
		if err != nil {
			return nil, err
		}
		discountID = reservation.Discount.ID
		discountAmount = reservation.Amount
	}

	total := input.Subtotal - discountAmount + input.ShippingFee
	if total < 0 {
		return nil, ErrTotalsInconsistent
	}
	if !s.policy.Allows(string(input.Method), total) {
		return nil, ErrMethodNotAvailable
	}

	order := &db.Order{
		Code:          s.newOrderCode(),
		UserID:        input.UserID,
		ContactEmail:  input.ContactEmail,
		Subtotal:      input.Subtotal,
		ShippingFee:   input.ShippingFee,
		TotalDiscount: discountAmount,
		Total:         total,
		DiscountID:    discountID,
		Method:        input.Method,
		Status:        db.OrderPending,
		PaymentStatus: db.PaymentPending,
		Destination:   input.Destination,
	}
	if err := s.orderStore.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if input.Method == db.MethodCOD {
		logger.Info("cod order created", "order_id", order.ID, "total", total)
		return &CheckoutResult{Order: order}, nil
	}

	adapter, ok := s.adapters[input.Method]
	if !ok {
		return nil, ErrMethodNotAvailable
	}

	request, err := adapter.BuildPaymentRequest(ctx, order, input.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}

	if err := s.paymentStore.Create(ctx, &db.GatewayPayment{
		OrderID:  order.ID,
		Provider: adapter.Provider(),
		TxnRef:   request.TxnRef,
		Amount:   order.Total,
	}); err != nil {
		return nil, fmt.Errorf("failed to create gateway payment: %w", err)
	}

	logger.Info("checkout opened", "order_id", order.ID, "provider", adapter.Provider(), "txn_ref", request.TxnRef, "total", total)
	return &CheckoutResult{Order: order, RedirectURL: request.RedirectURL}, nil
}

func (s *CheckoutService) newOrderCode() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("VC-%s-%s", s.now().Format("20060102"), suffix)
}
