package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/ghn"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/observability"
	"github.com/vietcartapp/vietcart/internal/queue"
)

const shippingCallTimeout = 15 * time.Second

// Executor applies side-effect intents. Every intent is idempotent at the
// storage layer; a failed intent is published to the retry queue and never
// rolls back the settlement that produced it.
type Executor struct {
	shippingStore ShippingStore
	discountStore DiscountStore
	wallet        *WalletService
	shipping      ShippingClient
	emailSender   OrderEmailSender
	retryQueue    queue.Provider
	logger        *slog.Logger
}

func NewExecutor(shippingStore ShippingStore, discountStore DiscountStore, wallet *WalletService, shipping ShippingClient, emailSender OrderEmailSender, retryQueue queue.Provider, logger *slog.Logger) *Executor {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	return &Executor{
		shippingStore: shippingStore,
		discountStore: discountStore,
		wallet:        wallet,
		shipping:      shipping,
		emailSender:   emailSender,
		retryQueue:    retryQueue,
		logger:        logger,
	}
}

func (e *Executor) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, e.logger)
}

// Execute runs each intent in order. Failures are logged, counted, and
// queued for redelivery; execution always continues to the next intent.
func (e *Executor) Execute(ctx context.Context, intents []Intent) {
	if len(intents) == 0 {
		return
	}

	span := sentry.StartSpan(
		ctx,
		"service.executor",
		sentry.WithOpName("service.executor"),
		sentry.WithDescription("Execute"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := e.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	for _, intent := range intents {
		if err := e.apply(ctx, intent); err != nil {
			meter.Count("intent.failed", 1, sentry.WithAttributes(
				attribute.String("kind", string(intent.Kind)),
			))
			logger.Error("intent failed, queued for retry", "kind", intent.Kind, "order_id", intent.Order.ID, "error", err)
			e.enqueue(ctx, intent, logger)
			continue
		}
		meter.Count("intent.applied", 1, sentry.WithAttributes(
			attribute.String("kind", string(intent.Kind)),
		))
	}
}

func (e *Executor) apply(ctx context.Context, intent Intent) error {
	switch intent.Kind {
	case IntentCreateShipping:
		return e.createShipping(ctx, intent.Order)
	case IntentRedeemDiscount:
		return e.redeemDiscount(ctx, intent.Order)
	case IntentSendPaymentEmail:
		return e.emailSender.SendPaymentConfirmation(ctx, intent.Order)
	case IntentCreditReward:
		return e.wallet.CreditReward(ctx, intent.Order)
	case IntentCreditRefund:
		return e.creditRefund(ctx, intent.Order, intent.Amount)
	case IntentRevertDiscount:
		return e.revertDiscount(ctx, intent.Order)
	case IntentDeductReward:
		return e.wallet.DeductReward(ctx, intent.Order)
	case IntentManualRefund:
		return e.manualRefund(ctx, intent.Order, intent.Amount)
	default:
		return fmt.Errorf("unknown intent kind: %s", intent.Kind)
	}
}

func (e *Executor) enqueue(ctx context.Context, intent Intent, logger *slog.Logger) {
	task := queue.Task{
		Kind:      string(intent.Kind),
		OrderID:   intent.Order.ID.String(),
		CreatedAt: time.Now(),
	}
	if err := e.retryQueue.Publish(ctx, task); err != nil {
		logger.Error("failed to publish retry task", "kind", intent.Kind, "order_id", intent.Order.ID, "error", err)
	}
}

func (e *Executor) createShipping(ctx context.Context, order *db.Order) error {
	exists, err := e.shippingStore.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to check shipping record: %w", err)
	}
	if exists {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, shippingCallTimeout)
	defer cancel()

	req := shippingRequestFromOrder(order)
	result, err := e.shipping.CreateOrder(callCtx, req)
	if err != nil {
		if errors.Is(err, ghn.ErrOutcomeUnknown) {
			return fmt.Errorf("shipping creation outcome unknown, retry later: %w", err)
		}
		return fmt.Errorf("failed to create shipping order: %w", err)
	}

	created, err := e.shippingStore.CreateOnce(ctx, &db.ShippingRecord{
		OrderID:           order.ID,
		ProviderOrderCode: result.OrderCode,
		Destination:       order.Destination,
		Fee:               order.ShippingFee,
	})
	if err != nil {
		return fmt.Errorf("failed to record shipping order: %w", err)
	}
	if !created {
		// A concurrent executor won the race; the provider deduplicates on
		// the client order code, so nothing was double-created.
		e.loggerFromContext(ctx).Info("shipping record already present", "order_id", order.ID)
	}
	return nil
}

func (e *Executor) redeemDiscount(ctx context.Context, order *db.Order) error {
	if !order.HasDiscount() {
		return nil
	}
	if err := e.discountStore.Redeem(ctx, order.DiscountID); err != nil {
		if errors.Is(err, db.ErrDiscountExhausted) {
			// Exhausted between reservation and settlement. The order keeps
			// its computed discount; only the counter increment is skipped.
			e.loggerFromContext(ctx).Warn("discount exhausted at settlement, usage not counted", "order_id", order.ID, "discount_id", order.DiscountID)
			return nil
		}
		return fmt.Errorf("failed to redeem discount: %w", err)
	}
	return nil
}

func (e *Executor) revertDiscount(ctx context.Context, order *db.Order) error {
	if !order.HasDiscount() {
		return nil
	}
	if err := e.discountStore.Revert(ctx, order.DiscountID); err != nil {
		return fmt.Errorf("failed to revert discount: %w", err)
	}
	return nil
}

func (e *Executor) creditRefund(ctx context.Context, order *db.Order, amount int64) error {
	if order.IsGuest() {
		// Guests have no wallet; refunds go through the manual channel.
		return e.manualRefund(ctx, order, amount)
	}
	if amount <= 0 {
		amount = order.Total
	}
	if err := e.wallet.CreditRefund(ctx, order, amount); err != nil {
		return err
	}
	if err := e.emailSender.SendRefundCredited(ctx, order, amount); err != nil {
		e.loggerFromContext(ctx).Warn("failed to send refund email", "order_id", order.ID, "error", err)
	}
	return nil
}

// manualRefund records a back-office follow-up for refunds that cannot be
// credited to a wallet (COD payments, guest orders).
func (e *Executor) manualRefund(ctx context.Context, order *db.Order, amount int64) error {
	if amount <= 0 {
		amount = order.Total
	}
	e.loggerFromContext(ctx).Warn("manual refund required", "order_id", order.ID, "amount", amount, "method", order.Method)
	task := queue.Task{
		Kind:      string(IntentManualRefund),
		OrderID:   order.ID.String(),
		CreatedAt: time.Now(),
	}
	if err := e.retryQueue.Publish(ctx, task); err != nil {
		return fmt.Errorf("failed to queue manual refund marker: %w", err)
	}
	return nil
}

func shippingRequestFromOrder(order *db.Order) ghn.CreateOrderRequest {
	req := ghn.CreateOrderRequest{
		CODAmount:   0,
		Weight:      500,
		ServiceID:   0,
		PaymentType: 1,
		ClientCode:  order.Code,
	}
	if order.Method == db.MethodCOD {
		req.CODAmount = order.Total
	}
	if name, ok := order.Destination["name"].(string); ok {
		req.ToName = name
	}
	if phone, ok := order.Destination["phone"].(string); ok {
		req.ToPhone = phone
	}
	if address, ok := order.Destination["address"].(string); ok {
		req.ToAddress = address
	}
	if ward, ok := order.Destination["ward_code"].(string); ok {
		req.ToWard = ward
	}
	if district, ok := order.Destination["district_id"].(float64); ok {
		req.ToDistrictID = int(district)
	}
	return req
}
