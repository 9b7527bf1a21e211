package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/observability"
)

// AdminOrderService drives the fulfillment side of the order state machine.
// Payment status belongs to reconciliation; this service only moves
// orderStatus and fans out the lifecycle side effects.
type AdminOrderService struct {
	orderStore    OrderStore
	shippingStore ShippingStore
	executor      *Executor
	emailSender   OrderEmailSender
	logger        *slog.Logger
}

func NewAdminOrderService(orderStore OrderStore, shippingStore ShippingStore, executor *Executor, emailSender OrderEmailSender, logger *slog.Logger) *AdminOrderService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	return &AdminOrderService{
		orderStore:    orderStore,
		shippingStore: shippingStore,
		executor:      executor,
		emailSender:   emailSender,
		logger:        logger,
	}
}

func (s *AdminOrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *AdminOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	return s.orderStore.GetByID(ctx, orderID)
}

// UpdateStatus applies one fulfillment transition and its side effects:
// CONFIRMED on a COD order opens shipping, SHIPPING notifies the customer,
// DELIVERED marks a COD order paid, COMPLETED credits the loyalty reward,
// CANCELLED on a paid order refunds and releases the discount.
func (s *AdminOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to db.OrderStatus) (*db.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.admin.update_order_status",
		sentry.WithOpName("service.admin"),
		sentry.WithDescription("UpdateStatus"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_id", orderID, "to", to)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orderStore.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status

	if err := s.orderStore.Transition(ctx, orderID, from, to); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Warn("rejected status transition", "from", from, "error", err)
		}
		return nil, err
	}
	order.Status = to

	meter.Count("order.transition", 1, sentry.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	logger.Info("order status updated", "from", from)

	s.executor.Execute(ctx, s.lifecycleIntents(ctx, order, logger))
	return order, nil
}

func (s *AdminOrderService) lifecycleIntents(ctx context.Context, order *db.Order, logger *slog.Logger) []Intent {
	switch order.Status {
	case db.OrderConfirmed:
		// Gateway-paid orders get their shipping intent at settlement; COD
		// ships on confirmation.
		if order.Method == db.MethodCOD {
			return []Intent{{Kind: IntentCreateShipping, Order: order}}
		}

	case db.OrderShipping:
		trackingCode := ""
		if record, err := s.shippingStore.GetByOrderID(ctx, order.ID); err == nil && record != nil {
			trackingCode = record.ProviderOrderCode
		}
		if err := s.emailSender.SendOrderShipped(ctx, order, trackingCode); err != nil {
			logger.Warn("failed to send shipped email", "error", err)
		}

	case db.OrderDelivered:
		// The courier collects cash at the door, so delivery is the moment a
		// COD order becomes paid. Gateway orders were settled by the IPN.
		if order.Method == db.MethodCOD {
			if err := s.orderStore.SetPaymentStatus(ctx, order.ID, db.PaymentPending, db.PaymentPaid); err != nil {
				if !errors.Is(err, db.ErrInvalidStatusTransition) {
					logger.Warn("failed to mark cod order paid", "error", err)
				}
			} else {
				order.PaymentStatus = db.PaymentPaid
			}
		}

	case db.OrderCompleted:
		return []Intent{{Kind: IntentCreditReward, Order: order}}

	case db.OrderCancelled:
		if order.PaymentStatus == db.PaymentPaid {
			intents := []Intent{{Kind: IntentCreditRefund, Order: order, Amount: order.Total}}
			if order.HasDiscount() {
				intents = append(intents, Intent{Kind: IntentRevertDiscount, Order: order})
			}
			return intents
		}
		if err := s.orderStore.SetPaymentStatus(ctx, order.ID, db.PaymentPending, db.PaymentCancelled); err != nil {
			if !errors.Is(err, db.ErrInvalidStatusTransition) {
				logger.Warn("failed to cancel pending payment", "error", err)
			}
		}
	}
	return nil
}
