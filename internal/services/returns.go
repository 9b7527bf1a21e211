package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/models"
	"github.com/vietcartapp/vietcart/internal/observability"
)

var (
	ErrOrderNotReturnable = errors.New("order is not in a returnable state")
	ErrInvalidDecision    = errors.New("decision must be accepted or rejected")
)

// ReturnService owns the return workflow: a customer opens at most one active
// request per order; an admin decides it exactly once. Acceptance drives the
// compensating intents through the executor.
type ReturnService struct {
	returnStore ReturnStore
	orderStore  OrderStore
	executor    *Executor
	logger      *slog.Logger
}

func NewReturnService(returnStore ReturnStore, orderStore OrderStore, executor *Executor, logger *slog.Logger) *ReturnService {
	return &ReturnService{
		returnStore: returnStore,
		orderStore:  orderStore,
		executor:    executor,
		logger:      logger,
	}
}

func (s *ReturnService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Create opens a return request for a delivered or completed order.
func (s *ReturnService) Create(ctx context.Context, orderID uuid.UUID, reason string) (*db.ReturnRequest, error) {
	order, err := s.orderStore.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != db.OrderDelivered && order.Status != db.OrderCompleted {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotReturnable, order.Status)
	}

	request := &db.ReturnRequest{
		OrderID: order.ID,
		Reason:  reason,
		Status:  models.ReturnPending,
	}
	if err := s.returnStore.CreateActive(ctx, request); err != nil {
		return nil, err
	}

	s.loggerFromContext(ctx).Info("return request created", "order_id", order.ID, "request_id", request.ID)
	return request, nil
}

// Process applies an admin decision. ACCEPTED moves the order to its returned
// terminal state and emits the compensating intents; REJECTED only records
// the decision. The store's pending-only guard makes the decision
// exactly-once under concurrent admins.
func (s *ReturnService) Process(ctx context.Context, requestID uuid.UUID, decision models.ReturnStatus, adminID uuid.UUID, note string) error {
	span := sentry.StartSpan(
		ctx,
		"service.returns.process",
		sentry.WithOpName("service.returns"),
		sentry.WithDescription("Process"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if decision != models.ReturnAccepted && decision != models.ReturnRejected {
		return ErrInvalidDecision
	}

	logger := s.loggerFromContext(ctx).With("request_id", requestID, "decision", decision)
	meter := observability.MeterFromContext(ctx)

	request, err := s.returnStore.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.returnStore.Decide(ctx, requestID, decision, adminID.String(), note); err != nil {
		return err
	}
	meter.Count("return.decided", 1, sentry.WithAttributes(
		attribute.String("decision", string(decision)),
	))

	if decision == models.ReturnRejected {
		logger.Info("return request rejected")
		return nil
	}

	order, err := s.orderStore.GetByID(ctx, request.OrderID)
	if err != nil {
		return err
	}

	wasCompleted := order.Status == db.OrderCompleted
	if err := s.orderStore.Transition(ctx, order.ID, order.Status, db.OrderReturned); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Warn("order already left returnable state", "order_id", order.ID, "status", order.Status)
			return err
		}
		return err
	}

	intents := s.compensatingIntents(order, wasCompleted)
	s.executor.Execute(ctx, intents)

	logger.Info("return accepted", "order_id", order.ID, "intents", len(intents))
	return nil
}

// compensatingIntents builds the monetary reversals for an accepted return:
// refund the payment (wallet credit for gateway-paid, manual marker for COD),
// claw back the completion reward, release the discount use.
func (s *ReturnService) compensatingIntents(order *db.Order, wasCompleted bool) []Intent {
	var intents []Intent

	if order.PaymentStatus == db.PaymentPaid {
		kind := IntentCreditRefund
		if order.Method == db.MethodCOD {
			kind = IntentManualRefund
		}
		intents = append(intents, Intent{Kind: kind, Order: order, Amount: order.Total})
	}
	if wasCompleted {
		intents = append(intents, Intent{Kind: IntentDeductReward, Order: order})
	}
	if order.HasDiscount() {
		intents = append(intents, Intent{Kind: IntentRevertDiscount, Order: order})
	}
	return intents
}
