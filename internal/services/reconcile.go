package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/vietcartapp/vietcart/internal/cache"
	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/models"
	"github.com/vietcartapp/vietcart/internal/observability"
)

// ErrSignatureInvalid marks a notification whose recomputed HMAC does not
// match the supplied one. No state change happens for these.
var ErrSignatureInvalid = errors.New("notification signature invalid")

// Source says which inbound path delivered a notification. The IPN is
// authoritative; the browser return is advisory.
type Source string

const (
	SourceIPN    Source = "ipn"
	SourceReturn Source = "return"
)

const notificationDedupTTL = 24 * time.Hour

type ReconcileService struct {
	paymentStore PaymentStore
	orderStore   OrderStore
	dedup        cache.Provider
	logger       *slog.Logger

	// allowUnverifiedReturn lets a success browser return flip the order's
	// visible payment status without signature verification. Development
	// escape hatch only; it never emits side-effect intents.
	allowUnverifiedReturn bool
}

func NewReconcileService(paymentStore PaymentStore, orderStore OrderStore, dedup cache.Provider, allowUnverifiedReturn bool, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		paymentStore:          paymentStore,
		orderStore:            orderStore,
		dedup:                 dedup,
		allowUnverifiedReturn: allowUnverifiedReturn,
		logger:                logger,
	}
}

func (s *ReconcileService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Reconcile drives a gateway notification through the idempotent settlement
// state machine and returns the side-effect intents to execute. Duplicate
// deliveries and terminal conflicts return an empty intent list with no
// error; the provider gets its normal ack and stops retrying.
func (s *ReconcileService) Reconcile(ctx context.Context, n *gateway.Notification, source Source) ([]Intent, error) {
	span := sentry.StartSpan(
		ctx,
		"service.reconcile",
		sentry.WithOpName("service.reconcile"),
		sentry.WithDescription("Reconcile"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("provider", n.Provider, "txn_ref", n.TxnRef, "source", source)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(
		attribute.String("provider", string(n.Provider)),
		attribute.String("source", string(source)),
	)
	meter.Count("reconcile.received", 1)

	if !n.SignatureValid {
		if s.allowUnverifiedReturn && source == SourceReturn && n.Success {
			return s.provisional(ctx, n, logger)
		}
		meter.Count("reconcile.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "signature_invalid"),
		))
		logger.Warn("rejecting notification with invalid signature")
		return nil, ErrSignatureInvalid
	}

	// Fast-path dedup. The key is only written after a successful terminal
	// transition, so a hit always means an already-settled transaction. The
	// database row lock below remains the authoritative gate.
	dedupKey := cache.NotificationKey(string(n.Provider), n.TxnRef)
	if _, err := s.dedup.Get(ctx, dedupKey); err == nil {
		meter.Count("reconcile.duplicate", 1)
		logger.Info("duplicate notification, already settled")
		return nil, nil
	}

	outcome := models.GatewayPaymentFailed
	orderOutcome := db.PaymentFailed
	if n.Success {
		outcome = models.GatewayPaymentPaid
		orderOutcome = db.PaymentPaid
	} else if n.Cancelled {
		orderOutcome = db.PaymentCancelled
	}

	result, err := s.paymentStore.Settle(ctx, n.Provider, n.TxnRef, n.Amount, n.ResultCode, outcome, orderOutcome)
	if err != nil {
		reason := "settle_failed"
		switch {
		case errors.Is(err, db.ErrUnknownTransaction):
			reason = "unknown_transaction"
			logger.Warn("notification for unknown transaction")
		case errors.Is(err, db.ErrAmountMismatch):
			reason = "amount_mismatch"
			logger.Warn("notification amount does not match signed amount", "amount", n.Amount)
		}
		meter.Count("reconcile.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
		return nil, err
	}

	if !result.Applied {
		meter.Count("reconcile.duplicate", 1)
		logger.Info("notification hit terminal payment record", "status", result.Payment.Status)
		return nil, nil
	}

	if err := s.dedup.Set(ctx, dedupKey, string(result.Payment.Status), notificationDedupTTL); err != nil {
		logger.Warn("failed to record dedup marker", "error", err)
	}

	if !n.Success {
		meter.Count("reconcile.settled", 1, sentry.WithAttributes(
			attribute.String("outcome", string(orderOutcome)),
		))
		logger.Info("payment settled as failed", "result_code", n.ResultCode, "cancelled", n.Cancelled)
		return nil, nil
	}

	meter.Count("reconcile.settled", 1, sentry.WithAttributes(
		attribute.String("outcome", "paid"),
	))
	logger.Info("payment settled as paid", "order_id", result.Order.ID, "amount", n.Amount)

	intents := []Intent{
		{Kind: IntentCreateShipping, Order: result.Order},
	}
	if result.Order.HasDiscount() {
		intents = append(intents, Intent{Kind: IntentRedeemDiscount, Order: result.Order})
	}
	intents = append(intents, Intent{Kind: IntentSendPaymentEmail, Order: result.Order})
	return intents, nil
}

// provisional is the fenced development path: flip the order's visible
// payment status so a same-session return is not stuck on "pending", but
// leave the gateway payment record untouched for the verified IPN.
func (s *ReconcileService) provisional(ctx context.Context, n *gateway.Notification, logger *slog.Logger) ([]Intent, error) {
	meter := observability.MeterFromContext(ctx)
	meter.Count("reconcile.provisional", 1)

	payment, err := s.paymentStore.GetByTxnRef(ctx, n.Provider, n.TxnRef)
	if err != nil {
		return nil, err
	}
	if payment.IsTerminal() {
		logger.Info("provisional return for already-settled payment")
		return nil, nil
	}
	if err := s.orderStore.MarkProvisionallyPaid(ctx, payment.OrderID); err != nil {
		return nil, fmt.Errorf("failed to mark order provisionally paid: %w", err)
	}
	if err := s.dedup.Set(ctx, cache.ProvisionalKey(payment.OrderID.String()), n.ResultCode, notificationDedupTTL); err != nil {
		logger.Warn("failed to record provisional marker", "error", err)
	}
	logger.Warn("order marked provisionally paid from unverified return; awaiting verified notification", "order_id", payment.OrderID)
	return nil, nil
}
