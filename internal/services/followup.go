package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/queue"
)

// FollowupWorker drains the retry queue and re-executes failed intents. The
// intents' storage-level idempotency makes redelivery safe; a still-failing
// intent is left on the queue for the next attempt.
type FollowupWorker struct {
	orderStore OrderStore
	executor   *Executor
	retryQueue queue.Provider
	logger     *slog.Logger
}

func NewFollowupWorker(orderStore OrderStore, executor *Executor, retryQueue queue.Provider, logger *slog.Logger) *FollowupWorker {
	return &FollowupWorker{
		orderStore: orderStore,
		executor:   executor,
		retryQueue: retryQueue,
		logger:     logger,
	}
}

// Run consumes tasks until ctx is cancelled.
func (w *FollowupWorker) Run(ctx context.Context) error {
	w.logger.Info("followup worker started")
	return w.retryQueue.Consume(ctx, w.handle)
}

func (w *FollowupWorker) handle(ctx context.Context, task queue.Task) error {
	kind := IntentKind(task.Kind)
	if kind == IntentManualRefund {
		// Manual refunds are worked off by the back office; the queue entry
		// is the marker itself, not something to re-execute.
		w.logger.Info("manual refund pending back-office action", "order_id", task.OrderID)
		return nil
	}

	orderID, err := uuid.Parse(task.OrderID)
	if err != nil {
		w.logger.Error("dropping follow-up with bad order id", "order_id", task.OrderID)
		return nil
	}

	order, err := w.orderStore.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order for follow-up: %w", err)
	}

	if err := w.executor.apply(ctx, Intent{Kind: kind, Order: order}); err != nil {
		w.logger.Warn("follow-up attempt failed", "kind", kind, "order_id", orderID, "attempt", task.Attempt, "error", err)
		return err
	}

	w.logger.Info("follow-up applied", "kind", kind, "order_id", orderID, "attempt", task.Attempt)
	return nil
}
