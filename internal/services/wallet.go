package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/models"
)

// WalletService owns the loyalty-and-refund ledger. All mutations run inside
// the store's wallet row lock; reward credits are exactly-once per order.
type WalletService struct {
	walletStore   WalletStore
	rewardRateBps int64
	logger        *slog.Logger
}

func NewWalletService(walletStore WalletStore, rewardRateBps int64, logger *slog.Logger) *WalletService {
	return &WalletService{
		walletStore:   walletStore,
		rewardRateBps: rewardRateBps,
		logger:        logger,
	}
}

func (s *WalletService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// RewardAmount computes the loyalty credit for an order total in basis
// points, e.g. 10 bps on 480,000 is 480.
func (s *WalletService) RewardAmount(orderTotal int64) int64 {
	return orderTotal * s.rewardRateBps / 10000
}

// CreditReward appends one REWARD entry when an order completes. A prior
// reward referencing the same order makes this a no-op.
func (s *WalletService) CreditReward(ctx context.Context, order *db.Order) error {
	if order.IsGuest() {
		return nil
	}
	amount := s.RewardAmount(order.Total)
	if amount <= 0 {
		return nil
	}

	result, err := s.walletStore.Apply(ctx, db.ApplyParams{
		UserID:       order.UserID,
		OrderID:      order.ID,
		Type:         models.WalletTxReward,
		Amount:       amount,
		Note:         fmt.Sprintf("reward for order %s", order.Code),
		OncePerOrder: true,
	})
	if err != nil {
		return fmt.Errorf("failed to credit reward: %w", err)
	}
	if !result.Applied {
		s.loggerFromContext(ctx).Info("reward already credited", "order_id", order.ID)
		return nil
	}
	s.loggerFromContext(ctx).Info("reward credited", "order_id", order.ID, "amount", amount)
	return nil
}

// CreditRefund appends a REFUND entry for a cancelled or returned paid order.
func (s *WalletService) CreditRefund(ctx context.Context, order *db.Order, amount int64) error {
	if order.IsGuest() {
		return fmt.Errorf("guest orders have no wallet to refund")
	}
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive")
	}

	result, err := s.walletStore.Apply(ctx, db.ApplyParams{
		UserID:       order.UserID,
		OrderID:      order.ID,
		Type:         models.WalletTxRefund,
		Amount:       amount,
		Note:         fmt.Sprintf("refund for order %s", order.Code),
		OncePerOrder: true,
	})
	if err != nil {
		return fmt.Errorf("failed to credit refund: %w", err)
	}
	if !result.Applied {
		s.loggerFromContext(ctx).Info("refund already credited", "order_id", order.ID)
		return nil
	}
	s.loggerFromContext(ctx).Info("refund credited", "order_id", order.ID, "amount", amount)
	return nil
}

// DeductReward claws back the reward granted for an order that is being
// reversed. The deduction clamps at the current balance; a shortfall is
// logged, never an error.
func (s *WalletService) DeductReward(ctx context.Context, order *db.Order) error {
	if order.IsGuest() {
		return nil
	}
	amount := s.RewardAmount(order.Total)
	if amount <= 0 {
		return nil
	}

	result, err := s.walletStore.Apply(ctx, db.ApplyParams{
		UserID:         order.UserID,
		OrderID:        order.ID,
		Type:           models.WalletTxDeduction,
		Amount:         -amount,
		Note:           fmt.Sprintf("reward reversal for order %s", order.Code),
		ClampToBalance: true,
		OncePerOrder:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to deduct reward: %w", err)
	}
	if result.Shortfall > 0 {
		s.loggerFromContext(ctx).Warn("reward deduction clamped by balance", "order_id", order.ID, "shortfall", result.Shortfall)
	}
	return nil
}

// Statement returns a wallet and its full ledger for the admin surface.
func (s *WalletService) Statement(ctx context.Context, userID uuid.UUID) (*db.Wallet, []models.WalletTransaction, error) {
	wallet, err := s.walletStore.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := s.walletStore.ListTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, nil, err
	}
	return wallet, transactions, nil
}
