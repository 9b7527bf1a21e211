package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietcartapp/vietcart/internal/models"
)

var (
	ErrReturnNotFound       = errors.New("return request not found")
	ErrActiveReturnExists   = errors.New("order already has an active return request")
	ErrReturnAlreadyDecided = errors.New("return request already decided")
)

type ReturnStore struct {
	pool *pgxpool.Pool
}

func NewReturnStore(pool *pgxpool.Pool) *ReturnStore {
	return &ReturnStore{pool: pool}
}

// CreateActive inserts a pending return request unless one is already open
// for the order. The existence check runs in the same transaction as the
// insert so concurrent creates cannot both pass.
func (s *ReturnStore) CreateActive(ctx context.Context, request *ReturnRequest) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin return transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM return_requests
			WHERE order_id = $1 AND status = $2
		)
	`, request.OrderID, string(models.ReturnPending)).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrActiveReturnExists
	}

	var createdAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		INSERT INTO return_requests (order_id, reason, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, request.OrderID, request.Reason, string(models.ReturnPending)).Scan(&request.ID, &createdAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	request.Status = models.ReturnPending
	request.CreatedAt = createdAt.Time
	return nil
}

func (s *ReturnStore) GetByID(ctx context.Context, requestID uuid.UUID) (*ReturnRequest, error) {
	var (
		request   ReturnRequest
		status    string
		decidedBy pgtype.Text
		note      pgtype.Text
		createdAt pgtype.Timestamptz
		decidedAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, reason, status, decided_by, decision_note, created_at, decided_at
		FROM return_requests WHERE id = $1
	`, requestID).Scan(&request.ID, &request.OrderID, &request.Reason, &status, &decidedBy, &note, &createdAt, &decidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReturnNotFound
	}
	if err != nil {
		return nil, err
	}
	request.Status = models.ReturnStatus(status)
	if decidedBy.Valid {
		request.DecidedBy = decidedBy.String
	}
	if note.Valid {
		request.DecisionNote = note.String
	}
	request.CreatedAt = createdAt.Time
	assignTime(&request.DecidedAt, decidedAt)
	return &request, nil
}

// Decide applies the admin decision exactly once; the pending-status guard
// makes a second decision attempt a no-op error.
func (s *ReturnStore) Decide(ctx context.Context, requestID uuid.UUID, decision models.ReturnStatus, adminID, note string) error {
	if decision != models.ReturnAccepted && decision != models.ReturnRejected {
		return fmt.Errorf("decision must be accepted or rejected, got %s", decision)
	}

	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE return_requests
		SET status = $1, decided_by = $2, decision_note = $3, decided_at = NOW()
		WHERE id = $4 AND status = $5
	`, string(decision), adminID, note, requestID, string(models.ReturnPending))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReturnAlreadyDecided
	}
	return nil
}
