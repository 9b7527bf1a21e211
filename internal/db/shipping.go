package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrShippingRecordNotFound = errors.New("shipping record not found")

type ShippingStore struct {
	pool *pgxpool.Pool
}

func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

// CreateOnce inserts the shipping record unless the order already has one.
// The unique order_id constraint makes the create idempotent under
// concurrent executions of the same intent.
func (s *ShippingStore) CreateOnce(ctx context.Context, record *ShippingRecord) (bool, error) {
	destinationJSON, err := json.Marshal(record.Destination)
	if err != nil {
		return false, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO shipping_records (order_id, provider_order_code, destination, fee)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, created_at
	`, record.OrderID, record.ProviderOrderCode, destinationJSON, record.Fee)

	var createdAt pgtype.Timestamptz
	err = row.Scan(&record.ID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	record.CreatedAt = createdAt.Time
	return true, nil
}

func (s *ShippingStore) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM shipping_records WHERE order_id = $1)
	`, orderID).Scan(&exists)
	return exists, err
}

func (s *ShippingStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*ShippingRecord, error) {
	var (
		record      ShippingRecord
		destination []byte
		createdAt   pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, provider_order_code, destination, fee, created_at
		FROM shipping_records WHERE order_id = $1
	`, orderID).Scan(&record.ID, &record.OrderID, &record.ProviderOrderCode, &destination, &record.Fee, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShippingRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Time
	if destination != nil {
		if err := json.Unmarshal(destination, &record.Destination); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
