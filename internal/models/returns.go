package models

import (
	"time"

	"github.com/google/uuid"
)

type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnAccepted ReturnStatus = "accepted"
	ReturnRejected ReturnStatus = "rejected"
)

// ReturnRequest is the customer-initiated return for an order. At most one
// active (pending) request exists per order; the decision is applied exactly
// once.
type ReturnRequest struct {
	ID           uuid.UUID    `json:"id"`
	OrderID      uuid.UUID    `json:"order_id"`
	Reason       string       `json:"reason"`
	Status       ReturnStatus `json:"status"`
	DecidedBy    string       `json:"decided_by"`
	DecisionNote string       `json:"decision_note"`
	CreatedAt    time.Time    `json:"created_at"`
	DecidedAt    time.Time    `json:"decided_at"`
}

func (r *ReturnRequest) IsDecided() bool {
	if r == nil {
		return false
	}
	return r.Status == ReturnAccepted || r.Status == ReturnRejected
}
