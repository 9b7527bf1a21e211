package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/services"
)

type createReturnRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required,max=2000"`
}

// CreateReturn opens a return request for a delivered or completed order.
func (h *Handlers) CreateReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBodyBytes)

	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	request, err := h.returnService.Create(ctx, orderID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, services.ErrOrderNotReturnable):
			http.Error(w, "Order is not returnable", http.StatusConflict)
		case errors.Is(err, db.ErrActiveReturnExists):
			http.Error(w, "Order already has an active return request", http.StatusConflict)
		default:
			h.loggerFromContext(ctx).Error("failed to create return request", "error", err)
			http.Error(w, "Failed to create return request", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, map[string]string{
		"request_id": request.ID.String(),
		"status":     string(request.Status),
	})
}
