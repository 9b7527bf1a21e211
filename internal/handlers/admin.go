package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vietcartapp/vietcart/internal/auth"
	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/models"
	"github.com/vietcartapp/vietcart/internal/services"
)

// AdminGetOrder returns the full order record for the back office.
func (h *Handlers) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	order, err := h.adminService.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.loggerFromContext(ctx).Error("failed to load order", "error", err)
		http.Error(w, "Failed to load order", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed shipping delivered completed cancelled"`
}

// AdminUpdateOrderStatus applies one fulfillment transition.
func (h *Handlers) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.adminService.UpdateStatus(ctx, orderID, db.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, db.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, db.ErrInvalidStatusTransition):
			http.Error(w, "Illegal status transition", http.StatusConflict)
		default:
			logger.Error("failed to update order status", "error", err)
			http.Error(w, "Failed to update order", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("admin updated order status", "order_id", orderID, "status", req.Status, "admin_id", auth.AdminID(ctx))
	h.writeJSON(w, r, http.StatusOK, order)
}

type returnDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accepted rejected"`
	Note     string `json:"note" validate:"max=2000"`
}

// AdminDecideReturn applies the accept/reject decision to a pending return
// request.
func (h *Handlers) AdminDecideReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	requestID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	var req returnDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	err = h.returnService.Process(ctx, requestID, models.ReturnStatus(req.Decision), auth.AdminID(ctx), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrReturnNotFound):
			http.Error(w, "Return request not found", http.StatusNotFound)
		case errors.Is(err, db.ErrReturnAlreadyDecided):
			http.Error(w, "Return request already decided", http.StatusConflict)
		case errors.Is(err, services.ErrInvalidDecision):
			http.Error(w, "Invalid decision", http.StatusBadRequest)
		default:
			logger.Error("failed to process return decision", "error", err)
			http.Error(w, "Failed to process decision", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("return request decided", "request_id", requestID, "decision", req.Decision, "admin_id", auth.AdminID(ctx))
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": req.Decision})
}

type walletStatementResponse struct {
	Wallet       *db.Wallet                 `json:"wallet"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

// AdminWalletStatement returns a wallet with its full ledger.
func (h *Handlers) AdminWalletStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	wallet, transactions, err := h.walletService.Statement(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrWalletNotFound) {
			http.Error(w, "Wallet not found", http.StatusNotFound)
			return
		}
		h.loggerFromContext(ctx).Error("failed to load wallet statement", "error", err)
		http.Error(w, "Failed to load wallet", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, walletStatementResponse{
		Wallet:       wallet,
		Transactions: transactions,
	})
}
