package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/services"
)

type checkoutRequest struct {
	UserID       string         `json:"user_id" validate:"omitempty,uuid"`
	ContactEmail string         `json:"contact_email" validate:"omitempty,email"`
	Subtotal     int64          `json:"subtotal" validate:"gte=0"`
	ShippingFee  int64          `json:"shipping_fee" validate:"gte=0"`
	DiscountCode string         `json:"discount_code"`
	Method       string         `json:"method" validate:"required,oneof=vnpay momo cod"`
	Destination  map[string]any `json:"destination" validate:"required"`
}

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	OrderCode   string `json:"order_code"`
	Total       int64  `json:"total"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Checkout receives the finalized draft from the cart collaborator and opens
// the payment leg.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBodyBytes)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var userID uuid.UUID
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		userID = parsed
	}

	result, err := h.checkoutService.Submit(ctx, services.CheckoutInput{
		UserID:       userID,
		ContactEmail: req.ContactEmail,
		Subtotal:     req.Subtotal,
		ShippingFee:  req.ShippingFee,
		DiscountCode: req.DiscountCode,
		Method:       db.PaymentMethod(req.Method),
		Destination:  req.Destination,
		ClientIP:     clientIP(r),
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	logger.Info("checkout accepted", "order_id", result.Order.ID, "method", req.Method)
	h.writeJSON(w, r, http.StatusCreated, checkoutResponse{
		OrderID:     result.Order.ID.String(),
		OrderCode:   result.Order.Code,
		Total:       result.Order.Total,
		RedirectURL: result.RedirectURL,
	})
}

func (h *Handlers) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrGuestEmailRequired),
		errors.Is(err, services.ErrTotalsInconsistent):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrMethodNotAvailable):
		http.Error(w, "Payment method not available", http.StatusUnprocessableEntity)
	case errors.Is(err, db.ErrDiscountNotFound),
		errors.Is(err, services.ErrDiscountInactive),
		errors.Is(err, services.ErrDiscountOutOfWindow),
		errors.Is(err, services.ErrOrderBelowMinimum),
		errors.Is(err, services.ErrDiscountLimitReached),
		errors.Is(err, services.ErrUserLimitReached):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.loggerFromContext(r.Context()).Error("checkout failed", "error", err)
		http.Error(w, "Checkout failed", http.StatusInternalServerError)
	}
}
