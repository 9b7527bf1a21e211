package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/services"
)

// vnpayAck is the documented IPN acknowledgement body. VNPAY retries until it
// sees RspCode 00, so anything terminal must ack 00 even when it was a no-op.
type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPayIPN handles the authoritative server-to-server callback. The response
// follows the provider contract and never leaks internals.
func (h *Handlers) VNPayIPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	adapter, ok := h.adapters["vnpay"]
	if !ok {
		logger.Error("vnpay adapter not configured")
		h.writeJSON(w, r, http.StatusOK, vnpayAck{RspCode: "99", Message: "Unknown error"})
		return
	}

	notification, err := adapter.ParseNotification(r)
	if err != nil {
		logger.Warn("unparseable vnpay notification", "error", err)
		h.writeJSON(w, r, http.StatusOK, vnpayAck{RspCode: "99", Message: "Unknown error"})
		return
	}

	intents, err := h.reconcileService.Reconcile(ctx, notification, services.SourceIPN)
	if err != nil {
		h.writeJSON(w, r, http.StatusOK, vnpayAckForError(err))
		return
	}

	h.executor.Execute(ctx, intents)
	h.writeJSON(w, r, http.StatusOK, vnpayAck{RspCode: "00", Message: "Confirm Success"})
}

func vnpayAckForError(err error) vnpayAck {
	switch {
	case errors.Is(err, services.ErrSignatureInvalid):
		return vnpayAck{RspCode: "97", Message: "Invalid Checksum"}
	case errors.Is(err, db.ErrUnknownTransaction):
		return vnpayAck{RspCode: "01", Message: "Order not Found"}
	case errors.Is(err, db.ErrAmountMismatch):
		return vnpayAck{RspCode: "04", Message: "Invalid Amount"}
	default:
		return vnpayAck{RspCode: "99", Message: "Unknown error"}
	}
}

// VNPayReturn handles the best-effort browser redirect. It reconciles the
// same way the IPN does and then sends the shopper to the order status page.
func (h *Handlers) VNPayReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	adapter, ok := h.adapters["vnpay"]
	if !ok {
		http.Error(w, "Payment provider not configured", http.StatusNotFound)
		return
	}

	notification, err := adapter.ParseNotification(r)
	if err != nil {
		logger.Warn("unparseable vnpay return", "error", err)
		h.redirectToOrderPage(w, r, "", "invalid")
		return
	}

	intents, err := h.reconcileService.Reconcile(ctx, notification, services.SourceReturn)
	if err != nil {
		h.redirectToOrderPage(w, r, notification.TxnRef, returnStatusForError(err))
		return
	}
	h.executor.Execute(ctx, intents)

	status := "failed"
	if notification.Success {
		status = "success"
	}
	h.redirectToOrderPage(w, r, notification.TxnRef, status)
}

// MoMoIPN handles the JSON callback. MoMo treats HTTP 204 as the ack.
func (h *Handlers) MoMoIPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBodyBytes)

	adapter, ok := h.adapters["momo"]
	if !ok {
		logger.Error("momo adapter not configured")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	notification, err := adapter.ParseNotification(r)
	if err != nil {
		logger.Warn("unparseable momo notification", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	intents, err := h.reconcileService.Reconcile(ctx, notification, services.SourceIPN)
	if err != nil {
		// Signature failures and unknown transactions are final: acking
		// stops the retry loop, logging keeps the evidence.
		if errors.Is(err, services.ErrSignatureInvalid) || errors.Is(err, db.ErrUnknownTransaction) || errors.Is(err, db.ErrAmountMismatch) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	h.executor.Execute(ctx, intents)
	w.WriteHeader(http.StatusNoContent)
}

// MoMoReturn handles the browser redirect, which carries the signed result
// fields in the query string.
func (h *Handlers) MoMoReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	adapter, ok := h.adapters["momo"]
	if !ok {
		http.Error(w, "Payment provider not configured", http.StatusNotFound)
		return
	}

	notification, err := adapter.ParseNotification(r)
	if err != nil {
		logger.Warn("unparseable momo return", "error", err)
		h.redirectToOrderPage(w, r, "", "invalid")
		return
	}

	intents, err := h.reconcileService.Reconcile(ctx, notification, services.SourceReturn)
	if err != nil {
		h.redirectToOrderPage(w, r, notification.TxnRef, returnStatusForError(err))
		return
	}
	h.executor.Execute(ctx, intents)

	status := "failed"
	if notification.Success {
		status = "success"
	}
	h.redirectToOrderPage(w, r, notification.TxnRef, status)
}

func returnStatusForError(err error) string {
	switch {
	case errors.Is(err, services.ErrSignatureInvalid):
		return "invalid"
	case errors.Is(err, db.ErrUnknownTransaction), errors.Is(err, db.ErrAmountMismatch):
		return "invalid"
	default:
		return "pending"
	}
}

func (h *Handlers) redirectToOrderPage(w http.ResponseWriter, r *http.Request, orderCode, status string) {
	target := fmt.Sprintf("%s/orders?payment=%s", h.config.BaseURL, status)
	if orderCode != "" {
		target = fmt.Sprintf("%s/orders/%s?payment=%s", h.config.BaseURL, orderCode, status)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
