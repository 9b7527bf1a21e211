// Package gateway normalizes the external payment providers behind one
// adapter interface. Each adapter builds signed payment-initiation requests
// and parses inbound notifications into a common Notification value, with
// amounts already converted to VND integers.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/vietcartapp/vietcart/internal/models"
)

var (
	ErrMissingCredentials = errors.New("gateway credentials are not configured")
	ErrMalformedPayload   = errors.New("malformed notification payload")
)

// Notification is the provider-agnostic view of a payment outcome message,
// whether it arrived on the async IPN path or the browser redirect.
type Notification struct {
	Provider       models.GatewayProvider
	TxnRef         string
	Amount         int64
	ResultCode     string
	SignatureValid bool

	// Success and Cancelled are derived from the provider's result code.
	Success   bool
	Cancelled bool

	Raw map[string]string
}

// PaymentRequest is the outcome of building a payment-initiation request.
type PaymentRequest struct {
	RedirectURL string
	TxnRef      string
}

// Adapter is implemented once per provider. ParseNotification must verify the
// provider signature before anything else trusts the payload; it never
// returns a Notification with state-changing fields unless the raw message
// decoded cleanly.
type Adapter interface {
	Provider() models.GatewayProvider
	BuildPaymentRequest(ctx context.Context, order *models.Order, clientIP string) (*PaymentRequest, error)
	ParseNotification(r *http.Request) (*Notification, error)
}

func signHMACSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func signHMACSHA256(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// equalSignature compares hex signatures in constant time, tolerating case
// differences in the provider's encoding.
func equalSignature(want, got string) bool {
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false
	}
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(wantBytes, gotBytes)
}
