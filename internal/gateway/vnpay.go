package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vietcartapp/vietcart/internal/models"
)

const (
	vnpayVersion     = "2.1.0"
	vnpayCommandPay  = "pay"
	vnpayCodeSuccess = "00"
	vnpayCodeCancel  = "24"
)

// VNPayAdapter implements the redirect-query provider. The canonical string
// is the lexicographically sorted, URL-encoded field set; the signature is
// HMAC-SHA512 over it, carried in vnp_SecureHash.
type VNPayAdapter struct {
	tmnCode    string
	hashSecret string
	payURL     string
	returnURL  string
	now        func() time.Time
}

func NewVNPayAdapter(tmnCode, hashSecret, payURL, returnURL string) *VNPayAdapter {
	return &VNPayAdapter{
		tmnCode:    tmnCode,
		hashSecret: hashSecret,
		payURL:     payURL,
		returnURL:  returnURL,
		now:        time.Now,
	}
}

func (a *VNPayAdapter) Provider() models.GatewayProvider {
	return models.ProviderVNPay
}

func (a *VNPayAdapter) BuildPaymentRequest(ctx context.Context, order *models.Order, clientIP string) (*PaymentRequest, error) {
	_ = ctx
	if a.tmnCode == "" || a.hashSecret == "" {
		return nil, ErrMissingCredentials
	}
	if order == nil || order.Code == "" {
		return nil, fmt.Errorf("order with a code is required")
	}

	txnRef := order.Code
	fields := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    vnpayCommandPay,
		"vnp_TmnCode":    a.tmnCode,
		"vnp_Amount":     strconv.FormatInt(order.Total*100, 10), // VNPAY carries amounts in minor units
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  "Thanh toan don hang " + order.Code,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  a.returnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": a.now().Format("20060102150405"),
	}

	canonical := vnpayCanonical(fields)
	signature := signHMACSHA512(a.hashSecret, canonical)

	redirectURL := a.payURL + "?" + canonical + "&vnp_SecureHash=" + signature
	return &PaymentRequest{RedirectURL: redirectURL, TxnRef: txnRef}, nil
}

// ParseNotification handles both the IPN and the browser return, which share
// the same query field set. Signature failure is reported in the Notification
// rather than as an error so callers can apply the reject-without-state-change
// policy and still log the raw payload.
func (a *VNPayAdapter) ParseNotification(r *http.Request) (*Notification, error) {
	values := r.URL.Query()

	raw := make(map[string]string, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}

	txnRef := raw["vnp_TxnRef"]
	if txnRef == "" {
		return nil, fmt.Errorf("%w: missing vnp_TxnRef", ErrMalformedPayload)
	}

	amountMinor, err := strconv.ParseInt(raw["vnp_Amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad vnp_Amount: %v", ErrMalformedPayload, err)
	}

	resultCode := raw["vnp_ResponseCode"]
	notification := &Notification{
		Provider:   models.ProviderVNPay,
		TxnRef:     txnRef,
		Amount:     amountMinor / 100,
		ResultCode: resultCode,
		Success:    resultCode == vnpayCodeSuccess,
		Cancelled:  resultCode == vnpayCodeCancel,
		Raw:        raw,
	}

	notification.SignatureValid = a.verify(raw)
	return notification, nil
}

func (a *VNPayAdapter) verify(raw map[string]string) bool {
	supplied := raw["vnp_SecureHash"]
	if supplied == "" {
		return false
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if strings.HasPrefix(key, "vnp_") {
			fields[key] = value
		}
	}

	expected := signHMACSHA512(a.hashSecret, vnpayCanonical(fields))
	return equalSignature(expected, supplied)
}

// vnpayCanonical serializes fields as sorted key=value pairs with VNPAY's
// query encoding (spaces become '+').
func vnpayCanonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if fields[key] != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[key]))
	}
	return b.String()
}
