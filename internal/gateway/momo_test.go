package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/vietcartapp/vietcart/internal/models"
)

func testMoMoAdapter(endpoint string) *MoMoAdapter {
	return NewMoMoAdapter(
		"MOMOVC01",
		"accesskey123",
		"momosecretkey",
		endpoint,
		"http://localhost:8080/payments/momo/return",
		"http://localhost:8080/payments/momo/ipn",
		nil,
	)
}

func TestMoMoBuildPaymentRequest(t *testing.T) {
	t.Parallel()

	var received momoCreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode create request: %v", err)
		}
		json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 0, PayURL: "https://test-payment.momo.vn/pay/abc"})
	}))
	defer server.Close()

	adapter := testMoMoAdapter(server.URL)
	order := &models.Order{Code: "VC-20260314-0002", Total: 214000}

	req, err := adapter.BuildPaymentRequest(context.Background(), order, "")
	if err != nil {
		t.Fatalf("BuildPaymentRequest() error = %v", err)
	}
	if req.RedirectURL != "https://test-payment.momo.vn/pay/abc" {
		t.Errorf("RedirectURL = %q", req.RedirectURL)
	}
	if req.TxnRef != order.Code {
		t.Errorf("TxnRef = %q, want %q", req.TxnRef, order.Code)
	}

	if received.Amount != order.Total {
		t.Errorf("sent amount = %d, want %d", received.Amount, order.Total)
	}
	if received.OrderID != order.Code {
		t.Errorf("sent orderId = %q, want %q", received.OrderID, order.Code)
	}
	if received.Signature == "" {
		t.Error("create request carried no signature")
	}
}

func TestMoMoBuildPaymentRequestRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 41, Message: "duplicate orderId"})
	}))
	defer server.Close()

	adapter := testMoMoAdapter(server.URL)
	_, err := adapter.BuildPaymentRequest(context.Background(), &models.Order{Code: "VC-1", Total: 1000}, "")
	if err == nil {
		t.Fatal("BuildPaymentRequest() error = nil, want error")
	}
}

func signedIPN(a *MoMoAdapter, orderID string, amount int64, resultCode int) momoIPN {
	ipn := momoIPN{
		PartnerCode:  a.partnerCode,
		RequestID:    "req-1",
		Amount:       amount,
		OrderID:      orderID,
		OrderInfo:    "Thanh toan don hang " + orderID,
		OrderType:    "momo_wallet",
		TransID:      2147483001,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1773999000000,
	}
	raw := "accessKey=" + a.accessKey +
		"&amount=" + strconv.FormatInt(ipn.Amount, 10) +
		"&extraData=" + ipn.ExtraData +
		"&message=" + ipn.Message +
		"&orderId=" + ipn.OrderID +
		"&orderInfo=" + ipn.OrderInfo +
		"&orderType=" + ipn.OrderType +
		"&partnerCode=" + ipn.PartnerCode +
		"&payType=" + ipn.PayType +
		"&requestId=" + ipn.RequestID +
		"&responseTime=" + strconv.FormatInt(ipn.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(ipn.ResultCode) +
		"&transId=" + strconv.FormatInt(ipn.TransID, 10)
	ipn.Signature = signHMACSHA256(a.secretKey, raw)
	return ipn
}

func TestMoMoParseIPN(t *testing.T) {
	t.Parallel()

	adapter := testMoMoAdapter("https://test-payment.momo.vn/v2/gateway/api/create")

	tests := []struct {
		name          string
		mutate        func(*momoIPN)
		wantValid     bool
		wantSuccess   bool
		wantCancelled bool
	}{
		{name: "valid success", mutate: func(*momoIPN) {}, wantValid: true, wantSuccess: true},
		{
			name:      "tampered amount",
			mutate:    func(ipn *momoIPN) { ipn.Amount = 1 },
			wantValid: false, wantSuccess: true,
		},
		{
			name:      "forged signature",
			mutate:    func(ipn *momoIPN) { ipn.Signature = "deadbeef" },
			wantValid: false, wantSuccess: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ipn := signedIPN(adapter, "VC-20260314-0002", 214000, 0)
			tt.mutate(&ipn)
			body, _ := json.Marshal(ipn)

			r := httptest.NewRequest("POST", "/payments/momo/ipn", strings.NewReader(string(body)))
			notification, err := adapter.ParseNotification(r)
			if err != nil {
				t.Fatalf("ParseNotification() error = %v", err)
			}
			if notification.SignatureValid != tt.wantValid {
				t.Errorf("SignatureValid = %v, want %v", notification.SignatureValid, tt.wantValid)
			}
			if notification.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", notification.Success, tt.wantSuccess)
			}
			if notification.Provider != models.ProviderMoMo {
				t.Errorf("Provider = %q, want %q", notification.Provider, models.ProviderMoMo)
			}
		})
	}
}

func TestMoMoParseIPNCancel(t *testing.T) {
	t.Parallel()

	adapter := testMoMoAdapter("https://test-payment.momo.vn/v2/gateway/api/create")
	ipn := signedIPN(adapter, "VC-20260314-0003", 99000, 1006)
	body, _ := json.Marshal(ipn)

	r := httptest.NewRequest("POST", "/payments/momo/ipn", strings.NewReader(string(body)))
	notification, err := adapter.ParseNotification(r)
	if err != nil {
		t.Fatalf("ParseNotification() error = %v", err)
	}
	if !notification.SignatureValid {
		t.Error("SignatureValid = false, want true")
	}
	if notification.Success {
		t.Error("Success = true, want false")
	}
	if !notification.Cancelled {
		t.Error("Cancelled = false, want true")
	}
}

func TestMoMoParseReturn(t *testing.T) {
	t.Parallel()

	adapter := testMoMoAdapter("https://test-payment.momo.vn/v2/gateway/api/create")
	ipn := signedIPN(adapter, "VC-20260314-0004", 50000, 0)

	values := url.Values{}
	values.Set("partnerCode", ipn.PartnerCode)
	values.Set("orderId", ipn.OrderID)
	values.Set("requestId", ipn.RequestID)
	values.Set("amount", strconv.FormatInt(ipn.Amount, 10))
	values.Set("orderInfo", ipn.OrderInfo)
	values.Set("orderType", ipn.OrderType)
	values.Set("transId", strconv.FormatInt(ipn.TransID, 10))
	values.Set("resultCode", strconv.Itoa(ipn.ResultCode))
	values.Set("message", ipn.Message)
	values.Set("payType", ipn.PayType)
	values.Set("responseTime", strconv.FormatInt(ipn.ResponseTime, 10))
	values.Set("extraData", ipn.ExtraData)
	values.Set("signature", ipn.Signature)

	r := httptest.NewRequest("GET", "/payments/momo/return?"+values.Encode(), nil)
	notification, err := adapter.ParseNotification(r)
	if err != nil {
		t.Fatalf("ParseNotification() error = %v", err)
	}
	if !notification.SignatureValid {
		t.Error("SignatureValid = false, want true")
	}
	if notification.Amount != 50000 {
		t.Errorf("Amount = %d, want %d", notification.Amount, 50000)
	}
}

func TestMoMoParseIPNMalformed(t *testing.T) {
	t.Parallel()

	adapter := testMoMoAdapter("https://test-payment.momo.vn/v2/gateway/api/create")
	r := httptest.NewRequest("POST", "/payments/momo/ipn", strings.NewReader("{not json"))
	if _, err := adapter.ParseNotification(r); err == nil {
		t.Fatal("ParseNotification() error = nil, want error")
	}
}
