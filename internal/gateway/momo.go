package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/models"
)

const (
	momoRequestType = "captureWallet"
	momoCodeSuccess = 0
	momoCodeCancel  = 1006
)

// MoMoAdapter implements the wallet provider. Signing covers a fixed-order
// raw string (not sorted) with HMAC-SHA256; the IPN arrives as a JSON POST
// while the browser return carries the same fields as query parameters.
type MoMoAdapter struct {
	partnerCode string
	accessKey   string
	secretKey   string
	endpoint    string
	returnURL   string
	ipnURL      string
	httpClient  *http.Client
}

func NewMoMoAdapter(partnerCode, accessKey, secretKey, endpoint, returnURL, ipnURL string, httpClient *http.Client) *MoMoAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MoMoAdapter{
		partnerCode: partnerCode,
		accessKey:   accessKey,
		secretKey:   secretKey,
		endpoint:    endpoint,
		returnURL:   returnURL,
		ipnURL:      ipnURL,
		httpClient:  httpClient,
	}
}

func (a *MoMoAdapter) Provider() models.GatewayProvider {
	return models.ProviderMoMo
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

func (a *MoMoAdapter) BuildPaymentRequest(ctx context.Context, order *models.Order, clientIP string) (*PaymentRequest, error) {
	_ = clientIP
	if a.partnerCode == "" || a.secretKey == "" {
		return nil, ErrMissingCredentials
	}
	if order == nil || order.Code == "" {
		return nil, fmt.Errorf("order with a code is required")
	}

	requestID := uuid.NewString()
	orderInfo := "Thanh toan don hang " + order.Code

	rawSignature := "accessKey=" + a.accessKey +
		"&amount=" + strconv.FormatInt(order.Total, 10) +
		"&extraData=" +
		"&ipnUrl=" + a.ipnURL +
		"&orderId=" + order.Code +
		"&orderInfo=" + orderInfo +
		"&partnerCode=" + a.partnerCode +
		"&redirectUrl=" + a.returnURL +
		"&requestId=" + requestID +
		"&requestType=" + momoRequestType

	payload := momoCreateRequest{
		PartnerCode: a.partnerCode,
		AccessKey:   a.accessKey,
		RequestID:   requestID,
		Amount:      order.Total,
		OrderID:     order.Code,
		OrderInfo:   orderInfo,
		RedirectURL: a.returnURL,
		IpnURL:      a.ipnURL,
		ExtraData:   "",
		RequestType: momoRequestType,
		Signature:   signHMACSHA256(a.secretKey, rawSignature),
		Lang:        "vi",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call create endpoint: %w", err)
	}
	defer resp.Body.Close()

	var created momoCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	if created.ResultCode != momoCodeSuccess {
		return nil, fmt.Errorf("create payment rejected: %d %s", created.ResultCode, created.Message)
	}
	if created.PayURL == "" {
		return nil, fmt.Errorf("create response carried no payUrl")
	}

	return &PaymentRequest{RedirectURL: created.PayURL, TxnRef: order.Code}, nil
}

type momoIPN struct {
	PartnerCode  string `json:"partnerCode"`
	AccessKey    string `json:"accessKey"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderID      string `json:"orderId"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (a *MoMoAdapter) ParseNotification(r *http.Request) (*Notification, error) {
	if r.Method == http.MethodPost {
		return a.parseIPN(r)
	}
	return a.parseReturn(r)
}

func (a *MoMoAdapter) parseIPN(r *http.Request) (*Notification, error) {
	var ipn momoIPN
	if err := json.NewDecoder(r.Body).Decode(&ipn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ipn.OrderID == "" {
		return nil, fmt.Errorf("%w: missing orderId", ErrMalformedPayload)
	}

	rawSignature := "accessKey=" + a.accessKey +
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

	return &Notification{
		Provider:       models.ProviderMoMo,
		TxnRef:         ipn.OrderID,
		Amount:         ipn.Amount,
		ResultCode:     strconv.Itoa(ipn.ResultCode),
		SignatureValid: equalSignature(signHMACSHA256(a.secretKey, rawSignature), ipn.Signature),
		Success:        ipn.ResultCode == momoCodeSuccess,
		Cancelled:      ipn.ResultCode == momoCodeCancel,
		Raw: map[string]string{
			"orderId":    ipn.OrderID,
			"requestId":  ipn.RequestID,
			"transId":    strconv.FormatInt(ipn.TransID, 10),
			"resultCode": strconv.Itoa(ipn.ResultCode),
			"message":    ipn.Message,
		},
	}, nil
}

func (a *MoMoAdapter) parseReturn(r *http.Request) (*Notification, error) {
	values := r.URL.Query()

	orderID := values.Get("orderId")
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing orderId", ErrMalformedPayload)
	}

	amount, err := strconv.ParseInt(values.Get("amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount: %v", ErrMalformedPayload, err)
	}

	resultCode, err := strconv.Atoi(values.Get("resultCode"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad resultCode: %v", ErrMalformedPayload, err)
	}

	rawSignature := "accessKey=" + a.accessKey +
		"&amount=" + values.Get("amount") +
		"&extraData=" + values.Get("extraData") +
		"&message=" + values.Get("message") +
		"&orderId=" + orderID +
		"&orderInfo=" + values.Get("orderInfo") +
		"&orderType=" + values.Get("orderType") +
		"&partnerCode=" + values.Get("partnerCode") +
		"&payType=" + values.Get("payType") +
		"&requestId=" + values.Get("requestId") +
		"&responseTime=" + values.Get("responseTime") +
		"&resultCode=" + values.Get("resultCode") +
		"&transId=" + values.Get("transId")

	raw := make(map[string]string, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}

	return &Notification{
		Provider:       models.ProviderMoMo,
		TxnRef:         orderID,
		Amount:         amount,
		ResultCode:     strconv.Itoa(resultCode),
		SignatureValid: equalSignature(signHMACSHA256(a.secretKey, rawSignature), values.Get("signature")),
		Success:        resultCode == momoCodeSuccess,
		Cancelled:      resultCode == momoCodeCancel,
		Raw:            raw,
	}, nil
}
