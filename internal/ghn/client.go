package ghn

// Package ghn provides the Giao Hang Nhanh shipping API client.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrOutcomeUnknown is returned when the create call timed out or failed in
// transit: the provider may or may not have created the shipment, so the
// caller must treat the intent as pending rather than failed.
var ErrOutcomeUnknown = errors.New("shipping provider outcome unknown")

type Client struct {
	token      string
	shopID     int
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(token string, shopID int, endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		token:      token,
		shopID:     shopID,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

type CreateOrderRequest struct {
	ToName       string `json:"to_name"`
	ToPhone      string `json:"to_phone"`
	ToAddress    string `json:"to_address"`
	ToWard       string `json:"to_ward_code"`
	ToDistrictID int    `json:"to_district_id"`
	CODAmount    int64  `json:"cod_amount"`
	Weight       int    `json:"weight"`
	ServiceID    int    `json:"service_id"`
	PaymentType  int    `json:"payment_type_id"`
	Note         string `json:"note"`
	ClientCode   string `json:"client_order_code"`
}

type CreateOrderResult struct {
	OrderCode   string
	TotalFee    int64
	ExpectedETA time.Time
}

type createOrderResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		OrderCode            string `json:"order_code"`
		TotalFee             int64  `json:"total_fee"`
		ExpectedDeliveryTime string `json:"expected_delivery_time"`
	} `json:"data"`
}

// CreateOrder registers a shipment. ClientCode carries the order code so a
// retried create after an unknown outcome is rejected by the provider as a
// duplicate instead of producing a second shipment.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shiip/public-api/v2/shipping-order/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Token", c.token)
	httpReq.Header.Set("ShopId", strconv.Itoa(c.shopID))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			c.logger.Warn("shipping create outcome unknown", "client_code", req.ClientCode, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
		}
		return nil, fmt.Errorf("call shipping provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned %d", ErrOutcomeUnknown, resp.StatusCode)
	}

	var created createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode create order response: %w", err)
	}
	if created.Code != http.StatusOK {
		return nil, fmt.Errorf("shipping provider rejected order: %d %s", created.Code, created.Message)
	}

	result := &CreateOrderResult{
		OrderCode: created.Data.OrderCode,
		TotalFee:  created.Data.TotalFee,
	}
	if created.Data.ExpectedDeliveryTime != "" {
		if eta, err := time.Parse(time.RFC3339, created.Data.ExpectedDeliveryTime); err == nil {
			result.ExpectedETA = eta
		}
	}
	return result, nil
}

type feeResponse struct {
	Code int `json:"code"`
	Data struct {
		Total int64 `json:"total"`
	} `json:"data"`
}

// CalculateFee quotes the shipping fee for a destination district.
func (c *Client) CalculateFee(ctx context.Context, toDistrictID int, toWard string, weight int) (int64, error) {
	payload := map[string]any{
		"to_district_id": toDistrictID,
		"to_ward_code":   toWard,
		"weight":         weight,
		"service_type_id": 2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal fee request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shiip/public-api/v2/shipping-order/fee", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build fee request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Token", c.token)
	httpReq.Header.Set("ShopId", strconv.Itoa(c.shopID))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("call shipping provider: %w", err)
	}
	defer resp.Body.Close()

	var fee feeResponse
	if err := json.NewDecoder(resp.Body).Decode(&fee); err != nil {
		return 0, fmt.Errorf("decode fee response: %w", err)
	}
	if fee.Code != http.StatusOK {
		return 0, fmt.Errorf("fee quote rejected: %d", fee.Code)
	}

	return fee.Data.Total, nil
}
