package services

import (
	"context"
	"fmt"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/email"
)

type OrderEmailSender interface {
	SendPaymentConfirmation(ctx context.Context, order *db.Order) error
	SendOrderShipped(ctx context.Context, order *db.Order, trackingCode string) error
	SendRefundCredited(ctx context.Context, order *db.Order, amount int64) error
}

// TemplateEmailSender renders the built-in templates and sends through the
// configured provider.
type TemplateEmailSender struct {
	provider email.Provider
	renderer *email.Renderer
}

func NewTemplateEmailSender(provider email.Provider) (*TemplateEmailSender, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	return &TemplateEmailSender{provider: provider, renderer: renderer}, nil
}

func (s *TemplateEmailSender) SendPaymentConfirmation(ctx context.Context, order *db.Order) error {
	return s.send(ctx, "payment_confirmed", order, &email.OrderInfo{
		Total:  email.FormatVND(order.Total),
		Method: methodDisplayName(order.Method),
	})
}

func (s *TemplateEmailSender) SendOrderShipped(ctx context.Context, order *db.Order, trackingCode string) error {
	return s.send(ctx, "order_shipped", order, &email.OrderInfo{
		TrackingCode: trackingCode,
	})
}

func (s *TemplateEmailSender) SendRefundCredited(ctx context.Context, order *db.Order, amount int64) error {
	return s.send(ctx, "refund_credited", order, &email.OrderInfo{
		RefundAmount: email.FormatVND(amount),
	})
}

func (s *TemplateEmailSender) send(ctx context.Context, template string, order *db.Order, info *email.OrderInfo) error {
	if order.ContactEmail == "" {
		return nil
	}
	info.OrderCode = order.Code
	info.CustomerEmail = order.ContactEmail
	info.CustomerName = customerName(order)

	mail, err := s.renderer.Render(template, info)
	if err != nil {
		return fmt.Errorf("failed to render %s email: %w", template, err)
	}
	return s.provider.SendEmail(ctx, mail)
}

func customerName(order *db.Order) string {
	if name, ok := order.Destination["name"].(string); ok && name != "" {
		return name
	}
	return "there"
}

func methodDisplayName(method db.PaymentMethod) string {
	switch method {
	case db.MethodVNPay:
		return "VNPAY"
	case db.MethodMoMo:
		return "MoMo"
	case db.MethodCOD:
		return "cash on delivery"
	default:
		return string(method)
	}
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendPaymentConfirmation(context.Context, *db.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *db.Order, string) error {
	return nil
}

func (noopOrderEmailSender) SendRefundCredited(context.Context, *db.Order, int64) error {
	return nil
}
