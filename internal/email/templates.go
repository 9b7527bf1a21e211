// Package email provides email templates.
package email

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
)

// OrderInfo carries the fields the order email templates render.
type OrderInfo struct {
	OrderCode     string
	CustomerName  string
	CustomerEmail string
	Total         string
	Method        string
	TrackingCode  string
	RefundAmount  string
}

// EmailTemplate defines a named email template.
type EmailTemplate struct {
	Name    string
	Subject string
	HTML    string
	Text    string
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
	subjects  map[string]*template.Template
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	templates := map[string]EmailTemplate{
		"payment_confirmed": {
			Name:    "Payment Confirmed",
			Subject: "Payment received - order {{.OrderCode}}",
			HTML:    paymentConfirmedHTML,
			Text:    paymentConfirmedText,
		},
		"order_shipped": {
			Name:    "Order Shipped",
			Subject: "Your order {{.OrderCode}} has shipped",
			HTML:    orderShippedHTML,
			Text:    orderShippedText,
		},
		"refund_credited": {
			Name:    "Refund Credited",
			Subject: "Refund credited for order {{.OrderCode}}",
			HTML:    refundCreditedHTML,
			Text:    refundCreditedText,
		},
	}

	tmpl := template.New("email")
	subjects := make(map[string]*template.Template, len(templates))

	for key, t := range templates {
		if _, err := tmpl.New(key + "_html").Parse(t.HTML); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", key, err)
		}
		if _, err := tmpl.New(key + "_text").Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
		subject, err := template.New(key + "_subject").Parse(t.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", key, err)
		}
		subjects[key] = subject
	}

	return &Renderer{
		templates: tmpl,
		subjects:  subjects,
	}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(templateName string, data *OrderInfo) (*Email, error) {
	subjectTmpl, ok := r.subjects[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown email template: %s", templateName)
	}

	var subjectBuf, htmlBuf, textBuf bytes.Buffer
	if err := subjectTmpl.Execute(&subjectBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render subject template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&htmlBuf, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subjectBuf.String(),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

// FormatVND renders an amount in Vietnamese dong with dot thousand
// separators, e.g. 1250000 -> "1.250.000 ₫".
func FormatVND(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	negative := false
	if digits[0] == '-' {
		negative = true
		digits = digits[1:]
	}

	var b bytes.Buffer
	if negative {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 && !(negative && b.Len() == 1) {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	b.WriteString(" ₫")
	return b.String()
}

const paymentConfirmedText = `Hi {{.CustomerName}},

We have received your payment of {{.Total}} for order {{.OrderCode}} via {{.Method}}.

We are preparing your order for shipment and will let you know when it is on the way.

Thank you for shopping with VietCart.
`

const paymentConfirmedHTML = `<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Payment received</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>We have received your payment of <strong>{{.Total}}</strong> for order <strong>{{.OrderCode}}</strong> via {{.Method}}.</p>
  <p>We are preparing your order for shipment and will let you know when it is on the way.</p>
  <p>Thank you for shopping with VietCart.</p>
</body>
</html>
`

const orderShippedText = `Hi {{.CustomerName}},

Your order {{.OrderCode}} has shipped.
{{if .TrackingCode}}
Tracking code: {{.TrackingCode}}
{{end}}
Thank you for shopping with VietCart.
`

const orderShippedHTML = `<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Your order has shipped</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>Your order <strong>{{.OrderCode}}</strong> has shipped.</p>
  {{if .TrackingCode}}<p>Tracking code: <strong>{{.TrackingCode}}</strong></p>{{end}}
  <p>Thank you for shopping with VietCart.</p>
</body>
</html>
`

const refundCreditedText = `Hi {{.CustomerName}},

A refund of {{.RefundAmount}} for order {{.OrderCode}} has been credited to your VietCart wallet.

Thank you for shopping with VietCart.
`

const refundCreditedHTML = `<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Refund credited</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>A refund of <strong>{{.RefundAmount}}</strong> for order <strong>{{.OrderCode}}</strong> has been credited to your VietCart wallet.</p>
  <p>Thank you for shopping with VietCart.</p>
</body>
</html>
`
