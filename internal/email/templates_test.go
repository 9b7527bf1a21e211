package email

import (
	"strings"
	"testing"
)

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	info := &OrderInfo{
		OrderCode:     "VC-20260314-0001",
		CustomerName:  "Nguyen Van A",
		CustomerEmail: "a@example.com",
		Total:         FormatVND(350000),
		Method:        "VNPAY",
	}

	mail, err := renderer.Render("payment_confirmed", info)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if mail.To != "a@example.com" {
		t.Errorf("To = %q", mail.To)
	}
	if !strings.Contains(mail.Subject, "VC-20260314-0001") {
		t.Errorf("subject %q does not mention the order code", mail.Subject)
	}
	if !strings.Contains(mail.Text, "350.000 ₫") {
		t.Errorf("text body %q does not carry the formatted total", mail.Text)
	}
	if !strings.Contains(mail.HTML, "VNPAY") {
		t.Errorf("html body does not mention the payment method")
	}
}

func TestRenderer_RenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	if _, err := renderer.Render("nope", &OrderInfo{}); err == nil {
		t.Fatal("Render() error = nil, want error")
	}
}

func TestFormatVND(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0 ₫"},
		{999, "999 ₫"},
		{1000, "1.000 ₫"},
		{350000, "350.000 ₫"},
		{1250000, "1.250.000 ₫"},
		{-125000, "-125.000 ₫"},
	}

	for _, tt := range tests {
		if got := FormatVND(tt.amount); got != tt.want {
			t.Errorf("FormatVND(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
