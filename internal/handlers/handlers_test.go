package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/auth"
	"github.com/vietcartapp/vietcart/internal/cache"
	"github.com/vietcartapp/vietcart/internal/config"
	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/ghn"
	"github.com/vietcartapp/vietcart/internal/models"
	"github.com/vietcartapp/vietcart/internal/queue"
	"github.com/vietcartapp/vietcart/internal/services"
)

const (
	testVNPaySecret = "supersecrethashkey"
	testJWTSecret   = "0123456789abcdef0123456789abcdef"
)

type testOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*db.Order
}

func newTestOrderStore(orders ...*db.Order) *testOrderStore {
	s := &testOrderStore{orders: make(map[uuid.UUID]*db.Order)}
	for _, order := range orders {
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		s.orders[order.ID] = order
	}
	return s
}

func (s *testOrderStore) Create(ctx context.Context, order *db.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	s.orders[order.ID] = order
	return nil
}

func (s *testOrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, db.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *testOrderStore) GetByCode(ctx context.Context, code string) (*db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.Code == code {
			copied := *order
			return &copied, nil
		}
	}
	return nil, db.ErrOrderNotFound
}

func (s *testOrderStore) Transition(ctx context.Context, orderID uuid.UUID, from, to db.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return db.ErrOrderNotFound
	}
	if order.Status != from || !models.CanTransitionOrder(from, to) {
		return fmt.Errorf("%w: %s -> %s", db.ErrInvalidStatusTransition, order.Status, to)
	}
	order.Status = to
	return nil
}

func (s *testOrderStore) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to db.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.PaymentStatus != from {
		return db.ErrInvalidStatusTransition
	}
	order.PaymentStatus = to
	return nil
}

func (s *testOrderStore) MarkProvisionallyPaid(ctx context.Context, orderID uuid.UUID) error {
	return s.SetPaymentStatus(ctx, orderID, db.PaymentPending, db.PaymentPaid)
}

func (s *testOrderStore) CountSettledDiscountUses(ctx context.Context, userID, discountID uuid.UUID) (int64, error) {
	return 0, nil
}

type testPaymentStore struct {
	mu       sync.Mutex
	orders   *testOrderStore
	payments map[string]*db.GatewayPayment
}

func newTestPaymentStore(orders *testOrderStore, payments ...*db.GatewayPayment) *testPaymentStore {
	s := &testPaymentStore{orders: orders, payments: make(map[string]*db.GatewayPayment)}
	for _, payment := range payments {
		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		if payment.Status == "" {
			payment.Status = models.GatewayPaymentPending
		}
		s.payments[paymentKey(payment.Provider, payment.TxnRef)] = payment
	}
	return s
}

func paymentKey(provider db.GatewayProvider, txnRef string) string {
	return string(provider) + "|" + txnRef
}

func (s *testPaymentStore) Create(ctx context.Context, payment *db.GatewayPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment.ID = uuid.New()
	payment.Status = models.GatewayPaymentPending
	s.payments[paymentKey(payment.Provider, payment.TxnRef)] = payment
	return nil
}

func (s *testPaymentStore) GetByTxnRef(ctx context.Context, provider db.GatewayProvider, txnRef string) (*db.GatewayPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentKey(provider, txnRef)]
	if !ok {
		return nil, db.ErrUnknownTransaction
	}
	copied := *payment
	return &copied, nil
}

func (s *testPaymentStore) Settle(ctx context.Context, provider db.GatewayProvider, txnRef string, amount int64, resultCode string, outcome models.GatewayPaymentStatus, orderOutcome db.PaymentStatus) (*db.SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentKey(provider, txnRef)]
	if !ok {
		return nil, db.ErrUnknownTransaction
	}
	if payment.IsTerminal() {
		copied := *payment
		return &db.SettleResult{Payment: &copied, Applied: false}, nil
	}
	if amount != payment.Amount {
		return nil, fmt.Errorf("%w: signed %d, notified %d", db.ErrAmountMismatch, payment.Amount, amount)
	}

	payment.Status = outcome
	payment.ResultCode = resultCode
	payment.SettledAt = time.Now()

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	s.orders.mu.Lock()
	stored := s.orders.orders[payment.OrderID]
	stored.PaymentStatus = orderOutcome
	if orderOutcome == db.PaymentPaid {
		stored.PaidAt = time.Now()
	}
	order.PaymentStatus = orderOutcome
	s.orders.mu.Unlock()

	copied := *payment
	return &db.SettleResult{Payment: &copied, Order: order, Applied: true}, nil
}

type testShippingStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*db.ShippingRecord
}

func newTestShippingStore() *testShippingStore {
	return &testShippingStore{records: make(map[uuid.UUID]*db.ShippingRecord)}
}

func (s *testShippingStore) CreateOnce(ctx context.Context, record *db.ShippingRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.OrderID]; ok {
		return false, nil
	}
	record.ID = uuid.New()
	s.records[record.OrderID] = record
	return true, nil
}

func (s *testShippingStore) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[orderID]
	return ok, nil
}

func (s *testShippingStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*db.ShippingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[orderID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *testShippingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type testDiscountStore struct{}

func (testDiscountStore) GetByID(ctx context.Context, discountID uuid.UUID) (*db.Discount, error) {
	return nil, db.ErrDiscountNotFound
}

func (testDiscountStore) GetByCode(ctx context.Context, code string) (*db.Discount, error) {
	return nil, db.ErrDiscountNotFound
}

func (testDiscountStore) Redeem(ctx context.Context, discountID uuid.UUID) error { return nil }
func (testDiscountStore) Revert(ctx context.Context, discountID uuid.UUID) error { return nil }

type testWalletStore struct{}

func (testWalletStore) Apply(ctx context.Context, params db.ApplyParams) (*db.ApplyResult, error) {
	return &db.ApplyResult{Applied: true, Transaction: &db.WalletTransaction{ID: uuid.New()}}, nil
}

func (testWalletStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*db.Wallet, error) {
	return nil, db.ErrWalletNotFound
}

func (testWalletStore) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	return nil, nil
}

type testShippingClient struct{}

func (testShippingClient) CreateOrder(ctx context.Context, req ghn.CreateOrderRequest) (*ghn.CreateOrderResult, error) {
	return &ghn.CreateOrderResult{OrderCode: "GHN-" + req.ClientCode, TotalFee: 20000}, nil
}

type harness struct {
	handlers *Handlers
	orders   *testOrderStore
	payments *testPaymentStore
	shipping *testShippingStore
	adapter  *gateway.VNPayAdapter
}

func newHarness(t *testing.T, orders []*db.Order, payments []*db.GatewayPayment) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	orderStore := newTestOrderStore(orders...)
	paymentStore := newTestPaymentStore(orderStore, payments...)
	shippingStore := newTestShippingStore()

	dedup, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	t.Cleanup(func() { dedup.Close() })

	retry := queue.NewMemoryProvider()
	t.Cleanup(func() { retry.Close() })

	wallet := services.NewWalletService(testWalletStore{}, 10, logger)
	executor := services.NewExecutor(shippingStore, testDiscountStore{}, wallet, testShippingClient{}, nil, retry, logger)
	reconcile := services.NewReconcileService(paymentStore, orderStore, dedup, false, logger)
	guard := services.NewDiscountGuard(testDiscountStore{}, orderStore, logger)

	vnpayAdapter := gateway.NewVNPayAdapter("VCDEMO01", testVNPaySecret, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html", "http://localhost:8080/payments/vnpay/return")
	adapters := map[db.PaymentMethod]gateway.Adapter{db.MethodVNPay: vnpayAdapter}
	checkout := services.NewCheckoutService(orderStore, paymentStore, guard, adapters, nil, logger)
	returns := services.NewReturnService(newTestReturnStore(), orderStore, executor, logger)
	admin := services.NewAdminOrderService(orderStore, shippingStore, executor, nil, logger)

	h := &Handlers{
		config:           &config.Config{BaseURL: "http://localhost:8080"},
		adapters:         map[string]gateway.Adapter{"vnpay": vnpayAdapter},
		reconcileService: reconcile,
		checkoutService:  checkout,
		returnService:    returns,
		adminService:     admin,
		walletService:    wallet,
		executor:         executor,
		verifier:         auth.NewVerifier(testJWTSecret),
		validate:         validator.New(),
		logger:           logger,
	}
	return &harness{
		handlers: h,
		orders:   orderStore,
		payments: paymentStore,
		shipping: shippingStore,
		adapter:  vnpayAdapter,
	}
}

type testReturnStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*db.ReturnRequest
}

func newTestReturnStore() *testReturnStore {
	return &testReturnStore{requests: make(map[uuid.UUID]*db.ReturnRequest)}
}

func (s *testReturnStore) CreateActive(ctx context.Context, request *db.ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.OrderID == request.OrderID && existing.Status == models.ReturnPending {
			return db.ErrActiveReturnExists
		}
	}
	request.ID = uuid.New()
	s.requests[request.ID] = request
	return nil
}

func (s *testReturnStore) GetByID(ctx context.Context, requestID uuid.UUID) (*db.ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, db.ErrReturnNotFound
	}
	copied := *request
	return &copied, nil
}

func (s *testReturnStore) Decide(ctx context.Context, requestID uuid.UUID, decision models.ReturnStatus, adminID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return db.ErrReturnNotFound
	}
	if request.Status != models.ReturnPending {
		return db.ErrReturnAlreadyDecided
	}
	request.Status = decision
	return nil
}

// signedVNPayQuery builds a provider-style signed query string.
func signedVNPayQuery(fields map[string]string) string {
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
	canonical := b.String()

	mac := hmac.New(sha512.New, []byte(testVNPaySecret))
	mac.Write([]byte(canonical))
	return canonical + "&vnp_SecureHash=" + hex.EncodeToString(mac.Sum(nil))
}
