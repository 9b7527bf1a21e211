package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/ghn"
	"github.com/vietcartapp/vietcart/internal/models"
)

// In-memory fakes mirroring the store semantics the services depend on:
// guarded transitions, terminal-once settlement, once-per-order ledger
// entries, compare-and-increment redemption.

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*db.Order
	uses   map[string]int64 // userID|discountID -> settled uses
}

func newFakeOrderStore(orders ...*db.Order) *fakeOrderStore {
	s := &fakeOrderStore{
		orders: make(map[uuid.UUID]*db.Order),
		uses:   make(map[string]int64),
	}
	for _, order := range orders {
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		s.orders[order.ID] = order
	}
	return s
}

func (s *fakeOrderStore) Create(ctx context.Context, order *db.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !order.ConsistentTotals() {
		return db.ErrInconsistentTotals
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	s.orders[order.ID] = order
	return nil
}

func (s *fakeOrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, db.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *fakeOrderStore) GetByCode(ctx context.Context, code string) (*db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.Code == code {
			copied := *order
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("order %s not found", code)
}

func (s *fakeOrderStore) Transition(ctx context.Context, orderID uuid.UUID, from, to db.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !models.CanTransitionOrder(from, to) {
		return fmt.Errorf("%w: %s -> %s", db.ErrInvalidStatusTransition, from, to)
	}
	order, ok := s.orders[orderID]
	if !ok || order.Status != from {
		return fmt.Errorf("%w: expected %s", db.ErrInvalidStatusTransition, from)
	}
	order.Status = to
	return nil
}

func (s *fakeOrderStore) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to db.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.PaymentStatus != from {
		return fmt.Errorf("%w: expected payment status %s", db.ErrInvalidStatusTransition, from)
	}
	order.PaymentStatus = to
	return nil
}

func (s *fakeOrderStore) MarkProvisionallyPaid(ctx context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if order.PaymentStatus == db.PaymentPending {
		order.PaymentStatus = db.PaymentPaid
	}
	return nil
}

func (s *fakeOrderStore) CountSettledDiscountUses(ctx context.Context, userID, discountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uses[userID.String()+"|"+discountID.String()], nil
}

func (s *fakeOrderStore) setUses(userID, discountID uuid.UUID, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uses[userID.String()+"|"+discountID.String()] = n
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*db.GatewayPayment
	orders   *fakeOrderStore
}

func newFakePaymentStore(orders *fakeOrderStore, payments ...*db.GatewayPayment) *fakePaymentStore {
	s := &fakePaymentStore{
		payments: make(map[string]*db.GatewayPayment),
		orders:   orders,
	}
	for _, payment := range payments {
		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		if payment.Status == "" {
			payment.Status = models.GatewayPaymentPending
		}
		s.payments[string(payment.Provider)+"|"+payment.TxnRef] = payment
	}
	return s
}

func (s *fakePaymentStore) Create(ctx context.Context, payment *db.GatewayPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(payment.Provider) + "|" + payment.TxnRef
	if _, exists := s.payments[key]; exists {
		return fmt.Errorf("duplicate txn ref %s", payment.TxnRef)
	}
	payment.ID = uuid.New()
	payment.Status = models.GatewayPaymentPending
	s.payments[key] = payment
	return nil
}

func (s *fakePaymentStore) GetByTxnRef(ctx context.Context, provider db.GatewayProvider, txnRef string) (*db.GatewayPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[string(provider)+"|"+txnRef]
	if !ok {
		return nil, db.ErrUnknownTransaction
	}
	copied := *payment
	return &copied, nil
}

func (s *fakePaymentStore) Settle(ctx context.Context, provider db.GatewayProvider, txnRef string, amount int64, resultCode string, outcome models.GatewayPaymentStatus, orderOutcome db.PaymentStatus) (*db.SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[string(provider)+"|"+txnRef]
	if !ok {
		return nil, db.ErrUnknownTransaction
	}

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}

	if payment.IsTerminal() {
		copied := *payment
		return &db.SettleResult{Payment: &copied, Order: order, Applied: false}, nil
	}
	if payment.Amount != amount {
		return nil, db.ErrAmountMismatch
	}

	payment.Status = outcome
	payment.ResultCode = resultCode
	payment.SettledAt = time.Now()

	s.orders.mu.Lock()
	stored := s.orders.orders[payment.OrderID]
	stored.PaymentStatus = orderOutcome
	if orderOutcome == db.PaymentPaid {
		stored.PaidAt = time.Now()
	}
	copiedOrder := *stored
	s.orders.mu.Unlock()

	copied := *payment
	return &db.SettleResult{Payment: &copied, Order: &copiedOrder, Applied: true}, nil
}

type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*db.Wallet
	ledger  map[uuid.UUID][]models.WalletTransaction
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{
		wallets: make(map[uuid.UUID]*db.Wallet),
		ledger:  make(map[uuid.UUID][]models.WalletTransaction),
	}
}

func (s *fakeWalletStore) Apply(ctx context.Context, params db.ApplyParams) (*db.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params.UserID == uuid.Nil {
		return nil, fmt.Errorf("wallet mutation requires a registered user")
	}
	if params.Amount == 0 {
		return &db.ApplyResult{Applied: false}, nil
	}

	wallet, ok := s.wallets[params.UserID]
	if !ok {
		wallet = &db.Wallet{ID: uuid.New(), UserID: params.UserID}
		s.wallets[params.UserID] = wallet
	}

	if params.OncePerOrder && params.OrderID != uuid.Nil {
		for _, tx := range s.ledger[wallet.ID] {
			if tx.OrderID == params.OrderID && tx.Type == params.Type {
				return &db.ApplyResult{Applied: false}, nil
			}
		}
	}

	amount := params.Amount
	var shortfall int64
	if amount < 0 && wallet.Balance+amount < 0 {
		if !params.ClampToBalance {
			return nil, fmt.Errorf("balance would go negative")
		}
		shortfall = -(wallet.Balance + amount)
		amount = -wallet.Balance
	}

	tx := models.WalletTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		OrderID:       params.OrderID,
		Type:          params.Type,
		Amount:        amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance + amount,
		Note:          params.Note,
		CreatedAt:     time.Now(),
	}
	wallet.Balance += amount
	s.ledger[wallet.ID] = append(s.ledger[wallet.ID], tx)

	return &db.ApplyResult{Transaction: &tx, Applied: true, Shortfall: shortfall}, nil
}

func (s *fakeWalletStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*db.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[userID]
	if !ok {
		return nil, db.ErrWalletNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (s *fakeWalletStore) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WalletTransaction(nil), s.ledger[walletID]...), nil
}

func (s *fakeWalletStore) balance(userID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wallet, ok := s.wallets[userID]; ok {
		return wallet.Balance
	}
	return 0
}

func (s *fakeWalletStore) transactions(userID uuid.UUID) []models.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[userID]
	if !ok {
		return nil
	}
	return append([]models.WalletTransaction(nil), s.ledger[wallet.ID]...)
}

type fakeDiscountStore struct {
	mu        sync.Mutex
	discounts map[uuid.UUID]*db.Discount
}

func newFakeDiscountStore(discounts ...*db.Discount) *fakeDiscountStore {
	s := &fakeDiscountStore{discounts: make(map[uuid.UUID]*db.Discount)}
	for _, discount := range discounts {
		if discount.ID == uuid.Nil {
			discount.ID = uuid.New()
		}
		s.discounts[discount.ID] = discount
	}
	return s
}

func (s *fakeDiscountStore) GetByID(ctx context.Context, discountID uuid.UUID) (*db.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	discount, ok := s.discounts[discountID]
	if !ok {
		return nil, db.ErrDiscountNotFound
	}
	copied := *discount
	return &copied, nil
}

func (s *fakeDiscountStore) GetByCode(ctx context.Context, code string) (*db.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, discount := range s.discounts {
		if discount.Code == code {
			copied := *discount
			return &copied, nil
		}
	}
	return nil, db.ErrDiscountNotFound
}

func (s *fakeDiscountStore) Redeem(ctx context.Context, discountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	discount, ok := s.discounts[discountID]
	if !ok {
		return db.ErrDiscountNotFound
	}
	if discount.UsageLimit > 0 && discount.UsedCount >= discount.UsageLimit {
		return db.ErrDiscountExhausted
	}
	discount.UsedCount++
	return nil
}

func (s *fakeDiscountStore) Revert(ctx context.Context, discountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	discount, ok := s.discounts[discountID]
	if !ok {
		return db.ErrDiscountNotFound
	}
	if discount.UsedCount > 0 {
		discount.UsedCount--
	}
	return nil
}

func (s *fakeDiscountStore) usedCount(discountID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discounts[discountID].UsedCount
}

type fakeShippingStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*db.ShippingRecord
}

func newFakeShippingStore() *fakeShippingStore {
	return &fakeShippingStore{records: make(map[uuid.UUID]*db.ShippingRecord)}
}

func (s *fakeShippingStore) CreateOnce(ctx context.Context, record *db.ShippingRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.OrderID]; exists {
		return false, nil
	}
	record.ID = uuid.New()
	s.records[record.OrderID] = record
	return true, nil
}

func (s *fakeShippingStore) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.records[orderID]
	return exists, nil
}

func (s *fakeShippingStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*db.ShippingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[orderID]
	if !ok {
		return nil, db.ErrShippingRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *fakeShippingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeReturnStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*db.ReturnRequest
}

func newFakeReturnStore(requests ...*db.ReturnRequest) *fakeReturnStore {
	s := &fakeReturnStore{requests: make(map[uuid.UUID]*db.ReturnRequest)}
	for _, request := range requests {
		if request.ID == uuid.Nil {
			request.ID = uuid.New()
		}
		s.requests[request.ID] = request
	}
	return s
}

func (s *fakeReturnStore) CreateActive(ctx context.Context, request *db.ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.OrderID == request.OrderID && existing.Status == models.ReturnPending {
			return db.ErrActiveReturnExists
		}
	}
	request.ID = uuid.New()
	request.Status = models.ReturnPending
	request.CreatedAt = time.Now()
	s.requests[request.ID] = request
	return nil
}

func (s *fakeReturnStore) GetByID(ctx context.Context, requestID uuid.UUID) (*db.ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, db.ErrReturnNotFound
	}
	copied := *request
	return &copied, nil
}

func (s *fakeReturnStore) Decide(ctx context.Context, requestID uuid.UUID, decision models.ReturnStatus, adminID, note string) error {
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
	request.DecidedBy = adminID
	request.DecisionNote = note
	request.DecidedAt = time.Now()
	return nil
}

type fakeShippingClient struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeShippingClient) CreateOrder(ctx context.Context, req ghn.CreateOrderRequest) (*ghn.CreateOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &ghn.CreateOrderResult{OrderCode: "GHN-" + req.ClientCode, TotalFee: 31000}, nil
}

func (c *fakeShippingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeEmailSender struct {
	mu        sync.Mutex
	confirmed int
	shipped   int
	refunded  int
	err       error
}

func (s *fakeEmailSender) SendPaymentConfirmation(ctx context.Context, order *db.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.confirmed++
	return nil
}

func (s *fakeEmailSender) SendOrderShipped(ctx context.Context, order *db.Order, trackingCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipped++
	return nil
}

func (s *fakeEmailSender) SendRefundCredited(ctx context.Context, order *db.Order, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunded++
	return nil
}

func (s *fakeEmailSender) shippedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipped
}

type fakeAdapter struct {
	provider models.GatewayProvider
	err      error
}

func (a *fakeAdapter) Provider() models.GatewayProvider {
	return a.provider
}

func (a *fakeAdapter) BuildPaymentRequest(ctx context.Context, order *models.Order, clientIP string) (*gateway.PaymentRequest, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &gateway.PaymentRequest{
		RedirectURL: "https://pay.example.com/" + order.Code,
		TxnRef:      order.Code,
	}, nil
}

func (a *fakeAdapter) ParseNotification(r *http.Request) (*gateway.Notification, error) {
	return nil, errors.New("not used in tests")
}
