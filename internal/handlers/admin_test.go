package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vietcartapp/vietcart/internal/db"
)

func adminToken(t *testing.T, adminID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func adminRouter(h *harness) *mux.Router {
	router := mux.NewRouter()
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(h.handlers.RequireAdmin)
	admin.HandleFunc("/orders/{id}", h.handlers.AdminGetOrder).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.handlers.AdminUpdateOrderStatus).Methods(http.MethodPost)
	admin.HandleFunc("/returns/{id}/decision", h.handlers.AdminDecideReturn).Methods(http.MethodPost)
	admin.HandleFunc("/wallets/{userID}", h.handlers.AdminWalletStatement).Methods(http.MethodGet)
	return router
}

func TestAdminRequiresBearerToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, nil)
	router := adminRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/admin/orders/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/admin/orders/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status with garbage token = %d, want 401", w.Code)
	}
}

func TestAdminGetOrderHandler(t *testing.T) {
	t.Parallel()

	order, payment := pendingVNPayOrder()
	h := newHarness(t, []*db.Order{order}, []*db.GatewayPayment{payment})
	router := adminRouter(h)
	token := adminToken(t, uuid.New())

	r := httptest.NewRequest(http.MethodGet, "/admin/orders/"+order.ID.String(), nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got db.Order
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if got.Code != order.Code {
		t.Errorf("code = %q, want %q", got.Code, order.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/admin/orders/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status for unknown order = %d, want 404", w.Code)
	}
}

func TestAdminUpdateStatusHandler(t *testing.T) {
	t.Parallel()

	order, payment := pendingVNPayOrder()
	h := newHarness(t, []*db.Order{order}, []*db.GatewayPayment{payment})
	router := adminRouter(h)
	token := adminToken(t, uuid.New())

	do := func(status string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/admin/orders/"+order.ID.String()+"/status", strings.NewReader(`{"status": "`+status+`"}`))
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w
	}

	if w := do("confirmed"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	// pending is not an admin-settable state.
	if w := do("pending"); w.Code != http.StatusBadRequest {
		t.Errorf("status for invalid value = %d, want 400", w.Code)
	}
	// confirmed -> completed skips shipping and delivery.
	if w := do("completed"); w.Code != http.StatusConflict {
		t.Errorf("status for illegal transition = %d, want 409", w.Code)
	}
}

func TestAdminWalletNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, nil)
	router := adminRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/admin/wallets/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer "+adminToken(t, uuid.New()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestCreateReturnHandler(t *testing.T) {
	t.Parallel()

	order, payment := pendingVNPayOrder()
	order.Status = db.OrderDelivered
	h := newHarness(t, []*db.Order{order}, []*db.GatewayPayment{payment})

	do := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/returns", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.handlers.CreateReturn(w, r)
		return w
	}

	body := `{"order_id": "` + order.ID.String() + `", "reason": "wrong size"}`
	if w := do(body); w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if w := do(body); w.Code != http.StatusConflict {
		t.Errorf("status for second request = %d, want 409", w.Code)
	}
	if w := do(`{"order_id": "` + uuid.NewString() + `", "reason": "x"}`); w.Code != http.StatusNotFound {
		t.Errorf("status for unknown order = %d, want 404", w.Code)
	}
}
