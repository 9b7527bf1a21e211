package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietcartapp/vietcart/internal/auth"
	"github.com/vietcartapp/vietcart/internal/config"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/services"
)

const maxNotificationBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP surface: checkout intake, gateway callbacks,
// the return workflow, and the admin API.
type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	adapters         map[string]gateway.Adapter
	reconcileService *services.ReconcileService
	checkoutService  *services.CheckoutService
	returnService    *services.ReturnService
	adminService     *services.AdminOrderService
	walletService    *services.WalletService
	executor         *services.Executor
	verifier         *auth.Verifier
	validate         *validator.Validate
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	Adapters         map[string]gateway.Adapter
	ReconcileService *services.ReconcileService
	CheckoutService  *services.CheckoutService
	ReturnService    *services.ReturnService
	AdminService     *services.AdminOrderService
	WalletService    *services.WalletService
	Executor         *services.Executor
	Verifier         *auth.Verifier
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.ReconcileService == nil {
		return nil, fmt.Errorf("handlers dependencies: reconcileService is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.ReturnService == nil {
		return nil, fmt.Errorf("handlers dependencies: returnService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}
	if deps.WalletService == nil {
		return nil, fmt.Errorf("handlers dependencies: walletService is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("handlers dependencies: executor is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("handlers dependencies: verifier is required")
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		adapters:         deps.Adapters,
		reconcileService: deps.ReconcileService,
		checkoutService:  deps.CheckoutService,
		returnService:    deps.ReturnService,
		adminService:     deps.AdminService,
		walletService:    deps.WalletService,
		executor:         deps.Executor,
		verifier:         deps.Verifier,
		validate:         validator.New(),
		logger:           logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

// RequireAdmin authenticates admin API requests with a bearer token.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return h.verifier.RequireAdmin(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
