package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vietcartapp/vietcart/internal/config"
	"github.com/vietcartapp/vietcart/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.HandleFunc("/checkout", h.Checkout).Methods("POST").Name("checkout")
	r.HandleFunc("/returns", h.CreateReturn).Methods("POST").Name("returns.create")

	// Gateway callbacks. VNPAY delivers both the IPN and the browser return
	// as signed GET queries; MoMo posts a signed JSON body for the IPN.
	r.HandleFunc("/payments/vnpay/ipn", h.VNPayIPN).Methods("GET").Name("payments.vnpay.ipn")
	r.HandleFunc("/payments/vnpay/return", h.VNPayReturn).Methods("GET").Name("payments.vnpay.return")
	r.HandleFunc("/payments/momo/ipn", h.MoMoIPN).Methods("POST").Name("payments.momo.ipn")
	r.HandleFunc("/payments/momo/return", h.MoMoReturn).Methods("GET").Name("payments.momo.return")

	// Back-office API, bearer-token authenticated.
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireAdmin)
	adminRouter.HandleFunc("/orders/{id}", h.AdminGetOrder).Methods("GET").Name("admin.orders.get")
	adminRouter.HandleFunc("/orders/{id}/status", h.AdminUpdateOrderStatus).Methods("POST").Name("admin.orders.status")
	adminRouter.HandleFunc("/returns/{id}/decision", h.AdminDecideReturn).Methods("POST").Name("admin.returns.decision")
	adminRouter.HandleFunc("/wallets/{userID}", h.AdminWalletStatement).Methods("GET").Name("admin.wallets.get")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
