package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/vietcartapp/vietcart/internal/auth"
	"github.com/vietcartapp/vietcart/internal/cache"
	"github.com/vietcartapp/vietcart/internal/config"
	"github.com/vietcartapp/vietcart/internal/db"
	"github.com/vietcartapp/vietcart/internal/email"
	"github.com/vietcartapp/vietcart/internal/gateway"
	"github.com/vietcartapp/vietcart/internal/gatewayconf"
	"github.com/vietcartapp/vietcart/internal/ghn"
	"github.com/vietcartapp/vietcart/internal/handlers"
	"github.com/vietcartapp/vietcart/internal/logging"
	"github.com/vietcartapp/vietcart/internal/observability"
	"github.com/vietcartapp/vietcart/internal/queue"
	"github.com/vietcartapp/vietcart/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	QueueProvider queue.Provider
	Handlers      *handlers.Handlers

	followupCancel context.CancelFunc
	sentryEnabled  bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
		sentryEnabled = true
	}

	logger := newLogger(cfg, sentryEnabled)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	queueProvider, err := queue.NewProvider(queue.Config{
		Provider: cfg.QueueProvider,
		AMQPURL:  cfg.AmqpURL,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize queue provider: %w", err)
	}

	teardown := func() {
		closeQueueProvider(logger, queueProvider)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.ResendAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	emailSender, err := services.NewTemplateEmailSender(emailProvider)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	policy, err := loadProvidersPolicy(cfg)
	if err != nil {
		teardown()
		return nil, err
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		teardown()
		return nil, err
	}

	orderStore := db.NewOrderStore(database)
	paymentStore := db.NewPaymentStore(database)
	walletStore := db.NewWalletStore(database)
	discountStore := db.NewDiscountStore(database)
	shippingStore := db.NewShippingStore(database)
	returnStore := db.NewReturnStore(database)

	shippingClient, err := buildShippingClient(cfg, logger)
	if err != nil {
		teardown()
		return nil, err
	}

	walletService := services.NewWalletService(walletStore, cfg.RewardRateBps, logger.With("component", "wallet_service"))
	executor := services.NewExecutor(
		shippingStore,
		discountStore,
		walletService,
		shippingClient,
		emailSender,
		queueProvider,
		logger.With("component", "executor"),
	)
	discountGuard := services.NewDiscountGuard(discountStore, orderStore, logger.With("component", "discount_guard"))
	reconcileService := services.NewReconcileService(paymentStore, orderStore, cacheProvider, cfg.AllowUnverifiedReturn, logger.With("component", "reconcile_service"))

	methodAdapters := make(map[db.PaymentMethod]gateway.Adapter, len(adapters))
	for name, adapter := range adapters {
		methodAdapters[db.PaymentMethod(name)] = adapter
	}
	checkoutService := services.NewCheckoutService(orderStore, paymentStore, discountGuard, methodAdapters, policy, logger.With("component", "checkout_service"))
	returnService := services.NewReturnService(returnStore, orderStore, executor, logger.With("component", "return_service"))
	adminService := services.NewAdminOrderService(orderStore, shippingStore, executor, emailSender, logger.With("component", "admin_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		Adapters:         adapters,
		ReconcileService: reconcileService,
		CheckoutService:  checkoutService,
		ReturnService:    returnService,
		AdminService:     adminService,
		WalletService:    walletService,
		Executor:         executor,
		Verifier:         auth.NewVerifier(cfg.AdminJWTSecret),
		Logger:           logger,
	})
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	followupCtx, followupCancel := context.WithCancel(context.Background())
	followup := services.NewFollowupWorker(orderStore, executor, queueProvider, logger.With("component", "followup_worker"))
	go func() {
		if err := followup.Run(followupCtx); err != nil && followupCtx.Err() == nil {
			logger.Error("followup worker stopped", "error", err)
		}
	}()

	return &App{
		Config:         cfg,
		Logger:         logger,
		DB:             database,
		CacheProvider:  cacheProvider,
		QueueProvider:  queueProvider,
		Handlers:       h,
		followupCancel: followupCancel,
		sentryEnabled:  sentryEnabled,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.followupCancel != nil {
		a.followupCancel()
	}
	if a.QueueProvider != nil {
		closeQueueProvider(a.Logger, a.QueueProvider)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

// buildAdapters wires one gateway adapter per configured provider. A provider
// without credentials is simply absent; checkout rejects its method.
func buildAdapters(cfg *config.Config) (map[string]gateway.Adapter, error) {
	adapters := make(map[string]gateway.Adapter)

	if cfg.VNPayEnabled() {
		adapters["vnpay"] = gateway.NewVNPayAdapter(
			cfg.VNPayTmnCode,
			cfg.VNPayHashSecret,
			cfg.VNPayPayURL,
			cfg.BaseURL+"/payments/vnpay/return",
		)
	}
	if cfg.MoMoEnabled() {
		adapters["momo"] = gateway.NewMoMoAdapter(
			cfg.MoMoPartnerCode,
			cfg.MoMoAccessKey,
			cfg.MoMoSecretKey,
			cfg.MoMoEndpoint,
			cfg.BaseURL+"/payments/momo/return",
			cfg.BaseURL+"/payments/momo/ipn",
			observability.NewHTTPClient(30*time.Second),
		)
	}
	return adapters, nil
}

func buildShippingClient(cfg *config.Config, logger *slog.Logger) (services.ShippingClient, error) {
	if strings.TrimSpace(cfg.GHNToken) == "" {
		return nil, fmt.Errorf("GHN_TOKEN is required")
	}
	shopID, err := strconv.Atoi(strings.TrimSpace(cfg.GHNShopID))
	if err != nil {
		return nil, fmt.Errorf("GHN_SHOP_ID must be numeric: %w", err)
	}
	client := ghn.NewClient(
		cfg.GHNToken,
		shopID,
		cfg.GHNEndpoint,
		observability.NewHTTPClient(30*time.Second),
		logger.With("component", "ghn_client"),
	)
	return client, nil
}

func loadProvidersPolicy(cfg *config.Config) (*gatewayconf.ProvidersConfig, error) {
	if strings.TrimSpace(cfg.ProvidersFile) == "" {
		return gatewayconf.Default(), nil
	}
	policy, err := gatewayconf.NewParser().ParseFile(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers file: %w", err)
	}
	return policy, nil
}

func newLogger(cfg *config.Config, sentryEnabled bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if !sentryEnabled {
		return slog.New(console)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(logging.MultiHandler(console, sentryHandler))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}

func closeQueueProvider(logger *slog.Logger, provider queue.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close queue provider", "error", err)
	}
}
