package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vietcartapp/vietcart/app"
	"github.com/vietcartapp/vietcart/server"
)

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	application, err := app.New()
	if err != nil {
		fallbackLogger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		application.Logger.Error("failed to initialize server", "error", err)
		application.Close()
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			application.Logger.Error("server failed", "error", err)
			application.Close()
			os.Exit(1)
		}
	case sig := <-quit:
		application.Logger.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Close(shutdownCtx); err != nil {
		application.Logger.Error("server shutdown failed", "error", err)
	}

	application.Close()
}
