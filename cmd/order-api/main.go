package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/gorder-store/cmd/order-api/app"
	"github.com/aq2208/gorder-store/configs"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environments inject variables directly
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.Init(logging.Options{
		Component: cfg.App.Name,
		Level:     cfg.App.LogLevel,
		FilePath:  cfg.App.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	go func() {
		logger.Info("order-api listening", "env", env, "addr", cfg.App.HTTPAddr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
}
