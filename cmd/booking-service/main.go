package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rental-platform/internal/booking"
	"rental-platform/internal/config"
	"rental-platform/internal/httpapi"
	"rental-platform/internal/service"
	"rental-platform/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	pricing := service.NewPricingService(service.FlatRateTax{Rate: cfg.TaxRate})
	orderNumbers := service.NewOrderNumberGenerator(cfg.OrderPrefix)

	coordinator := booking.NewCoordinator(st, pricing, orderNumbers, logger)
	coordinator.SetRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff)

	availability := service.NewAvailabilityService(st)
	ledger := service.NewLedgerService(st)

	handler := httpapi.NewHandler(coordinator, availability, ledger, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("booking service listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return store.NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	logger.Info("using postgres store")
	return pg, nil
}
