package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finitefield.org/storefront/internal/app"
	"finitefield.org/storefront/internal/httpserver"
	"finitefield.org/storefront/internal/inventory"
	"finitefield.org/storefront/internal/logistics"
	"finitefield.org/storefront/internal/notify"
	"finitefield.org/storefront/internal/platform/config"
	"finitefield.org/storefront/internal/platform/observability"
	"finitefield.org/storefront/internal/platform/restclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", invalid.Fields())
		} else {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	inventorySvc, logisticsSvc, err := buildServices(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise remote services", zap.Error(err))
	}

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	ctrl, err := app.New(app.Deps{
		Inventory: inventorySvc,
		Logistics: logisticsSvc,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to initialise controller", zap.Error(err))
	}

	if err := ctrl.Reload(ctx); err != nil {
		logger.Warn("initial load incomplete", zap.Error(err))
	}

	server := httpserver.New(httpserver.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Logger:       logger.Named("http"),
	}, ctrl)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("storefront listening",
		zap.String("address", cfg.Server.Address),
		zap.Bool("static_services", cfg.Features.UseStaticServices),
		zap.Bool("events", cfg.Events.Enabled()),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
	logger.Info("storefront stopped")
}

func buildServices(cfg config.Config, logger *zap.Logger) (inventory.Service, logistics.Service, error) {
	if cfg.Features.UseStaticServices {
		logger.Info("using static inventory and logistics fixtures")
		products, err := inventory.NewSeededStaticService()
		if err != nil {
			return nil, nil, err
		}
		tariffs, err := logistics.NewSeededStaticService()
		if err != nil {
			return nil, nil, err
		}
		return products, tariffs, nil
	}

	opts := []restclient.Option{
		restclient.WithTimeout(cfg.Remote.Timeout),
		restclient.WithLogger(logger.Named("remote")),
	}
	products, err := inventory.NewHTTPService(cfg.Remote.InventoryBaseURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("inventory: %w", err)
	}
	tariffs, err := logistics.NewHTTPService(cfg.Remote.LogisticsBaseURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("logistics: %w", err)
	}
	return products, tariffs, nil
}

func buildNotifier(cfg config.Config, logger *zap.Logger) (notify.Notifier, func()) {
	logNotifier := notify.NewLogNotifier(logger.Named("events"))
	if !cfg.Events.Enabled() {
		return logNotifier, func() {}
	}

	publisher, err := notify.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		logger.Warn("amqp publisher unavailable; events are logged only", zap.Error(err))
		return logNotifier, func() {}
	}
	logger.Info("publishing events to amqp", zap.String("exchange", cfg.Events.Exchange))
	return notify.Multi{logNotifier, publisher}, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("amqp close error", zap.Error(err))
		}
	}
}
