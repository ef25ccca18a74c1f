package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avatarly/payments/internal/auth"
	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/handler"
	"github.com/avatarly/payments/internal/infra"
	"github.com/avatarly/payments/internal/ledger"
	"github.com/avatarly/payments/internal/policy"
	"github.com/avatarly/payments/internal/provider"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/service"
	"github.com/avatarly/payments/internal/txlog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return err
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	gatewayTimeout, err := time.ParseDuration(cfg.GatewayTimeout)
	if err != nil {
		return fmt.Errorf("parse GATEWAY_TIMEOUT: %w", err)
	}
	jwtExpiry, err := time.ParseDuration(cfg.JWTUserExpiry)
	if err != nil {
		return fmt.Errorf("parse JWT_USER_EXPIRY: %w", err)
	}

	gateway := provider.NewRazorpayProvider(
		cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret,
		gatewayTimeout, logger)
	jwtManager := auth.NewManager(cfg.JWTSecret, jwtExpiry)

	payments := repository.NewPaymentRepository()
	transactions := repository.NewTransactionRepository()
	events := repository.NewEventRepository()
	users := repository.NewUserRepository()
	subscriptions := repository.NewSubscriptionRepository()
	deliveries := repository.NewWebhookDeliveryRepository()
	outbox := repository.NewOutboxRepository()

	recorder := txlog.NewRecorder(pool, events, logger)
	creditLedger := ledger.New(users, transactions, outbox, logger)
	subscriptionService := service.NewSubscriptionService(subscriptions, logger)

	orderService := service.NewOrderService(pool, gateway, payments, transactions, users,
		recorder, domain.DefaultCatalog(), policy.DefaultFeeSchedule(), policy.DefaultPurchaseLimits(), logger)
	verificationService := service.NewVerificationService(pool, gateway, payments, transactions,
		outbox, creditLedger, subscriptionService, recorder, logger)
	webhookService := service.NewWebhookService(pool, gateway, payments, transactions,
		outbox, deliveries, verificationService, recorder, logger)
	refundService := service.NewRefundService(pool, transactions, outbox, creditLedger, recorder, logger)
	creditService := service.NewCreditService(pool, users, transactions, creditLedger, recorder, logger)

	router := handler.NewRouter(pool, jwtManager,
		handler.NewPaymentHandler(orderService, verificationService, refundService, recorder, logger),
		handler.NewCreditHandler(creditService, logger),
		handler.NewWebhookHandler(webhookService, logger),
		logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
