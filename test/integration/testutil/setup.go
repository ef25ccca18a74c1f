//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/auth"
	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/handler"
	"github.com/avatarly/payments/internal/ledger"
	"github.com/avatarly/payments/internal/policy"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/service"
	"github.com/avatarly/payments/internal/txlog"
)

const (
	TestJWTSecret     = "integration-test-jwt-secret-32ch"
	TestKeySecret     = "test_rzp_key_secret"
	TestWebhookSecret = "test_rzp_webhook_secret"
	TestDBHost        = "localhost"
	TestDBPort        = 5435
	TestDBUser        = "avatarly"
	TestDBPass        = "avatarly"
	TestDBName        = "avatarly_payments_test"
)

// TestEnv holds all resources for one integration test.
type TestEnv struct {
	Server  *httptest.Server
	Pool    *pgxpool.Pool
	JWTMgr  *auth.Manager
	Gateway *StubGateway
	t       *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "avatarly")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}
	if !exists {
		if _, err := bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName)); err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func findProjectRoot() string {
	dir, _ := os.Getwd()
	for dir != "" && dir != "/" {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return "."
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
			return
		}

		if err := runMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			sharedPool.Close()
			sharedPool = nil
			return
		}
	})
	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment: real router and database, stubbed
// gateway.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	gateway := NewStubGateway()
	jwtMgr := auth.NewManager(TestJWTSecret, 24*time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

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

	router := handler.NewRouter(pool, jwtMgr,
		handler.NewPaymentHandler(orderService, verificationService, refundService, recorder, logger),
		handler.NewCreditHandler(creditService, logger),
		handler.NewWebhookHandler(webhookService, logger),
		logger)

	server := httptest.NewServer(router)

	env := &TestEnv{
		Server:  server,
		Pool:    pool,
		JWTMgr:  jwtMgr,
		Gateway: gateway,
		t:       t,
	}

	t.Cleanup(func() {
		server.Close()
		env.CleanAll()
	})

	env.CleanAll()
	return env
}
