package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/config"
	"github.com/demilade-ak/vaultbank/internal/gateway"
	"github.com/demilade-ak/vaultbank/internal/handler"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/logging"
	"github.com/demilade-ak/vaultbank/internal/middleware"
	"github.com/demilade-ak/vaultbank/internal/policy"
	"github.com/demilade-ak/vaultbank/internal/repository"
	"github.com/demilade-ak/vaultbank/internal/service/loan"
	"github.com/demilade-ak/vaultbank/internal/service/notify"
	"github.com/demilade-ak/vaultbank/internal/service/reconcile"
	"github.com/demilade-ak/vaultbank/internal/service/transfer"
	"github.com/demilade-ak/vaultbank/internal/service/transfercode"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("vaultbank-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	offerRepo := repository.NewLoanOfferRepository(db)
	codeRepo := repository.NewTransferCodeRepository(db)
	paymentRepo := repository.NewGatewayPaymentRepository(db)
	eventRepo := repository.NewGatewayEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	ledgerStore := ledger.NewStore(walletRepo, txnRepo, db)
	verifier := kyc.NewService(userRepo)
	outbox := notify.NewOutbox(notificationRepo)

	fees := policy.NewFeeSchedule(
		mustDecimal(cfg.DomesticFeeRate),
		mustDecimal(cfg.InternationalFeeRate),
		mustDecimal(cfg.MinTransferFee),
	)
	limits := policy.NewLimitChecker(txnRepo,
		mustDecimal(cfg.SingleTransferLimit),
		mustDecimal(cfg.DailyTransferLimit),
		mustDecimal(cfg.MonthlyTransferLimit),
	)

	codeService := transfercode.NewService(codeRepo, settingsRepo)
	transferService := transfer.NewService(
		transferRepo, walletRepo, ledgerStore, fees, limits,
		codeService, settingsRepo, verifier, outbox, db,
	)
	loanService := loan.NewService(
		loanRepo, offerRepo, walletRepo, ledgerStore, verifier, outbox,
		mustDecimal(cfg.MinLoanRepayment), db,
	)
	providerClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayCallbackURL)
	fundingService := reconcile.NewService(
		paymentRepo, walletRepo, userRepo, ledgerStore, providerClient,
		verifier, outbox, cfg.GatewayProvider, db,
	)

	webhookProcessor := reconcile.NewProcessor(eventRepo, fundingService, logger,
		time.Duration(cfg.WebhookPollIntervalS)*time.Second)
	dispatcher := notify.NewDispatcher(notificationRepo, notify.NewLogSender(logger), logger,
		time.Duration(cfg.OutboxPollIntervalS)*time.Second)

	router := handler.NewRouter(handler.RouterDeps{
		Health:        handler.NewHealthHandler(db),
		Wallets:       handler.NewWalletHandler(walletRepo, txnRepo),
		Transfers:     handler.NewTransferHandler(transferService),
		Loans:         handler.NewLoanHandler(loanService),
		TransferCodes: handler.NewTransferCodeHandler(codeService),
		Funding:       handler.NewFundingHandler(fundingService),
		Webhooks:      handler.NewWebhookHandler(eventRepo, cfg.WebhookSecret),

		Auth:         middleware.Auth(cfg.JWTSecret),
		RequireAdmin: middleware.RequireAdmin,
		Idempotency:  middleware.Idempotency(idempotencyRepo),
	})

	chain := middleware.Tracing(middleware.Logging(middleware.Recovery(router)))

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go webhookProcessor.Start(bgCtx)
	go dispatcher.Start(bgCtx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var db *sql.DB
	var err error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.Error("invalid decimal in config", "value", s, "error", err)
		os.Exit(1)
	}
	return d
}
