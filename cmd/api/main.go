package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/josh-kwaku/corebank/internal/config"
	"github.com/josh-kwaku/corebank/internal/domain"
	"github.com/josh-kwaku/corebank/internal/handler"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/metrics"
	"github.com/josh-kwaku/corebank/internal/middleware"
	"github.com/josh-kwaku/corebank/internal/repository"
	"github.com/josh-kwaku/corebank/internal/service"
	"github.com/josh-kwaku/corebank/internal/service/paylink"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

const idempotencyCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("corebank-api", cfg.LogLevel, cfg.AppEnv)

	pool, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := repository.NewDB(pool, cfg.LockTimeout())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	partyRepo := repository.NewPartyRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	intentRepo := repository.NewIntentRepository(pool)
	eventRepo := repository.NewIntentEventRepository(pool)
	paylinkRepo := repository.NewPaylinkRepository(pool)
	cardRepo := repository.NewCardRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	partySvc := service.NewPartyService(partyRepo)
	accountSvc := service.NewAccountService(accountRepo, partyRepo, transactionRepo, db)
	paymentSvc := payment.NewService(
		accountRepo, transactionRepo, intentRepo, eventRepo, paylinkRepo,
		payment.NewLocalCardAuthorizer(cardRepo, domain.NewCardHasher(cfg.CardHashKey), nil),
		db,
		payment.WithMetrics(rec),
	)
	issuer := paylink.NewIssuer(
		paylinkRepo, accountRepo, intentRepo, paymentSvc,
		cfg.PaylinkBaseURL, cfg.PaylinkDefaultTTL,
		paylink.WithMetrics(rec),
	)

	partyHandler := handler.NewPartyHandler(partySvc)
	accountHandler := handler.NewAccountHandler(accountSvc)
	transferHandler := handler.NewTransferHandler(paymentSvc)
	intentHandler := handler.NewIntentHandler(paymentSvc, issuer)
	paylinkHandler := handler.NewPaylinkHandler(issuer)
	healthHandler := handler.NewHealthHandler(db)

	authMw := middleware.Auth(cfg.JWTSecret)
	idempotencyMw := middleware.Idempotency(idempotencyRepo)
	limiter := middleware.NewRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst, rec)

	operator := func(h http.HandlerFunc) http.Handler { return authMw(h) }
	idempotent := func(h http.HandlerFunc) http.Handler { return authMw(idempotencyMw(h)) }
	public := func(h http.HandlerFunc) http.Handler { return limiter.Middleware(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", metrics.Handler(reg))

	mux.Handle("POST /api/v1/parties", operator(partyHandler.Register))
	mux.Handle("GET /api/v1/parties", operator(partyHandler.List))
	mux.Handle("GET /api/v1/parties/{id}", operator(partyHandler.Get))

	mux.Handle("POST /api/v1/accounts", operator(accountHandler.Open))
	mux.Handle("GET /api/v1/accounts", operator(accountHandler.List))
	mux.Handle("GET /api/v1/accounts/{number}", operator(accountHandler.Get))
	mux.Handle("POST /api/v1/accounts/{number}/close", operator(accountHandler.Close))
	mux.Handle("GET /api/v1/accounts/{number}/transactions", operator(accountHandler.Transactions))

	mux.Handle("POST /api/v1/transfers", idempotent(transferHandler.Create))

	mux.Handle("POST /api/v1/payment-intents", idempotent(intentHandler.Create))
	mux.Handle("GET /api/v1/payment-intents/{id}", operator(intentHandler.Get))
	mux.Handle("GET /api/v1/payment-intents/{id}/events", operator(intentHandler.Events))
	mux.Handle("POST /api/v1/payment-intents/{id}/confirm", operator(intentHandler.Confirm))
	mux.Handle("POST /api/v1/payment-intents/{id}/cancel", operator(intentHandler.Cancel))

	mux.Handle("POST /api/v1/paylinks", operator(paylinkHandler.Issue))
	mux.Handle("POST /api/v1/paylinks/{slug}/expire", operator(paylinkHandler.Expire))

	mux.Handle("GET /pay/{slug}", public(paylinkHandler.Resolve))
	mux.Handle("POST /pay/{slug}", public(paylinkHandler.Pay))

	var h http.Handler = mux
	h = middleware.Recovery(h)
	h = middleware.Logging(h)
	h = rec.Instrument(h)
	h = middleware.Tracing(h)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	sweeper := paylink.NewSweeper(intentRepo, paymentSvc, logger.With("component", "paylink-sweeper"), cfg.PaylinkSweepInterval, rec)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(bgCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanIdempotencyCache(bgCtx, idempotencyRepo, logger)
	}()

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	stopBackground()
	wg.Wait()
	slog.Info("server stopped")
}

type expiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func cleanIdempotencyCache(ctx context.Context, repo expiredCleaner, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencyCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				logger.Error("idempotency cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("idempotency cache cleaned", "deleted", n)
			}
		}
	}
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeS) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second,
		ApplicationName: "corebank-api",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return repository.OpenPostgres(ctx, cfg.DatabaseURL, pool, 30, time.Second)
}
