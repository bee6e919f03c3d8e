package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/lending-ledger/internal/cache"
	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/handler"
	"github.com/segyhp/lending-ledger/internal/middleware"
	"github.com/segyhp/lending-ledger/internal/repository"
	"github.com/segyhp/lending-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize repositories
	txManager := repository.NewTxManager(db)
	borrowerRepo := repository.NewBorrowerRepository(db)
	userRepo := repository.NewUserRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Initialize services
	borrowerService := service.NewBorrowerService(borrowerRepo)
	userService := service.NewUserService(userRepo, cfg)
	ledgerService := service.NewLedgerService(txManager, loanRepo, paymentRepo, borrowerService, userService, initLoanCache(cfg, redisClient), cfg)
	reportService := service.NewReportService(txManager, loanRepo, paymentRepo, cfg)

	// Setup routes
	validate := handler.NewValidator()
	router := handler.NewRouter(handler.Handlers{
		Health:    handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout()),
		Users:     handler.NewUserHandler(userService, validate, !cfg.IsDevelopment()),
		Borrowers: handler.NewBorrowerHandler(borrowerService, validate),
		Loans:     handler.NewLoanHandler(ledgerService, validate),
		Payments:  handler.NewPaymentHandler(ledgerService, reportService, validate, cfg.GetLocation()),
		Reports:   handler.NewReportHandler(reportService, cfg.GetLocation()),
	}, userService, middleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMin))

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "addr", server.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := repository.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initRedis returns nil when the cache is disabled.
func initRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func initLoanCache(cfg *config.Config, client *redis.Client) cache.LoanCache {
	if client == nil {
		slog.Info("loan cache disabled")
		return cache.NewNopLoanCache()
	}
	return cache.NewRedisLoanCache(client, cfg.Redis.CacheTTL)
}
