package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Dan9191/finance-tracker/internal/config"
	"github.com/Dan9191/finance-tracker/internal/handler"
	"github.com/Dan9191/finance-tracker/internal/repository"
	"github.com/Dan9191/finance-tracker/internal/service"
	"github.com/Dan9191/finance-tracker/internal/store"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize the table store backend
	backend, cleanup, err := openBackend(cfg)
	if err != nil {
		logger.Fatalf("Failed to open table store: %v", err)
	}
	defer cleanup()

	// Retry on transient failures, then share a short-lived read cache.
	retried := store.NewRetrier(backend, cfg.RetryMax, cfg.RetryBase, logger)
	cached := store.NewCache(retried, cfg.CacheTTL)

	// Initialize layers
	repo := repository.NewRepository(cached, logger)
	if err := repo.EnsureTables(context.Background()); err != nil {
		logger.Fatalf("Failed to initialize tables: %v", err)
	}
	svc := service.NewService(repo, logger, cfg)
	h := handler.NewHandler(svc, logger)

	// Optional scheduled reconciliation of the balance projection
	if cfg.ReconcileSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.ReconcileSchedule, func() {
			if _, err := svc.RecomputeBalances(context.Background()); err != nil {
				logger.Errorf("Scheduled reconciliation failed: %v", err)
			}
		})
		if err != nil {
			logger.Fatalf("Invalid RECONCILE_SCHEDULE: %v", err)
		}
		c.Start()
		defer c.Stop()
	}

	// Setup router
	r := mux.NewRouter()
	h.Register(r)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

// openBackend selects the table store from configuration.
func openBackend(cfg *config.Config) (store.TableStore, func(), error) {
	noop := func() {}
	switch cfg.DBDriver {
	case "memory":
		return store.NewMemory(), noop, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to ping database: %w", err)
		}
		st, err := store.NewPostgres(db)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return st, func() { db.Close() }, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", cfg.DBConn))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to ping database: %w", err)
		}
		st, err := store.NewSQLite(db)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return st, func() { db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
