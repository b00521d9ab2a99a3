package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andrenbrandao/ledger/pkg/config"
	"github.com/andrenbrandao/ledger/pkg/database"
	"github.com/andrenbrandao/ledger/pkg/handlers"
	"github.com/andrenbrandao/ledger/pkg/logger"
	"github.com/andrenbrandao/ledger/pkg/repositories"
	"github.com/andrenbrandao/ledger/pkg/services"
	"github.com/andrenbrandao/ledger/pkg/telemetry"
)

// store is what the HTTP layer needs from a backend.
type store interface {
	services.AccountStore
	handlers.Pinger
}

func main() {
	seed := flag.Bool("seed", false, "seed the default accounts before serving")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, seed bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	cfg.Store.Seed = cfg.Store.Seed || seed

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cfg.OTelEnabled {
		shutdown, err := telemetry.Setup("ledger")
		if err != nil {
			return fmt.Errorf("configure opentelemetry: %w", err)
		}
		defer shutdown()
	}

	accounts, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	ledger := services.NewTransactionService(accounts, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(ledger, accounts, log),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening to requests", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore builds the configured AccountStore and returns a function that
// releases its connections.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return repositories.NewMemoryAccountRepository(database.DefaultAccounts...), func() {}, nil

	case config.DriverMySQL:
		db, err := database.OpenMySQL(ctx, database.MySQLConfig{
			DSN:             cfg.Store.MySQLDSN,
			MaxConns:        int(cfg.Store.MaxConns),
			ConnectAttempts: cfg.Store.ConnectAttempts,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() { _ = database.CloseMySQL(db) }

		repo := repositories.NewMySQLAccountRepository(db, cfg.Store.AcquireTimeout)
		if cfg.Store.RunMigrations {
			if err := repo.AutoMigrate(ctx); err != nil {
				closeDB()
				return nil, nil, fmt.Errorf("migrate mysql: %w", err)
			}
		}
		if cfg.Store.Seed {
			if err := repo.Seed(ctx, database.DefaultAccounts); err != nil {
				closeDB()
				return nil, nil, err
			}
			log.Info("seeded default accounts", zap.Int("count", len(database.DefaultAccounts)))
		}
		return repo, closeDB, nil

	default:
		pool, err := database.Connect(ctx, database.PostgresConfig{
			URL:             cfg.Store.DatabaseURL,
			MaxConns:        cfg.Store.MaxConns,
			ConnectAttempts: cfg.Store.ConnectAttempts,
			Tracing:         cfg.OTelEnabled,
		}, log)
		if err != nil {
			return nil, nil, err
		}

		if cfg.Store.RunMigrations {
			if err := database.Migrate(pool, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		if cfg.Store.Seed {
			if err := database.Seed(ctx, pool, database.DefaultAccounts); err != nil {
				pool.Close()
				return nil, nil, err
			}
			log.Info("seeded default accounts", zap.Int("count", len(database.DefaultAccounts)))
		}
		return repositories.NewAccountRepository(pool, cfg.Store.AcquireTimeout), pool.Close, nil
	}
}
