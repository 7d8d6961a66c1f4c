// Command server runs the investment platform HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/ameer851/axix-finance-sub002/internal/app"
	"github.com/ameer851/axix-finance-sub002/internal/app/config"
	"github.com/ameer851/axix-finance-sub002/internal/app/httpapi"
	"github.com/ameer851/axix-finance-sub002/internal/app/metrics"
	"github.com/ameer851/axix-finance-sub002/internal/app/migrations"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage/postgres"
	"github.com/ameer851/axix-finance-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatalf("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		store := postgres.New(db)
		stores.Transactions = store
		stores.Ledger = store
		log.Info("using postgres store")
	} else {
		log.Info("no DATABASE_DSN set, using in-memory store")
	}

	planList, err := cfg.LoadPlans()
	if err != nil {
		return err
	}

	application, err := app.New(stores, app.Options{
		Plans:              planList,
		AdminUserIDs:       cfg.Auth.AdminUserIDs,
		WithdrawFeePercent: cfg.WithdrawFeePercent,
		AccrualEnabled:     cfg.Accrual.Enabled,
		AccrualSchedule:    cfg.Accrual.Schedule,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	handler := httpapi.NewHandler(application)
	handler = httpapi.AuthMiddleware(cfg.Auth.JWTSecret)(handler)
	handler = httpapi.CORSMiddleware(handler)
	handler = metrics.InstrumentHandler(handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("service shutdown")
	}
	return nil
}
