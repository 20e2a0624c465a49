// ogtix-repair re-runs ticket issuance over every paid order. It is the
// crash-recovery companion of the payment webhook: run it from cron or by
// hand after an incident and the ticket table converges. Exit code is
// always zero so a schedule never alerts on per-item failures, which are
// logged and retried on the next run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirinyoku/ogtix/internal/config"
	"github.com/kirinyoku/ogtix/internal/postgres"
	postgresrepo "github.com/kirinyoku/ogtix/internal/repository/postgres"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
	"github.com/kirinyoku/ogtix/internal/vault"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(0)
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	ctx := context.Background()

	pool, err := postgres.New(ctx, postgres.Config{DSN: dsn})
	if err != nil {
		logger.Error("failed to initialize postgres", "error", err)
		os.Exit(0)
	}
	defer pool.Close()

	vlt, err := vault.New(cfg.Keys)
	if err != nil {
		logger.Error("failed to initialize vault", "error", err)
		os.Exit(0)
	}

	store := postgresrepo.NewStore(pool)
	svc := tickets.New(store, nil, vlt, logger, tickets.Config{})

	created, skipped, err := svc.Reconcile(ctx)
	if err != nil {
		logger.Error("reconcile failed", "error", err)
		os.Exit(0)
	}

	logger.Info("reconcile finished", "created", created, "skipped", skipped)
}
