package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kirinyoku/ogtix/db"
	"github.com/kirinyoku/ogtix/internal/config"
)

func main() {
	var (
		upFlag   = flag.Bool("up", false, "apply pending migrations")
		downFlag = flag.Bool("down", false, "roll back one migration")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
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

	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		logger.Error("failed to load migrations", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		logger.Error("failed to initialize migrate", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch {
	case *upFlag:
		err = m.Up()
	case *downFlag:
		err = m.Steps(-1)
	default:
		fmt.Println("usage: ogtix-migrate -up | -down")
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations applied")
}
