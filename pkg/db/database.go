package db

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

type OpenInput struct {
	DatabaseURL string
	Logger      *log.Logger
	// Migrate applies pending migrations after connecting.
	Migrate bool
}

// Open connects to Postgres and optionally migrates.
func Open(ctx context.Context, input OpenInput) (*sqlx.DB, error) {
	if input.DatabaseURL == "" {
		return nil, apperr.Configuration("db", "database url is empty")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, err := sqlx.Open("postgres", input.DatabaseURL)
	if err != nil {
		return nil, apperr.Configuration("db", "open: %v", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, apperr.BackendUnavailable("db", fmt.Errorf("failed to ping database: %w", err))
	}
	input.Logger.Info("Successfully connected to database")

	if input.Migrate {
		if err := RunMigrations(conn.DB, input.Logger); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	return conn, nil
}
