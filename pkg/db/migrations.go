package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

func setupGoose(logger *log.Logger) error {
	goose.SetLogger(logger)
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// RunMigrations runs all pending migrations automatically.
func RunMigrations(db *sql.DB, logger *log.Logger) error {
	if err := setupGoose(logger); err != nil {
		return err
	}

	logger.Info("Running database migrations...")
	err := goose.Up(db, migrationsDir)
	if err != nil {
		logger.Error("Database migrations failed", "error", err)
		return err
	}
	logger.Info("Database migrations completed successfully")
	return nil
}

// ResetSchema rolls every migration back and applies them again. All data is lost.
func ResetSchema(db *sql.DB, logger *log.Logger) error {
	if err := setupGoose(logger); err != nil {
		return err
	}

	logger.Warn("Resetting database schema")
	if err := goose.Reset(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to re-apply migrations: %w", err)
	}
	logger.Info("Database schema reset")
	return nil
}

// MigrationVersion returns the current applied version.
func MigrationVersion(db *sql.DB, logger *log.Logger) (int64, error) {
	if err := setupGoose(logger); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
