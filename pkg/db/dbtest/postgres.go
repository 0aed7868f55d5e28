// Package dbtest starts a throwaway Postgres with pgvector for integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image    = "pgvector/pgvector:pg16"
	user     = "postgres"
	password = "password"
	database = "persona_test"
)

// PostgresContainer is a running pgvector container.
type PostgresContainer struct {
	container testcontainers.Container
	logger    *log.Logger
	URL       string
}

// StartPostgres starts the container and waits until it accepts connections.
// A missing Docker daemon is reported as an error.
func StartPostgres(ctx context.Context, logger *log.Logger) (pc *PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker provider unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       database,
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
		},
		WaitingFor: wait.ForAll(
			// Postgres logs readiness twice: once for the init server, once for the real one.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), database)
	if err := waitForPing(ctx, url); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	logger.Info("Postgres test container ready", "host", host, "port", port.Port(), "image", image)
	return &PostgresContainer{container: container, logger: logger, URL: url}, nil
}

func waitForPing(ctx context.Context, url string) error {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return fmt.Errorf("open test database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var pingErr error
	for attempt := 0; attempt < 20; attempt++ {
		if pingErr = conn.PingContext(ctx); pingErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("test database never answered: %w", pingErr)
}

// Terminate stops and removes the container.
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	if pc == nil || pc.container == nil {
		return nil
	}
	if err := pc.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate container: %w", err)
	}
	pc.logger.Info("Postgres test container terminated")
	return nil
}
