package fx

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/EternisAI/persona-twin/pkg/bootstrap"
	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/logging"
	"github.com/EternisAI/persona-twin/pkg/store"
)

const connectTimeout = 30 * time.Second

// DatabaseModule provides the dependency container and the store it owns.
var DatabaseModule = fx.Module("database",
	fx.Provide(
		ProvideDeps,
		ProvideStore,
	),
)

// ProvideDeps connects, migrates and closes the pool on shutdown.
func ProvideDeps(lc fx.Lifecycle, envs *config.Config, logs *logging.Factory) (*bootstrap.Deps, error) {
	logger := logs.ForDatabase("db.lifecycle")

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	deps, err := bootstrap.New(ctx, bootstrap.NewInput{Config: envs, Logs: logs, Migrate: true})
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	logger.Info("Database ready", "elapsed", time.Since(start))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing database pool")
			return deps.Close()
		},
	})
	return deps, nil
}

func ProvideStore(deps *bootstrap.Deps) *store.Store {
	return deps.Store
}
