package fx

import (
	"context"

	"github.com/charmbracelet/log"
	"go.uber.org/fx"

	"github.com/EternisAI/persona-twin/pkg/bootstrap"
)

// AIModule provides the lazy embedding client and checks the embedding
// configuration before the server accepts traffic.
var AIModule = fx.Module("ai",
	fx.Provide(
		ProvideEmbedder,
	),
	fx.Invoke(VerifyEmbedder),
)

func ProvideEmbedder(deps *bootstrap.Deps) *bootstrap.LazyEmbedder {
	return deps.LazyEmbedder()
}

// VerifyEmbedder builds the provider at start so a dimension mismatch fails startup.
func VerifyEmbedder(lc fx.Lifecycle, deps *bootstrap.Deps, logger *log.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			provider, err := deps.Embedder()
			if err != nil {
				logger.Error("Embedding provider unavailable", "error", err)
				return err
			}
			logger.Info("Embedding provider verified", "backend", provider.Backend(), "dimensions", provider.Dimensions())
			return nil
		},
	})
}
