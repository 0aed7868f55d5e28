package fx

import (
	"github.com/charmbracelet/log"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// AppModule combines all modules for the HTTP server.
var AppModule = fx.Options(
	// Infrastructure layer - config, logging, database
	InfrastructureModule,
	DatabaseModule,

	// AI layer - embeddings and completions
	AIModule,

	// Services layer - chat
	ServicesModule,

	// Server layer - HTTP API
	ServerModule,
)

// WithCharmLogger routes fx events through the shared logger.
var WithCharmLogger = fx.WithLogger(func(logger *log.Logger) fxevent.Logger {
	return NewCharmLoggerWithComponent(logger, "fx")
})
