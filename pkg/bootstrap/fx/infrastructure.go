package fx

import (
	"os"

	"github.com/charmbracelet/log"
	"go.uber.org/fx"

	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/logging"
)

// InfrastructureModule provides config and logging.
var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		ProvideConfig,
		ProvideLogger,
		ProvideLoggerFactory,
	),
)

// ProvideConfig loads application configuration.
func ProvideConfig() (*config.Config, error) {
	return config.LoadConfig(true)
}

// ProvideLogger creates the shared base logger at the configured level.
func ProvideLogger(envs *config.Config) *log.Logger {
	logger := logging.NewLogger(os.Stderr, envs.LogLevel)
	logger.Debug("Config loaded", "envs", envs)
	return logger
}

// ProvideLoggerFactory creates component loggers with LOG_LEVEL_<COMPONENT> overrides.
func ProvideLoggerFactory(logger *log.Logger) *logging.Factory {
	return logging.NewFactoryFromEnv(logger)
}
