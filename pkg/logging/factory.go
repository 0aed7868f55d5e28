package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ComponentType groups components that share a naming prefix in the logs.
type ComponentType string

const (
	ComponentTypeService    ComponentType = "service"
	ComponentTypeHandler    ComponentType = "handler"
	ComponentTypeRepository ComponentType = "repository"
	ComponentTypeDatabase   ComponentType = "database"
	ComponentTypeEmbedding  ComponentType = "embedding"
	ComponentTypeCompletion ComponentType = "completions"
	ComponentTypeWorker     ComponentType = "worker"
	ComponentTypeProcessor  ComponentType = "processor"
	ComponentTypeCLI        ComponentType = "cli"
)

// Factory provides component-aware loggers with consistent field naming.
type Factory struct {
	baseLogger *log.Logger

	mu         sync.Mutex
	levels     map[string]log.Level
	components map[string]ComponentType
}

// NewFactory creates a new logger factory.
func NewFactory(baseLogger *log.Logger) *Factory {
	return &Factory{
		baseLogger: baseLogger,
		levels:     map[string]log.Level{},
		components: map[string]ComponentType{},
	}
}

// NewFactoryFromEnv reads LOG_LEVEL_<COMPONENT> overrides, e.g. LOG_LEVEL_EMBEDDINGS_REMOTE=debug.
func NewFactoryFromEnv(baseLogger *log.Logger) *Factory {
	levels := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "LOG_LEVEL_") {
			continue
		}
		id := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, "LOG_LEVEL_"), "_", "."))
		levels[id] = value
	}
	return NewFactoryWithConfig(baseLogger, levels)
}

// NewFactoryWithConfig creates a new logger factory and loads component log levels from config.
func NewFactoryWithConfig(baseLogger *log.Logger, componentLogLevels map[string]string) *Factory {
	f := NewFactory(baseLogger)
	for id, raw := range componentLogLevels {
		level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			baseLogger.Warn("Ignoring invalid component log level", "component", id, "level", raw)
			continue
		}
		f.levels[id] = level
	}
	return f
}

func (lf *Factory) forType(id string, componentType ComponentType) *log.Logger {
	lf.mu.Lock()
	lf.components[id] = componentType
	level, hasLevel := lf.levels[id]
	lf.mu.Unlock()

	logger := lf.baseLogger.With("component", id)
	if hasLevel {
		logger.SetLevel(level)
	}
	return logger
}

// ForComponent creates a logger for a specific component.
func (lf *Factory) ForComponent(id string) *log.Logger {
	return lf.forType(id, ComponentTypeService)
}

// ForService creates a logger for service components.
func (lf *Factory) ForService(id string) *log.Logger {
	return lf.forType(id, ComponentTypeService)
}

// ForHandler creates a logger for handler components.
func (lf *Factory) ForHandler(id string) *log.Logger {
	return lf.forType(id, ComponentTypeHandler)
}

// ForRepository creates a logger for repository components.
func (lf *Factory) ForRepository(id string) *log.Logger {
	return lf.forType(id, ComponentTypeRepository)
}

// ForWorker creates a logger for worker components.
func (lf *Factory) ForWorker(id string) *log.Logger {
	return lf.forType(id, ComponentTypeWorker)
}

func (lf *Factory) ForEmbedding(id string) *log.Logger {
	return lf.forType(id, ComponentTypeEmbedding)
}

func (lf *Factory) ForCompletions(id string) *log.Logger {
	return lf.forType(id, ComponentTypeCompletion)
}

func (lf *Factory) ForProcessor(id string) *log.Logger {
	return lf.forType(id, ComponentTypeProcessor)
}

func (lf *Factory) ForDatabase(id string) *log.Logger {
	return lf.forType(id, ComponentTypeDatabase)
}

func (lf *Factory) ForCLI(id string) *log.Logger {
	return lf.forType(id, ComponentTypeCLI)
}

// WithRequestID adds request correlation ID to a logger.
func (lf *Factory) WithRequestID(logger *log.Logger, requestID string) *log.Logger {
	return logger.With("request_id", requestID)
}

// WithError adds error context to a logger.
func (lf *Factory) WithError(logger *log.Logger, err error) *log.Logger {
	if err != nil {
		return logger.With("error", err.Error())
	}
	return logger
}

// Components lists every component a logger was handed out to.
func (lf *Factory) Components() map[string]ComponentType {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	out := make(map[string]ComponentType, len(lf.components))
	for id, t := range lf.components {
		out[id] = t
	}
	return out
}

// SetComponentLogLevel applies to loggers created after the call.
func (lf *Factory) SetComponentLogLevel(id string, level log.Level) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.levels[id] = level
}
