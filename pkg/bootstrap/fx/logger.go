package fx

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"go.uber.org/fx/fxevent"
)

// CharmLogger adapts charmbracelet log.Logger to fx's fxevent.Logger interface.
type CharmLogger struct {
	logger *log.Logger
}

// NewCharmLoggerWithComponent creates a new fx logger with a specific component.
func NewCharmLoggerWithComponent(logger *log.Logger, component string) fxevent.Logger {
	return &CharmLogger{logger: logger.With("component", component)}
}

// hook logs a lifecycle hook outcome; failures are errors, the rest is debug noise.
func (l *CharmLogger) hook(phase, function, caller string, err error, runtime fmt.Stringer) {
	if err != nil {
		l.logger.Error("Lifecycle hook failed", "phase", phase, "function", function, "caller", caller, "runtime", runtime, "error", err)
		return
	}
	l.logger.Debug("Lifecycle hook finished", "phase", phase, "function", function, "runtime", runtime)
}

// LogEvent implements fxevent.Logger interface.
func (l *CharmLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		l.hook("start", e.FunctionName, e.CallerName, e.Err, e.Runtime)
	case *fxevent.OnStopExecuted:
		l.hook("stop", e.FunctionName, e.CallerName, e.Err, e.Runtime)
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error("Provide failed", "constructor", e.ConstructorName, "error", e.Err)
			return
		}
		l.logger.Debug("Provided", "constructor", e.ConstructorName, "module", e.ModuleName, "types", e.OutputTypeNames)
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error("Invoke failed", "function", e.FunctionName, "module", e.ModuleName, "error", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error("Start failed", "error", e.Err)
			return
		}
		l.logger.Info("Application started")
	case *fxevent.Stopping:
		l.logger.Info("Stopping", "signal", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error("Stop failed", "error", e.Err)
			return
		}
		l.logger.Info("Application stopped")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error("Custom fx logger failed", "error", e.Err)
		}
	default:
		l.logger.Debug("fx event", "type", strings.TrimPrefix(fmt.Sprintf("%T", e), "*fxevent."))
	}
}
