package fx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/fx"

	"github.com/EternisAI/persona-twin/pkg/api"
	"github.com/EternisAI/persona-twin/pkg/bootstrap"
	"github.com/EternisAI/persona-twin/pkg/chat"
	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/logging"
	"github.com/EternisAI/persona-twin/pkg/store"
)

// ServerModule provides the HTTP API server.
var ServerModule = fx.Module("server",
	fx.Provide(
		ProvideRouter,
	),
	fx.Invoke(
		StartHTTPServer,
	),
)

// RouterParams holds parameters for the HTTP router.
type RouterParams struct {
	fx.In
	LoggerFactory *logging.Factory
	Config        *config.Config
	ChatService   *chat.Service
	Store         *store.Store
	Embedder      *bootstrap.LazyEmbedder
}

func ProvideRouter(params RouterParams) (*chi.Mux, error) {
	return api.NewRouter(api.RouterInput{
		Chat:        params.ChatService,
		Personas:    params.Store,
		Embedder:    params.Embedder,
		Chunks:      params.Store,
		Logs:        params.LoggerFactory,
		CORSOrigins: params.Config.CORSOrigins,
	})
}

// StartHTTPServerParams holds parameters for starting the HTTP server.
type StartHTTPServerParams struct {
	fx.In
	Lifecycle     fx.Lifecycle
	LoggerFactory *logging.Factory
	Config        *config.Config
	Router        *chi.Mux
}

// StartHTTPServer binds the listener on start and drains requests on stop.
func StartHTTPServer(params StartHTTPServerParams) {
	logger := params.LoggerFactory.ForHandler("api.server")
	server := &http.Server{
		Addr:              params.Config.HTTPAddr,
		Handler:           params.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			go func() {
				logger.Info("Starting HTTP server", "address", ln.Addr().String())
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
