// Package api exposes personas and persona chat over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/chat"
	"github.com/EternisAI/persona-twin/pkg/logging"
	"github.com/EternisAI/persona-twin/pkg/store"
)

const requestIDHeader = "X-Request-Id"

type ChatReplier interface {
	Reply(ctx context.Context, req chat.Request) (chat.Response, error)
}

type PersonaReader interface {
	ListPersonas(ctx context.Context) ([]store.Persona, error)
	GetPersona(ctx context.Context, id int64) (store.Persona, error)
}

type QueryEmbedder interface {
	EmbedOne(ctx context.Context, input string) ([]float32, error)
}

type ChunkSearcher interface {
	SearchChunks(ctx context.Context, query []float32, personaID int64, k int) ([]store.Hit, error)
}

var (
	_ ChatReplier   = (*chat.Service)(nil)
	_ PersonaReader = (*store.Store)(nil)
	_ ChunkSearcher = (*store.Store)(nil)
)

type RouterInput struct {
	Chat        ChatReplier
	Personas    PersonaReader
	Embedder    QueryEmbedder
	Chunks      ChunkSearcher
	Logs        *logging.Factory
	CORSOrigins []string
}

type handlers struct {
	chat     ChatReplier
	personas PersonaReader
	embedder QueryEmbedder
	chunks   ChunkSearcher
	logs     *logging.Factory
}

// NewRouter mounts every endpoint behind CORS, request ids and panic recovery.
func NewRouter(input RouterInput) (*chi.Mux, error) {
	if input.Chat == nil {
		return nil, fmt.Errorf("chat service cannot be nil")
	}
	if input.Personas == nil {
		return nil, fmt.Errorf("persona reader cannot be nil")
	}
	if input.Embedder == nil || input.Chunks == nil {
		return nil, fmt.Errorf("passage search dependencies cannot be nil")
	}
	if input.Logs == nil {
		return nil, fmt.Errorf("logger factory cannot be nil")
	}
	origins := input.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handlers{
		chat:     input.Chat,
		personas: input.Personas,
		embedder: input.Embedder,
		chunks:   input.Chunks,
		logs:     input.Logs,
	}

	router := chi.NewRouter()
	// Browsers reject credentialed responses for a wildcard origin.
	router.Use(cors.New(cors.Options{
		AllowCredentials: !lo.Contains(origins, "*"),
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		Debug:            false,
	}).Handler)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(input.Logs.ForHandler("api.http")))

	router.Get("/health", h.health)
	router.Route("/personas", func(r chi.Router) {
		r.Get("/", h.listPersonas)
		r.Get("/{id}", h.getPersona)
		r.Get("/{id}/passages", h.searchPassages)
	})
	router.Post("/chat", h.postChat)
	return router, nil
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			logger.Info("Request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
