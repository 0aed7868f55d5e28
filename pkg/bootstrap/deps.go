// Package bootstrap builds the process-wide dependencies once and hands them to the
// HTTP server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/EternisAI/persona-twin/pkg/bioextract"
	"github.com/EternisAI/persona-twin/pkg/biorouter"
	"github.com/EternisAI/persona-twin/pkg/chat"
	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/db"
	"github.com/EternisAI/persona-twin/pkg/embeddings"
	"github.com/EternisAI/persona-twin/pkg/helpers"
	"github.com/EternisAI/persona-twin/pkg/ingest"
	"github.com/EternisAI/persona-twin/pkg/llm"
	"github.com/EternisAI/persona-twin/pkg/logging"
	"github.com/EternisAI/persona-twin/pkg/prompts"
	"github.com/EternisAI/persona-twin/pkg/store"
	"github.com/EternisAI/persona-twin/pkg/style"
)

const pinTimeout = 30 * time.Second

type dimensionPinner interface {
	PinDimension(ctx context.Context, dim int) error
}

// Deps holds the shared handles. The embedding provider and the LLM client are
// built on first use; a build error is returned to every later caller too.
type Deps struct {
	Config *config.Config
	Logs   *logging.Factory
	Logger *log.Logger
	DB     *sqlx.DB
	Store  *store.Store

	pinner   dimensionPinner
	embedder *helpers.Lazy[*embeddings.Provider]
	llm      *helpers.Lazy[*llm.Client]
}

type NewInput struct {
	Config *config.Config
	Logs   *logging.Factory
	// Migrate applies pending schema migrations after connecting.
	Migrate bool
}

// New connects to the database and prepares the lazy clients.
func New(ctx context.Context, input NewInput) (*Deps, error) {
	if input.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if input.Logs == nil {
		return nil, fmt.Errorf("logger factory cannot be nil")
	}

	conn, err := db.Open(ctx, db.OpenInput{
		DatabaseURL: input.Config.DatabaseURL,
		Logger:      input.Logs.ForDatabase("db.postgres"),
		Migrate:     input.Migrate,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(store.NewStoreInput{DB: conn, Logger: input.Logs.ForRepository("store")})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	d := newDeps(input.Config, input.Logs, st)
	d.DB = conn
	d.Store = st
	return d, nil
}

func newDeps(cfg *config.Config, logs *logging.Factory, pinner dimensionPinner) *Deps {
	d := &Deps{
		Config: cfg,
		Logs:   logs,
		Logger: logs.ForService("bootstrap"),
		pinner: pinner,
	}
	d.embedder = helpers.NewLazy(d.buildEmbedder)
	d.llm = helpers.NewLazy(d.buildLLM)
	return d
}

func (d *Deps) buildEmbedder() (*embeddings.Provider, error) {
	provider, err := embeddings.NewProvider(embeddings.NewProviderInput{
		BaseURL:    d.Config.EmbeddingsBaseURL,
		Timeout:    d.Config.EmbeddingsTimeout,
		BatchSize:  d.Config.EmbeddingsBatchSize,
		Dimensions: d.Config.EmbeddingDim,
		Logger:     d.Logs.ForEmbedding("embeddings.provider"),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pinTimeout)
	defer cancel()
	if err := d.pinner.PinDimension(ctx, provider.Dimensions()); err != nil {
		return nil, err
	}
	d.Logger.Info("Embedding provider initialized",
		"backend", provider.Backend(),
		"model", d.Config.EmbeddingsModel,
		"dimensions", provider.Dimensions())
	return provider, nil
}

func (d *Deps) buildLLM() (*llm.Client, error) {
	client, err := llm.New(llm.Input{
		BaseURL: d.Config.LLMBaseURL,
		APIKey:  d.Config.LLMAPIKey,
		Model:   d.Config.LLMModel,
		Timeout: d.Config.LLMTimeout,
		Logger:  d.Logs.ForCompletions("llm.client"),
	})
	if err != nil {
		return nil, err
	}
	d.Logger.Info("LLM client initialized", "model", client.Model())
	return client, nil
}

// Embedder returns the shared provider, pinning the store's vector dimension on first use.
func (d *Deps) Embedder() (*embeddings.Provider, error) { return d.embedder.Get() }

func (d *Deps) LLM() (*llm.Client, error) { return d.llm.Get() }

// LazyEmbedder defers provider construction until the first call.
func (d *Deps) LazyEmbedder() *LazyEmbedder { return &LazyEmbedder{deps: d} }

func (d *Deps) LazyCompleter() *LazyCompleter { return &LazyCompleter{deps: d} }

func (d *Deps) BioRouter() (*biorouter.Router, error) {
	return biorouter.NewRouter(biorouter.NewRouterInput{
		Embedder: d.LazyEmbedder(),
		Facts:    d.Store,
		TopK:     d.Config.BioTopK,
		Logger:   d.Logs.ForService("bio.router"),
	})
}

func (d *Deps) ChatService() (*chat.Service, error) {
	router, err := d.BioRouter()
	if err != nil {
		return nil, err
	}
	return chat.NewService(chat.NewServiceInput{
		Personas: d.Store,
		Bio:      router,
		LLM:      d.LazyCompleter(),
		Logger:   d.Logs.ForService("chat"),
	})
}

func (d *Deps) Ingester() (*ingest.Ingester, error) {
	return ingest.NewIngester(ingest.NewIngesterInput{
		Embedder: d.LazyEmbedder(),
		Store:    d.Store,
		Logger:   d.Logs.ForProcessor("ingest"),
	})
}

func (d *Deps) Extractor() (*bioextract.Extractor, error) {
	return bioextract.NewExtractor(d.Store, d.LazyEmbedder(), d.Logs.ForProcessor("bio.extract"))
}

func (d *Deps) Profiler() (*style.Profiler, error) {
	return style.NewProfiler(d.Store, d.Logs.ForProcessor("style.profile"))
}

func (d *Deps) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// LazyEmbedder satisfies the embedding interfaces of ingestion, extraction and
// the bio router without building the provider up front.
type LazyEmbedder struct {
	deps *Deps
}

var (
	_ embeddings.Embedder     = (*LazyEmbedder)(nil)
	_ biorouter.QueryEmbedder = (*LazyEmbedder)(nil)
)

func (l *LazyEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	p, err := l.deps.Embedder()
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, inputs)
}

func (l *LazyEmbedder) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	p, err := l.deps.Embedder()
	if err != nil {
		return nil, err
	}
	return p.EmbedOne(ctx, input)
}

func (l *LazyEmbedder) Dimensions() int { return l.deps.Config.EmbeddingDim }

type LazyCompleter struct {
	deps *Deps
}

var _ llm.Completer = (*LazyCompleter)(nil)

func (l *LazyCompleter) Complete(ctx context.Context, messages []prompts.Message, params llm.Params) (string, error) {
	c, err := l.deps.LLM()
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, messages, params)
}
