// Package embeddings turns text into fixed-dimension, L2-normalized vectors.
package embeddings

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/helpers"
	"github.com/EternisAI/persona-twin/pkg/localmodel"
)

const normEpsilon = 1e-12

// Embedder is what retrieval and ingestion depend on.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dimensions() int
}

var _ Embedder = (*Provider)(nil)

// Provider batches inputs through one backend chosen at construction and normalizes the result.
type Provider struct {
	backend   Backend
	batchSize int
	dim       int
	logger    *log.Logger
}

type NewProviderInput struct {
	// BaseURL selects the remote backend when non-empty.
	BaseURL    string
	Timeout    time.Duration
	BatchSize  int
	Dimensions int
	HTTPClient *http.Client
	// LocalModel is used when BaseURL is empty. Defaults to a hashing model of the configured dimension.
	LocalModel localmodel.EmbeddingsModel
	Logger     *log.Logger
}

func NewProvider(input NewProviderInput) (*Provider, error) {
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if input.Dimensions <= 0 {
		return nil, apperr.Configuration("embeddings", "dimensions must be positive, got %d", input.Dimensions)
	}
	if input.BatchSize <= 0 {
		return nil, apperr.Configuration("embeddings", "batch size must be positive, got %d", input.BatchSize)
	}

	var backend Backend
	if input.BaseURL != "" {
		remote, err := NewRemoteBackend(RemoteBackendInput{
			BaseURL: input.BaseURL,
			Timeout: input.Timeout,
			Client:  input.HTTPClient,
			Logger:  input.Logger,
		})
		if err != nil {
			return nil, err
		}
		backend = remote
	} else {
		model := input.LocalModel
		if model == nil {
			hashing, err := localmodel.NewHashingModel(input.Dimensions)
			if err != nil {
				return nil, apperr.Configuration("embeddings", "%v", err)
			}
			model = hashing
		}
		local, err := NewLocalBackend(model, input.Dimensions)
		if err != nil {
			return nil, err
		}
		backend = local
	}

	input.Logger.Info("Embedding provider ready", "backend", backend.Name(), "dimensions", input.Dimensions, "batch_size", input.BatchSize)
	return NewProviderWithBackend(backend, input.BatchSize, input.Dimensions, input.Logger), nil
}

// NewProviderWithBackend wires an explicit backend.
func NewProviderWithBackend(backend Backend, batchSize, dim int, logger *log.Logger) *Provider {
	return &Provider{backend: backend, batchSize: batchSize, dim: dim, logger: logger}
}

func (p *Provider) Dimensions() int { return p.dim }

func (p *Provider) Backend() string { return p.backend.Name() }

// Embed returns exactly one unit-norm row per input, in input order.
func (p *Provider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(inputs))
	batches := helpers.Batch(inputs, p.batchSize)
	for i, batch := range batches {
		vecs, err := p.backend.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d/%d: %w", i+1, len(batches), err)
		}
		if len(vecs) != len(batch) {
			return nil, apperr.Malformed("embeddings", "batch %d/%d returned %d rows for %d inputs", i+1, len(batches), len(vecs), len(batch))
		}
		for _, vec := range vecs {
			if len(vec) != p.dim {
				return nil, apperr.Configuration("embeddings", "backend %s returned %d dimensions, expected %d", p.backend.Name(), len(vec), p.dim)
			}
			out = append(out, Normalize(vec))
		}
	}
	p.logger.Debug("Embedded inputs", "count", len(inputs), "batches", len(batches))
	return out, nil
}

// EmbedOne embeds a single input.
func (p *Provider) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Normalize divides by max(‖v‖, 1e-12), accumulating in float64.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Max(math.Sqrt(sum), normEpsilon)

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
