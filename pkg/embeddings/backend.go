package embeddings

import (
	"context"
	"fmt"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/localmodel"
)

// Backend produces raw, not yet normalized vectors for one batch of inputs.
type Backend interface {
	Name() string
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
}

var _ Backend = (*LocalBackend)(nil)

// LocalBackend runs an in-process model.
type LocalBackend struct {
	model localmodel.EmbeddingsModel
}

func NewLocalBackend(model localmodel.EmbeddingsModel, dim int) (*LocalBackend, error) {
	if model == nil {
		return nil, fmt.Errorf("local embeddings model cannot be nil")
	}
	if model.Dimensions() != dim {
		return nil, apperr.Configuration("embeddings.local", "model produces %d dimensions, store expects %d", model.Dimensions(), dim)
	}
	return &LocalBackend{model: model}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := b.model.Embeddings(ctx, inputs)
	if err != nil {
		return nil, apperr.BackendUnavailable("embeddings.local", err)
	}
	return vecs, nil
}
