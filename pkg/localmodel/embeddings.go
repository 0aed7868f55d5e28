package localmodel

import "context"

// EmbeddingsModel is an in-process encoder. Vectors are returned as produced; callers normalize.
type EmbeddingsModel interface {
	Embedding(ctx context.Context, input string) ([]float32, error)
	Embeddings(ctx context.Context, inputs []string) ([][]float32, error)
	Dimensions() int
}
