package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "HTTP_ADDR", "EMBEDDINGS_BASE_URL", "EMBEDDINGS_HTTP_TIMEOUT",
		"EMBEDDINGS_MAX_CLIENT_BATCH_SIZE", "EMBEDDING_DIM", "CHUNK_SIZE", "CHUNK_OVERLAP", "BIO_TOP_K",
		"LLM_BASE_URL", "LLM_TIMEOUT_SECONDS", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	conf, err := LoadConfig(false)
	require.NoError(t, err)

	assert.Equal(t, ":8000", conf.HTTPAddr)
	assert.Empty(t, conf.EmbeddingsBaseURL)
	assert.Equal(t, 60*time.Second, conf.EmbeddingsTimeout)
	assert.Equal(t, 120*time.Second, conf.LLMTimeout)
	assert.Equal(t, 32, conf.EmbeddingsBatchSize)
	assert.Equal(t, 384, conf.EmbeddingDim)
	assert.Equal(t, 1800, conf.ChunkSize)
	assert.Equal(t, 240, conf.ChunkOverlap)
	assert.Equal(t, 5, conf.BioTopK)
	assert.Equal(t, []string{"*"}, conf.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("EMBEDDINGS_BASE_URL", "http://tei:8080/")
	t.Setenv("EMBEDDINGS_HTTP_TIMEOUT", "2.5")
	t.Setenv("EMBEDDINGS_MAX_CLIENT_BATCH_SIZE", "8")
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	conf, err := LoadConfig(false)
	require.NoError(t, err)

	assert.Equal(t, "http://tei:8080", conf.EmbeddingsBaseURL)
	assert.Equal(t, 2500*time.Millisecond, conf.EmbeddingsTimeout)
	assert.Equal(t, 8, conf.EmbeddingsBatchSize)
	assert.Equal(t, 768, conf.EmbeddingDim)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, conf.CORSOrigins)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric dim", "EMBEDDING_DIM", "big"},
		{"zero dim", "EMBEDDING_DIM", "0"},
		{"negative batch", "EMBEDDINGS_MAX_CLIENT_BATCH_SIZE", "-1"},
		{"relative embeddings url", "EMBEDDINGS_BASE_URL", "tei:8080"},
		{"bad timeout", "EMBEDDINGS_HTTP_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig(false)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrConfiguration)
		})
	}
}

func TestStringRedactsPassword(t *testing.T) {
	conf := &Config{DatabaseURL: "postgres://user:secret@db:5432/x"}
	assert.NotContains(t, conf.String(), "secret")
}
