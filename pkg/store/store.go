// Package store persists personas, documents, chunk vectors and biographical facts in Postgres
// with pgvector, and answers persona-scoped nearest-neighbour queries over them.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

const settingEmbeddingDim = "embedding_dim"

// insertBatchRows bounds multi-row INSERT statements well below the 65535 parameter limit.
const insertBatchRows = 500

type Store struct {
	db     *sqlx.DB
	logger *log.Logger
	dim    atomic.Int64
}

type NewStoreInput struct {
	DB     *sqlx.DB
	Logger *log.Logger
}

func NewStore(input NewStoreInput) (*Store, error) {
	if input.DB == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Store{db: input.DB, logger: input.Logger}, nil
}

func (s *Store) DB() *sqlx.DB { return s.db }

// Dimensions is the pinned vector dimension, or 0 before PinDimension.
func (s *Store) Dimensions() int { return int(s.dim.Load()) }

// PinDimension fixes the vector columns to dim on first use and creates the cosine HNSW
// indexes. Later calls with a different dim fail with a configuration error.
func (s *Store) PinDimension(ctx context.Context, dim int) error {
	if dim <= 0 {
		return apperr.Configuration("store", "embedding dimension must be positive, got %d", dim)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.BackendUnavailable("store", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE store_settings IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock store settings: %w", err)
	}

	var raw string
	err = tx.GetContext(ctx, &raw, `SELECT value FROM store_settings WHERE key = $1`, settingEmbeddingDim)
	switch {
	case err == nil:
		pinned, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return apperr.Configuration("store", "stored embedding_dim %q is not an integer", raw)
		}
		if pinned != dim {
			return apperr.Configuration("store", "store is pinned to %d dimensions, embedding provider produces %d", pinned, dim)
		}
		s.dim.Store(int64(dim))
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read embedding_dim: %w", err)
	}

	// dim is a validated positive int, so formatting it into DDL is safe.
	stmts := []string{
		fmt.Sprintf(`ALTER TABLE embeddings ALTER COLUMN embedding TYPE vector(%d)`, dim),
		fmt.Sprintf(`ALTER TABLE bio_facts ALTER COLUMN embedding TYPE vector(%d)`, dim),
		`CREATE INDEX IF NOT EXISTS embeddings_embedding_hnsw ON embeddings USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS bio_facts_embedding_hnsw ON bio_facts USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pin vector dimension: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO store_settings (key, value) VALUES ($1, $2)`, settingEmbeddingDim, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("record embedding_dim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dimension pin: %w", err)
	}

	s.dim.Store(int64(dim))
	s.logger.Info("Pinned vector dimension", "dimensions", dim)
	return nil
}

func (s *Store) checkVectors(vectors [][]float32) error {
	dim := s.Dimensions()
	if dim == 0 {
		return apperr.Configuration("store", "vector dimension is not pinned")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return apperr.Configuration("store", "vector %d has %d dimensions, store expects %d", i, len(v), dim)
		}
	}
	return nil
}

type Persona struct {
	ID          int64       `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	StylePrompt *string     `db:"style_prompt" json:"style_prompt"`
	TopPhrases  *TopPhrases `db:"top_phrases" json:"top_phrases"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

func (p Persona) Style() string {
	if p.StylePrompt == nil {
		return ""
	}
	return strings.TrimSpace(*p.StylePrompt)
}

type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// TopPhrases is the stored style profile, kept as JSONB.
type TopPhrases struct {
	Unigrams     []PhraseCount `json:"unigrams"`
	Bigrams      []PhraseCount `json:"bigrams"`
	Trigrams     []PhraseCount `json:"trigrams"`
	Catchphrases []string      `json:"catchphrases"`
}

func (t TopPhrases) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *TopPhrases) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = TopPhrases{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into TopPhrases", src)
	}
}

type Document struct {
	ID        int64     `db:"id"`
	PersonaID int64     `db:"persona_id"`
	Title     string    `db:"title"`
	Source    *string   `db:"source"`
	DocType   *string   `db:"doc_type"`
	CreatedAt time.Time `db:"created_at"`
}

type Chunk struct {
	ID         int64  `db:"id"`
	DocumentID int64  `db:"document_id"`
	Order      int    `db:"ord"`
	Text       string `db:"text"`
}

// Hit is one nearest-neighbour result. Score is 1 - cosine distance.
type Hit struct {
	ID    int64   `db:"id"`
	Text  string  `db:"text"`
	Score float64 `db:"score"`
}

type BioSource struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	URL         *string `db:"url"`
	Reliability float64 `db:"reliability"`
}

type BioFact struct {
	PersonaID int64
	SourceID  *int64
	Text      string
	DateStart *time.Time
	DateEnd   *time.Time
	Location  *string
	Tags      []string
	Embedding []float32
}

// placeholders renders "($1, $2), ($3, $4)" style groups for rows*cols parameters.
// casts, when non-empty, is appended to the matching column placeholder.
func placeholders(rows, cols int, casts map[int]string) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			if cast, ok := casts[c]; ok {
				b.WriteString(cast)
			}
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
