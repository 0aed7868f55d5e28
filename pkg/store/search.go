package store

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// Ties on distance break by ascending id so a fixed snapshot always returns the same order.
const searchChunksSQL = `
	SELECT c.id,
	       c.text,
	       1 - (e.embedding <=> $1::vector) AS score
	  FROM embeddings e
	  JOIN chunks     c ON c.id = e.chunk_id
	  JOIN documents  d ON d.id = c.document_id
	 WHERE d.persona_id = $2
	 ORDER BY e.embedding <=> $1::vector, c.id
	 LIMIT $3`

const searchFactsSQL = `
	SELECT f.id,
	       f.fact_text AS text,
	       1 - (f.embedding <=> $1::vector) AS score
	  FROM bio_facts f
	 WHERE f.persona_id = $2
	   AND f.embedding IS NOT NULL
	 ORDER BY f.embedding <=> $1::vector, f.id
	 LIMIT $3`

// SearchChunks returns up to k document chunks of the persona, most similar first.
func (s *Store) SearchChunks(ctx context.Context, query []float32, personaID int64, k int) ([]Hit, error) {
	return s.search(ctx, "chunks", searchChunksSQL, query, personaID, k)
}

// SearchFacts returns up to k biographical facts of the persona, most similar first.
func (s *Store) SearchFacts(ctx context.Context, query []float32, personaID int64, k int) ([]Hit, error) {
	return s.search(ctx, "facts", searchFactsSQL, query, personaID, k)
}

func (s *Store) search(ctx context.Context, index, sqlQ string, query []float32, personaID int64, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := s.checkVectors([][]float32{query}); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, sqlQ, pgvector.NewVector(query), personaID, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var h Hit
		if err := rows.StructScan(&h); err != nil {
			return nil, fmt.Errorf("scan %s hit: %w", index, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	s.logger.Debug("Vector search", "index", index, "persona_id", personaID, "k", k, "hits", len(hits))
	return hits, nil
}
