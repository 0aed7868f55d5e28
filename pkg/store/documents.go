package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/helpers"
)

// NewDocument is one source file ready to persist: its chunks in order and one vector per chunk.
type NewDocument struct {
	PersonaName string
	Title       string
	Source      string
	DocType     string
	Chunks      []string
	Vectors     [][]float32
}

type IngestResult struct {
	PersonaID  int64
	DocumentID int64
	Chunks     int
}

// IngestDocument writes persona, document, chunks and embeddings in a single transaction.
// Chunk order is 1-based and follows the slice order.
func (s *Store) IngestDocument(ctx context.Context, doc NewDocument) (IngestResult, error) {
	if len(doc.Chunks) == 0 {
		return IngestResult{}, apperr.InvalidInput("store.ingest", "document %q has no chunks", doc.Title)
	}
	if len(doc.Chunks) != len(doc.Vectors) {
		return IngestResult{}, apperr.InvalidInput("store.ingest", "%d chunks but %d vectors", len(doc.Chunks), len(doc.Vectors))
	}
	if err := s.checkVectors(doc.Vectors); err != nil {
		return IngestResult{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return IngestResult{}, apperr.BackendUnavailable("store.ingest", err)
	}
	defer func() { _ = tx.Rollback() }()

	personaID, err := ensurePersona(ctx, tx, doc.PersonaName)
	if err != nil {
		return IngestResult{}, err
	}

	var documentID int64
	err = tx.GetContext(ctx, &documentID, `
		INSERT INTO documents (persona_id, title, source, doc_type)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id`, personaID, doc.Title, doc.Source, doc.DocType)
	if err != nil {
		return IngestResult{}, fmt.Errorf("insert document: %w", err)
	}

	chunkIDs, err := insertChunks(ctx, tx, documentID, doc.Chunks)
	if err != nil {
		return IngestResult{}, err
	}
	if err := insertEmbeddings(ctx, tx, chunkIDs, doc.Vectors); err != nil {
		return IngestResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return IngestResult{}, fmt.Errorf("commit document: %w", err)
	}
	return IngestResult{PersonaID: personaID, DocumentID: documentID, Chunks: len(doc.Chunks)}, nil
}

// insertChunks returns chunk ids indexed by position in texts.
func insertChunks(ctx context.Context, tx *sqlx.Tx, documentID int64, texts []string) ([]int64, error) {
	ids := make([]int64, len(texts))
	offset := 0
	for _, batch := range helpers.Batch(texts, insertBatchRows) {
		args := make([]any, 0, len(batch)*3)
		for i, text := range batch {
			args = append(args, documentID, offset+i+1, text)
		}
		query := `INSERT INTO chunks (document_id, ord, text) VALUES ` +
			placeholders(len(batch), 3, nil) + ` RETURNING id, ord`

		var rows []struct {
			ID  int64 `db:"id"`
			Ord int   `db:"ord"`
		}
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("insert chunks: %w", err)
		}
		for _, r := range rows {
			ids[r.Ord-1] = r.ID
		}
		offset += len(batch)
	}
	return ids, nil
}

func insertEmbeddings(ctx context.Context, tx *sqlx.Tx, chunkIDs []int64, vectors [][]float32) error {
	type row struct {
		chunkID int64
		vec     []float32
	}
	rows := lo.Map(chunkIDs, func(id int64, i int) row { return row{chunkID: id, vec: vectors[i]} })

	for _, batch := range helpers.Batch(rows, insertBatchRows) {
		args := make([]any, 0, len(batch)*2)
		for _, r := range batch {
			args = append(args, r.chunkID, pgvector.NewVector(r.vec))
		}
		query := `INSERT INTO embeddings (chunk_id, embedding) VALUES ` +
			placeholders(len(batch), 2, map[int]string{1: "::vector"})
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert embeddings: %w", err)
		}
	}
	return nil
}

// DocumentsForPersona lists documents by id. An empty docType matches every type.
func (s *Store) DocumentsForPersona(ctx context.Context, personaID int64, docType string) ([]Document, error) {
	docs := []Document{}
	err := s.db.SelectContext(ctx, &docs, `
		SELECT id, persona_id, title, source, doc_type, created_at
		  FROM documents
		 WHERE persona_id = $1 AND ($2 = '' OR doc_type = $2)
		 ORDER BY id`, personaID, docType)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *Store) ChunksForDocument(ctx context.Context, documentID int64) ([]Chunk, error) {
	chunks := []Chunk{}
	err := s.db.SelectContext(ctx, &chunks, `
		SELECT id, document_id, ord, text FROM chunks WHERE document_id = $1 ORDER BY ord`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// ChunkTextsForPersona returns every chunk text of the persona, grouped by document then order.
func (s *Store) ChunkTextsForPersona(ctx context.Context, personaID int64) ([]string, error) {
	texts := []string{}
	err := s.db.SelectContext(ctx, &texts, `
		SELECT c.text
		  FROM chunks c
		  JOIN documents d ON d.id = c.document_id
		 WHERE d.persona_id = $1
		 ORDER BY d.id, c.ord`, personaID)
	if err != nil {
		return nil, fmt.Errorf("list persona chunks: %w", err)
	}
	return texts, nil
}
