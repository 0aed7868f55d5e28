package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/helpers"
)

// UpsertBioSource creates or refreshes a provenance record by name and returns its id.
func (s *Store) UpsertBioSource(ctx context.Context, name, url string, reliability float64) (int64, error) {
	if name == "" {
		return 0, apperr.InvalidInput("store.bio_source", "source name is empty")
	}
	if reliability < 0 || reliability > 1 {
		return 0, apperr.InvalidInput("store.bio_source", "reliability %.2f outside [0,1]", reliability)
	}
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO bio_sources (name, url, reliability) VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, reliability = EXCLUDED.reliability
		RETURNING id`, name, url, reliability)
	if err != nil {
		return 0, fmt.Errorf("upsert bio source: %w", err)
	}
	return id, nil
}

// FactTexts lists the persona's stored fact texts.
func (s *Store) FactTexts(ctx context.Context, personaID int64) ([]string, error) {
	texts := []string{}
	if err := s.db.SelectContext(ctx, &texts,
		`SELECT fact_text FROM bio_facts WHERE persona_id = $1 ORDER BY id`, personaID); err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return texts, nil
}

// InsertBioFacts stores facts in one transaction. Facts whose text already exists for the
// persona are skipped; the number actually inserted is returned.
func (s *Store) InsertBioFacts(ctx context.Context, facts []BioFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	if err := s.checkVectors(lo.Map(facts, func(f BioFact, _ int) []float32 { return f.Embedding })); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperr.BackendUnavailable("store.bio_facts", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, batch := range helpers.Batch(facts, insertBatchRows/4) {
		args := make([]any, 0, len(batch)*8)
		for _, f := range batch {
			tags := f.Tags
			if tags == nil {
				tags = []string{}
			}
			args = append(args,
				f.PersonaID, f.SourceID, f.Text, f.DateStart, f.DateEnd, f.Location,
				pq.StringArray(tags), pgvector.NewVector(f.Embedding))
		}
		query := `INSERT INTO bio_facts (persona_id, source_id, fact_text, date_start, date_end, location, tags, embedding) VALUES ` +
			placeholders(len(batch), 8, map[int]string{3: "::date", 4: "::date", 7: "::vector"}) +
			` ON CONFLICT (persona_id, fact_text) DO NOTHING`

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert bio facts: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bio facts: %w", err)
	}
	return inserted, nil
}
