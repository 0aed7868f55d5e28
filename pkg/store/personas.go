package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

const personaColumns = `id, name, style_prompt, top_phrases, created_at`

// EnsurePersona returns the id of the persona with this name, creating it when missing.
func (s *Store) EnsurePersona(ctx context.Context, name string) (int64, error) {
	return ensurePersona(ctx, s.db, name)
}

func ensurePersona(ctx context.Context, q sqlx.QueryerContext, name string) (int64, error) {
	if name == "" {
		return 0, apperr.InvalidInput("store.persona", "persona name is empty")
	}
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		INSERT INTO personas (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name)
	if err != nil {
		return 0, fmt.Errorf("upsert persona %q: %w", name, err)
	}
	return id, nil
}

func (s *Store) getPersona(ctx context.Context, op, where string, arg any) (Persona, error) {
	var p Persona
	err := s.db.GetContext(ctx, &p, `SELECT `+personaColumns+` FROM personas `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return Persona{}, apperr.NotFound(op, "persona %v", arg)
	}
	if err != nil {
		return Persona{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Store) GetPersona(ctx context.Context, id int64) (Persona, error) {
	return s.getPersona(ctx, "store.get_persona", `WHERE id = $1`, id)
}

func (s *Store) GetPersonaByName(ctx context.Context, name string) (Persona, error) {
	return s.getPersona(ctx, "store.get_persona_by_name", `WHERE name = $1`, name)
}

// FirstPersona returns the persona with the lowest id.
func (s *Store) FirstPersona(ctx context.Context) (Persona, error) {
	var p Persona
	err := s.db.GetContext(ctx, &p, `SELECT `+personaColumns+` FROM personas ORDER BY id LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return Persona{}, apperr.NotFound("store.first_persona", "no personas exist")
	}
	if err != nil {
		return Persona{}, fmt.Errorf("first persona: %w", err)
	}
	return p, nil
}

func (s *Store) ListPersonas(ctx context.Context) ([]Persona, error) {
	personas := []Persona{}
	if err := s.db.SelectContext(ctx, &personas, `SELECT `+personaColumns+` FROM personas ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	return personas, nil
}

func (s *Store) UpdateStyleProfile(ctx context.Context, personaID int64, stylePrompt string, phrases TopPhrases) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE personas SET style_prompt = $1, top_phrases = $2 WHERE id = $3`,
		stylePrompt, phrases, personaID)
	if err != nil {
		return fmt.Errorf("update style profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("store.update_style_profile", "persona %d", personaID)
	}
	return nil
}

// DeletePersona removes the persona with its documents, chunks, embeddings and facts.
func (s *Store) DeletePersona(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("store.delete_persona", "persona %d", id)
	}
	s.logger.Info("Deleted persona", "persona_id", id)
	return nil
}
