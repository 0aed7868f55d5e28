// Package chat answers a conversation in the voice of a stored persona.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/biorouter"
	"github.com/EternisAI/persona-twin/pkg/llm"
	"github.com/EternisAI/persona-twin/pkg/prompts"
	"github.com/EternisAI/persona-twin/pkg/store"
)

const noPersonasMessage = "No personas exist yet. Ingest content first."

type PersonaStore interface {
	GetPersona(ctx context.Context, id int64) (store.Persona, error)
	GetPersonaByName(ctx context.Context, name string) (store.Persona, error)
	FirstPersona(ctx context.Context) (store.Persona, error)
}

type BioResolver interface {
	Resolve(ctx context.Context, personaID int64, utterance string) []string
}

var (
	_ PersonaStore = (*store.Store)(nil)
	_ BioResolver  = (*biorouter.Router)(nil)
)

type Service struct {
	personas PersonaStore
	bio      BioResolver
	llm      llm.Completer
	logger   *log.Logger
	now      func() time.Time
}

type NewServiceInput struct {
	Personas PersonaStore
	Bio      BioResolver
	LLM      llm.Completer
	Logger   *log.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(input NewServiceInput) (*Service, error) {
	if input.Personas == nil {
		return nil, fmt.Errorf("persona store cannot be nil")
	}
	if input.Bio == nil {
		return nil, fmt.Errorf("bio resolver cannot be nil")
	}
	if input.LLM == nil {
		return nil, fmt.Errorf("llm cannot be nil")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	now := input.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		personas: input.Personas,
		bio:      input.Bio,
		llm:      input.LLM,
		logger:   input.Logger,
		now:      now,
	}, nil
}

// ResolvePersona tries the id, then the name, then the oldest persona. Lookups
// that miss fall through; only an empty store is NotFound.
func (s *Service) ResolvePersona(ctx context.Context, id *int64, name string) (store.Persona, error) {
	if id != nil {
		p, err := s.personas.GetPersona(ctx, *id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return store.Persona{}, err
		}
	}
	if name = strings.TrimSpace(name); name != "" {
		p, err := s.personas.GetPersonaByName(ctx, name)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return store.Persona{}, err
		}
	}
	p, err := s.personas.FirstPersona(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return store.Persona{}, apperr.NotFound("chat", noPersonasMessage)
	}
	return p, err
}

// Messages assembles the full prompt for persona: identity, style and facts as
// system messages, then the caller's turns.
func (s *Service) Messages(ctx context.Context, persona store.Persona, req Request) ([]prompts.Message, error) {
	var facts []string
	if utterance := req.LastUserUtterance(); utterance != "" {
		facts = s.bio.Resolve(ctx, persona.ID, utterance)
	}

	system, err := prompts.BuildPersonaSystemMessages(prompts.PersonaSystemPrompt{
		Name:          persona.Name,
		StylePrompt:   persona.Style(),
		BioFacts:      facts,
		ReferenceDate: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("build system messages: %w", err)
	}
	return append(system, req.History()...), nil
}

func (s *Service) Reply(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	persona, err := s.ResolvePersona(ctx, req.PersonaID, req.PersonaName)
	if err != nil {
		return Response{}, err
	}

	messages, err := s.Messages(ctx, persona, req)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	answer, err := s.llm.Complete(ctx, messages, req.Params())
	if err != nil {
		s.logger.Error("Completion failed", "persona", persona.Name, "error", err)
		return Response{}, err
	}
	s.logger.Info("Chat reply",
		"persona", persona.Name,
		"turns", len(req.History()),
		"system_messages", len(messages)-len(req.History()),
		"duration", time.Since(start))

	return Response{Answer: answer, PersonaID: persona.ID, PersonaName: persona.Name}, nil
}
