package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/llm"
	"github.com/EternisAI/persona-twin/pkg/prompts"
	"github.com/EternisAI/persona-twin/pkg/store"
)

type fakePersonas struct {
	personas []store.Persona
	err      error
}

func (f *fakePersonas) GetPersona(_ context.Context, id int64) (store.Persona, error) {
	if f.err != nil {
		return store.Persona{}, f.err
	}
	for _, p := range f.personas {
		if p.ID == id {
			return p, nil
		}
	}
	return store.Persona{}, apperr.NotFound("fake", "persona %d", id)
}

func (f *fakePersonas) GetPersonaByName(_ context.Context, name string) (store.Persona, error) {
	for _, p := range f.personas {
		if p.Name == name {
			return p, nil
		}
	}
	return store.Persona{}, apperr.NotFound("fake", "persona %s", name)
}

func (f *fakePersonas) FirstPersona(context.Context) (store.Persona, error) {
	if len(f.personas) == 0 {
		return store.Persona{}, apperr.NotFound("fake", "no personas")
	}
	return f.personas[0], nil
}

type fakeBio struct {
	facts     []string
	utterance string
	calls     int
}

func (f *fakeBio) Resolve(_ context.Context, _ int64, utterance string) []string {
	f.calls++
	f.utterance = utterance
	return f.facts
}

type fakeLLM struct {
	answer   string
	err      error
	messages []prompts.Message
	params   llm.Params
}

func (f *fakeLLM) Complete(_ context.Context, messages []prompts.Message, params llm.Params) (string, error) {
	f.messages, f.params = messages, params
	return f.answer, f.err
}

var (
	feynman = store.Persona{ID: 1, Name: "Richard Feynman", StylePrompt: lo.ToPtr("Be playful.")}
	curie   = store.Persona{ID: 2, Name: "Marie Curie"}
)

func newTestService(t *testing.T, p *fakePersonas, b *fakeBio, l *fakeLLM) *Service {
	t.Helper()
	s, err := NewService(NewServiceInput{
		Personas: p,
		Bio:      b,
		LLM:      l,
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
		Now:      func() time.Time { return time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func TestRequestAliases(t *testing.T) {
	var r Request
	require.NoError(t, json.Unmarshal([]byte(`{"persona":"Marie Curie","question":"Where were you born?","temperature":0.2}`), &r))
	assert.Equal(t, "Marie Curie", r.PersonaName)
	assert.Equal(t, "Where were you born?", r.Message)
	assert.Equal(t, llm.Params{Temperature: 0.2, TopP: 0.9, MaxTokens: 512}, r.Params())

	require.NoError(t, json.Unmarshal([]byte(`{"persona_name":"A","persona":"B","message":"m","question":"q"}`), &r))
	assert.Equal(t, "A", r.PersonaName)
	assert.Equal(t, "m", r.Message)
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"message only", Request{Message: "hi"}, false},
		{"messages only", Request{Messages: []prompts.Message{{Role: "user", Content: "hi"}}}, false},
		{"neither", Request{Message: "  "}, true},
		{"bad role", Request{Messages: []prompts.Message{{Role: "tool", Content: "x"}}}, true},
		{"bad max tokens", Request{Message: "hi", MaxTokens: lo.ToPtr(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLastUserUtterance(t *testing.T) {
	r := Request{Messages: []prompts.Message{
		{Role: "user", Content: " When were you born? "},
		{Role: "assistant", Content: "1918."},
		{Role: "user", Content: "   "},
	}}
	assert.Equal(t, "When were you born?", r.LastUserUtterance())
	assert.Equal(t, "hello", Request{Message: "hello"}.LastUserUtterance())
	assert.Empty(t, Request{Messages: []prompts.Message{{Role: "assistant", Content: "x"}}}.LastUserUtterance())
}

func TestResolvePersona(t *testing.T) {
	s := newTestService(t, &fakePersonas{personas: []store.Persona{feynman, curie}}, &fakeBio{}, &fakeLLM{})
	ctx := context.Background()

	p, err := s.ResolvePersona(ctx, lo.ToPtr(int64(2)), "Richard Feynman")
	require.NoError(t, err)
	assert.Equal(t, curie, p)

	p, err = s.ResolvePersona(ctx, lo.ToPtr(int64(99)), "Marie Curie")
	require.NoError(t, err)
	assert.Equal(t, curie, p)

	p, err = s.ResolvePersona(ctx, nil, "Nobody")
	require.NoError(t, err)
	assert.Equal(t, feynman, p)

	empty := newTestService(t, &fakePersonas{}, &fakeBio{}, &fakeLLM{})
	_, err = empty.ResolvePersona(ctx, nil, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), noPersonasMessage)

	broken := newTestService(t, &fakePersonas{err: errors.New("connection reset")}, &fakeBio{}, &fakeLLM{})
	_, err = broken.ResolvePersona(ctx, lo.ToPtr(int64(1)), "")
	assert.EqualError(t, err, "connection reset")
}

func TestReplyAssemblesGroundedPrompt(t *testing.T) {
	bio := &fakeBio{facts: []string{"Feynman was born in Queens in 1918."}}
	model := &fakeLLM{answer: "Queens, New York!"}
	s := newTestService(t, &fakePersonas{personas: []store.Persona{feynman}}, bio, model)

	resp, err := s.Reply(context.Background(), Request{
		PersonaName: "Richard Feynman",
		Messages: []prompts.Message{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello!"},
			{Role: "user", Content: "Where were you born?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Response{Answer: "Queens, New York!", PersonaID: 1, PersonaName: "Richard Feynman"}, resp)

	assert.Equal(t, "Where were you born?", bio.utterance)
	require.Len(t, model.messages, 6)
	assert.Contains(t, model.messages[0].Content, "Richard Feynman")
	assert.Contains(t, model.messages[0].Content, "2024-03-14")
	assert.Equal(t, "Style prompt for Richard Feynman:\nBe playful.", model.messages[1].Content)
	assert.True(t, strings.HasPrefix(model.messages[2].Content, "Biographical facts"))
	assert.Equal(t, prompts.Message{Role: "user", Content: "Where were you born?"}, model.messages[5])
	assert.Equal(t, llm.DefaultParams, model.params)
}

func TestReplyWithBareMessage(t *testing.T) {
	model := &fakeLLM{answer: "Radium."}
	bio := &fakeBio{}
	s := newTestService(t, &fakePersonas{personas: []store.Persona{curie}}, bio, model)

	_, err := s.Reply(context.Background(), Request{Message: "What did you discover?"})
	require.NoError(t, err)

	require.Len(t, model.messages, 2)
	assert.Equal(t, prompts.RoleSystem, model.messages[0].Role)
	assert.Equal(t, prompts.Message{Role: "user", Content: "What did you discover?"}, model.messages[1])
	assert.Equal(t, 1, bio.calls)
}

func TestReplyPropagatesFailures(t *testing.T) {
	s := newTestService(t, &fakePersonas{personas: []store.Persona{curie}}, &fakeBio{},
		&fakeLLM{err: apperr.Malformed("llm.complete", "empty completion content")})
	_, err := s.Reply(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)

	_, err = s.Reply(context.Background(), Request{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
