package biorouter

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/persona-twin/pkg/store"
)

func TestIsBiographical(t *testing.T) {
	tests := []struct {
		utterance string
		want      bool
	}{
		{"Where was she born?", true},
		{"What do you think about jazz?", false},
		{"Tell me about your PARENTS", true},
		{"Did you win the Nobel?", true},
		{"When did you move to Pasadena?", true},
		{"How do lasers work?", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBiographical(tt.utterance))
		})
	}
}

func TestMatchDeduplicatesTopics(t *testing.T) {
	topics := Match("Where were you born, and what was your birth family like?")
	assert.Equal(t, []Topic{TopicOrigins, TopicFamily}, topics)
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type fakeFacts struct {
	hits  []store.Hit
	err   error
	gotK  int
	calls int
}

func (f *fakeFacts) SearchFacts(_ context.Context, _ []float32, _ int64, k int) ([]store.Hit, error) {
	f.calls++
	f.gotK = k
	return f.hits, f.err
}

func newTestRouter(t *testing.T, e *fakeEmbedder, f *fakeFacts, k int) *Router {
	t.Helper()
	r, err := NewRouter(NewRouterInput{Embedder: e, Facts: f, TopK: k, Logger: log.NewWithOptions(io.Discard, log.Options{})})
	require.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("non biographical skips backends", func(t *testing.T) {
		e, f := &fakeEmbedder{}, &fakeFacts{}
		facts := newTestRouter(t, e, f, 0).Resolve(ctx, 1, "Explain quantum tunnelling")
		assert.Nil(t, facts)
		assert.Zero(t, e.calls)
		assert.Zero(t, f.calls)
	})

	t.Run("returns facts in similarity order", func(t *testing.T) {
		e := &fakeEmbedder{}
		f := &fakeFacts{hits: []store.Hit{{ID: 2, Text: "Born in 1918.", Score: 0.9}, {ID: 1, Text: "Raised in Queens.", Score: 0.7}}}
		facts := newTestRouter(t, e, f, 0).Resolve(ctx, 1, "Where were you born?")
		assert.Equal(t, []string{"Born in 1918.", "Raised in Queens."}, facts)
		assert.Equal(t, DefaultTopK, f.gotK)
		assert.Equal(t, 1, e.calls)
	})

	t.Run("caps at k", func(t *testing.T) {
		f := &fakeFacts{hits: []store.Hit{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
		facts := newTestRouter(t, &fakeEmbedder{}, f, 2).Resolve(ctx, 1, "your family?")
		assert.Equal(t, []string{"a", "b"}, facts)
	})

	t.Run("embedding failure degrades to empty", func(t *testing.T) {
		f := &fakeFacts{}
		facts := newTestRouter(t, &fakeEmbedder{err: errors.New("timeout")}, f, 0).Resolve(ctx, 1, "your school?")
		assert.NotNil(t, facts)
		assert.Empty(t, facts)
		assert.Zero(t, f.calls)
	})

	t.Run("search failure degrades to empty", func(t *testing.T) {
		f := &fakeFacts{err: errors.New("db down")}
		facts := newTestRouter(t, &fakeEmbedder{}, f, 0).Resolve(ctx, 1, "your award?")
		assert.Empty(t, facts)
	})
}

func TestNewRouterValidates(t *testing.T) {
	_, err := NewRouter(NewRouterInput{Facts: &fakeFacts{}, Logger: log.Default()})
	assert.Error(t, err)
	_, err = NewRouter(NewRouterInput{Embedder: &fakeEmbedder{}, Logger: log.Default()})
	assert.Error(t, err)
}
