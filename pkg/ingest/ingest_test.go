package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/chunker"
	"github.com/EternisAI/persona-twin/pkg/store"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	failOn  string
}

func (f *fakeEmbedder) Embed(_ context.Context, in []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, in)
	out := make([][]float32, len(in))
	for i, s := range in {
		if f.failOn != "" && strings.Contains(s, f.failOn) {
			return nil, apperr.BackendUnavailable("fake", errors.New("connection refused"))
		}
		out[i] = []float32{float32(len(s)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

type fakeStore struct {
	mu   sync.Mutex
	docs []store.NewDocument
}

func (f *fakeStore) IngestDocument(_ context.Context, doc store.NewDocument) (store.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return store.IngestResult{PersonaID: 1, DocumentID: int64(len(f.docs)), Chunks: len(doc.Chunks)}, nil
}

func newTestIngester(t *testing.T, emb *fakeEmbedder, st *fakeStore) *Ingester {
	t.Helper()
	i, err := NewIngester(NewIngesterInput{Embedder: emb, Store: st, Logger: log.NewWithOptions(io.Discard, log.Options{})})
	require.NoError(t, err)
	return i
}

func TestNewIngesterRejectsNilDeps(t *testing.T) {
	_, err := NewIngester(NewIngesterInput{Store: &fakeStore{}, Logger: log.Default()})
	assert.Error(t, err)
	_, err = NewIngester(NewIngesterInput{Embedder: &fakeEmbedder{}, Logger: log.Default()})
	assert.Error(t, err)
	_, err = NewIngester(NewIngesterInput{Embedder: &fakeEmbedder{}, Store: &fakeStore{}})
	assert.Error(t, err)
}

func TestDefaultOptions(t *testing.T) {
	tr := DefaultOptions(DocTypeTranscript)
	assert.Equal(t, chunker.ModeWords, tr.Mode)
	assert.Equal(t, 800, tr.Size)
	assert.Equal(t, 100, tr.Overlap)

	book := DefaultOptions(DocTypeBook)
	assert.Equal(t, chunker.ModeChars, book.Mode)
	assert.Equal(t, 1800, book.Size)
	assert.Equal(t, 240, book.Overlap)
	assert.Equal(t, DocTypeBook, book.DocType)
}

func TestIngestBatchesAndStoresInOrder(t *testing.T) {
	emb := &fakeEmbedder{}
	st := &fakeStore{}
	i := newTestIngester(t, emb, st)

	text := strings.Repeat("x", 5000)
	opts := Options{Mode: chunker.ModeChars, Size: 1800, Overlap: 240, BatchSize: 2, DocType: DocTypeBook}

	res, err := i.Ingest(context.Background(), Document{PersonaName: "Richard Feynman", Title: "Lectures", Text: text}, opts)
	require.NoError(t, err)

	want := chunker.Split(chunker.ModeChars, text, 1800, 240)
	require.Len(t, st.docs, 1)
	assert.Equal(t, want, st.docs[0].Chunks)
	assert.Len(t, st.docs[0].Vectors, len(want))
	assert.Equal(t, DocTypeBook, st.docs[0].DocType)
	assert.Equal(t, len(want), res.Chunks)
	assert.False(t, res.Skipped)

	for _, b := range emb.batches {
		assert.LessOrEqual(t, len(b), 2)
	}
	assert.Len(t, emb.batches, (len(want)+1)/2)
}

func TestIngestSkipsEmptyDocument(t *testing.T) {
	st := &fakeStore{}
	i := newTestIngester(t, &fakeEmbedder{}, st)

	res, err := i.Ingest(context.Background(), Document{PersonaName: "P", Title: "blank", Text: "   \n "}, DefaultOptions(DocTypeTranscript))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, st.docs)
}

func TestIngestEmbeddingFailureStoresNothing(t *testing.T) {
	st := &fakeStore{}
	i := newTestIngester(t, &fakeEmbedder{failOn: "boom"}, st)

	_, err := i.Ingest(context.Background(), Document{PersonaName: "P", Title: "t", Text: "some words and then boom"}, DefaultOptions(DocTypeTranscript))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
	assert.Empty(t, st.docs)
}

func TestIngestValidatesOptions(t *testing.T) {
	i := newTestIngester(t, &fakeEmbedder{}, &fakeStore{})
	tests := []struct {
		name string
		doc  Document
		opts Options
	}{
		{"missing persona", Document{Text: "hi"}, DefaultOptions(DocTypeBook)},
		{"zero size", Document{PersonaName: "P"}, Options{Mode: chunker.ModeWords}},
		{"overlap too large", Document{PersonaName: "P"}, Options{Mode: chunker.ModeWords, Size: 10, Overlap: 10}},
		{"unknown mode", Document{PersonaName: "P"}, Options{Mode: "lines", Size: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.Ingest(context.Background(), tt.doc, tt.opts)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestIngestAllKeepsInputOrderAndIsolatesFailures(t *testing.T) {
	st := &fakeStore{}
	i := newTestIngester(t, &fakeEmbedder{failOn: "boom"}, st)

	docs := []Document{
		{PersonaName: "P", Title: "one", Text: "first document text"},
		{PersonaName: "P", Title: "two", Text: "this one goes boom"},
		{PersonaName: "P", Title: "three", Text: "third document text"},
		{PersonaName: "P", Title: "four", Text: ""},
	}
	results, failures := i.IngestAll(context.Background(), docs, DefaultOptions(DocTypeTranscript), 3)

	require.Len(t, results, 3)
	assert.Equal(t, "one", results[0].Title)
	assert.Equal(t, "three", results[1].Title)
	assert.Equal(t, "four", results[2].Title)
	assert.True(t, results[2].Skipped)

	require.Len(t, failures, 1)
	assert.Equal(t, "two", failures[0].Title)
	assert.ErrorIs(t, failures[0].Err, apperr.ErrBackendUnavailable)
	assert.Len(t, st.docs, 2)
}
