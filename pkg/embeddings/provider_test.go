package embeddings

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func assertUnitRows(t *testing.T, rows [][]float32) {
	t.Helper()
	for i, row := range rows {
		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5, "row %d", i)
	}
}

// teiServer answers every request with rows of [len(input), 1, 0] rendered through render.
func teiServer(t *testing.T, calls *int32, render func(rows [][]float32) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.True(t, req.Normalize)
		assert.True(t, req.Truncate)

		rows := make([][]float32, len(req.Inputs))
		for i, in := range req.Inputs {
			rows[i] = []float32{float32(len(in)), 1, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(render(rows))
	}))
}

func TestRemoteResponseShapes(t *testing.T) {
	tests := []struct {
		name   string
		render func(rows [][]float32) any
	}{
		{"object with embeddings", func(rows [][]float32) any {
			return map[string]any{"embeddings": rows}
		}},
		{"object with data", func(rows [][]float32) any {
			data := make([]map[string]any, len(rows))
			for i, r := range rows {
				data[i] = map[string]any{"embedding": r, "index": i}
			}
			return map[string]any{"data": data, "model": "bge"}
		}},
		{"list of objects", func(rows [][]float32) any {
			out := make([]map[string]any, len(rows))
			for i, r := range rows {
				out[i] = map[string]any{"embedding": r}
			}
			return out
		}},
		{"list of vectors", func(rows [][]float32) any { return rows }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := teiServer(t, &calls, tt.render)
			defer srv.Close()

			p, err := NewProvider(NewProviderInput{BaseURL: srv.URL, BatchSize: 8, Dimensions: 3, Logger: testLogger()})
			require.NoError(t, err)
			assert.Equal(t, "remote", p.Backend())

			rows, err := p.Embed(context.Background(), []string{"abc", "de"})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assertUnitRows(t, rows)
			assert.InDelta(t, 3/math.Sqrt(10), rows[0][0], 1e-6)
			assert.InDelta(t, 2/math.Sqrt(5), rows[1][0], 1e-6)
		})
	}
}

func TestRemoteBatching(t *testing.T) {
	var calls int32
	srv := teiServer(t, &calls, func(rows [][]float32) any { return rows })
	defer srv.Close()

	p, err := NewProvider(NewProviderInput{BaseURL: srv.URL + "/", BatchSize: 2, Dimensions: 3, Logger: testLogger()})
	require.NoError(t, err)

	inputs := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	rows, err := p.Embed(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, rows, len(inputs))
	for i, in := range inputs {
		want := float64(len(in)) / math.Sqrt(float64(len(in)*len(in)+1))
		assert.InDelta(t, want, rows[i][0], 1e-6, "row order must follow input order")
	}
}

func TestEmptyInputSkipsBackend(t *testing.T) {
	var calls int32
	srv := teiServer(t, &calls, func(rows [][]float32) any { return rows })
	defer srv.Close()

	p, err := NewProvider(NewProviderInput{BaseURL: srv.URL, BatchSize: 2, Dimensions: 3, Logger: testLogger()})
	require.NoError(t, err)

	rows, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRemoteFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		dim      int
		wantKind error
		contains string
	}{
		{"server error keeps body", http.StatusServiceUnavailable, `{"error":"model loading"}`, 3, apperr.ErrBackendUnavailable, "model loading"},
		{"unknown shape", http.StatusOK, `{"vectors":[[1,2,3]]}`, 3, apperr.ErrMalformedResponse, `{"vectors"`},
		{"null rows", http.StatusOK, `{"embeddings":[null,null]}`, 3, apperr.ErrMalformedResponse, `{"embeddings":[null,null]}`},
		{"null data rows", http.StatusOK, `{"data":[{"embedding":null},{"embedding":[]}]}`, 3, apperr.ErrMalformedResponse, `"embedding":null`},
		{"empty vectors", http.StatusOK, `[[],[]]`, 3, apperr.ErrMalformedResponse, `[[],[]]`},
		{"row count mismatch", http.StatusOK, `[[1,0,0]]`, 3, apperr.ErrMalformedResponse, "1 rows for 2 inputs"},
		{"dimension mismatch", http.StatusOK, `[[1,0],[0,1]]`, 3, apperr.ErrConfiguration, "2 dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p, err := NewProvider(NewProviderInput{BaseURL: srv.URL, BatchSize: 8, Dimensions: tt.dim, Logger: testLogger()})
			require.NoError(t, err)

			rows, err := p.Embed(context.Background(), []string{"x", "y"})
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestMalformedCountsAsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("z", 2000))
	}))
	defer srv.Close()

	p, err := NewProvider(NewProviderInput{BaseURL: srv.URL, BatchSize: 8, Dimensions: 3, Logger: testLogger()})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
	assert.Less(t, len(err.Error()), 700)
}

func TestUnreachableRemote(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := NewProvider(NewProviderInput{BaseURL: url, BatchSize: 8, Dimensions: 3, Logger: testLogger()})
	require.NoError(t, err)

	_, err = p.EmbedOne(context.Background(), "hello")
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
}

func TestLocalBackendSelected(t *testing.T) {
	p, err := NewProvider(NewProviderInput{BatchSize: 4, Dimensions: 64, Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Backend())

	rows, err := p.Embed(context.Background(), []string{"Richard was born in New York", "He liked bongo drums", "Nobel prize", "Caltech", "MIT"})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, row := range rows {
		assert.Len(t, row, 64)
	}
	assertUnitRows(t, rows)
}

type fixedModel struct{ dim int }

func (m fixedModel) Embedding(context.Context, string) ([]float32, error) {
	return make([]float32, m.dim), nil
}

func (m fixedModel) Embeddings(ctx context.Context, in []string) ([][]float32, error) {
	out := make([][]float32, len(in))
	for i := range in {
		out[i], _ = m.Embedding(ctx, in[i])
	}
	return out, nil
}

func (m fixedModel) Dimensions() int { return m.dim }

func TestLocalModelDimensionMismatch(t *testing.T) {
	_, err := NewProvider(NewProviderInput{BatchSize: 4, Dimensions: 16, LocalModel: fixedModel{dim: 8}, Logger: testLogger()})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestProviderConstructionErrors(t *testing.T) {
	_, err := NewProvider(NewProviderInput{BatchSize: 0, Dimensions: 3, Logger: testLogger()})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	_, err = NewProvider(NewProviderInput{BatchSize: 1, Dimensions: 0, Logger: testLogger()})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	_, err = NewProvider(NewProviderInput{BatchSize: 1, Dimensions: 3})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		out := Normalize([]float32{3, 4})
		assert.InDelta(t, 0.6, out[0], 1e-7)
		assert.InDelta(t, 0.8, out[1], 1e-7)
	})

	t.Run("zero vector stays finite", func(t *testing.T) {
		out := Normalize([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, out)
	})

	t.Run("input untouched", func(t *testing.T) {
		in := []float32{2, 0}
		_ = Normalize(in)
		assert.Equal(t, []float32{2, 0}, in)
	})
}
