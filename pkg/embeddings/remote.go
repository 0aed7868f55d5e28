package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/persona-twin/pkg/apperr"
)

const maxBodyInError = 500

var _ Backend = (*RemoteBackend)(nil)

// RemoteBackend calls a text-embeddings-inference style `POST {base}/embed` endpoint.
type RemoteBackend struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

type RemoteBackendInput struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  *log.Logger
}

func NewRemoteBackend(input RemoteBackendInput) (*RemoteBackend, error) {
	if input.BaseURL == "" {
		return nil, apperr.Configuration("embeddings.remote", "base url is empty")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	client := input.Client
	if client == nil {
		client = &http.Client{Timeout: input.Timeout}
	}
	return &RemoteBackend{
		endpoint: strings.TrimRight(input.BaseURL, "/") + "/embed",
		client:   client,
		logger:   input.Logger,
	}, nil
}

func (b *RemoteBackend) Name() string { return "remote" }

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

func (b *RemoteBackend) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Inputs: inputs, Normalize: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Configuration("embeddings.remote", "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, apperr.BackendUnavailable("embeddings.remote", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.BackendUnavailable("embeddings.remote", fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.BackendUnavailable("embeddings.remote",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, maxBodyInError)))
	}

	vecs, shape, err := parseEmbeddings(body)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Remote embeddings", "inputs", len(inputs), "shape", shape, "duration", time.Since(start))
	return vecs, nil
}

type shapeMatcher struct {
	name  string
	parse func(body []byte) ([][]float32, bool)
}

// Tried in order; the first that decodes wins.
var responseShapes = []shapeMatcher{
	{name: "object.embeddings", parse: func(body []byte) ([][]float32, bool) {
		var v struct {
			Embeddings *[][]float32 `json:"embeddings"`
		}
		if json.Unmarshal(body, &v) != nil || v.Embeddings == nil {
			return nil, false
		}
		return *v.Embeddings, allRowsPresent(*v.Embeddings)
	}},
	{name: "object.data", parse: func(body []byte) ([][]float32, bool) {
		var v struct {
			Data *[]struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if json.Unmarshal(body, &v) != nil || v.Data == nil {
			return nil, false
		}
		out := make([][]float32, len(*v.Data))
		for i, item := range *v.Data {
			out[i] = item.Embedding
		}
		return out, allRowsPresent(out)
	}},
	{name: "list.objects", parse: func(body []byte) ([][]float32, bool) {
		var v []struct {
			Embedding []float32 `json:"embedding"`
		}
		if json.Unmarshal(body, &v) != nil {
			return nil, false
		}
		out := make([][]float32, len(v))
		for i, item := range v {
			out[i] = item.Embedding
		}
		return out, allRowsPresent(out)
	}},
	{name: "list.vectors", parse: func(body []byte) ([][]float32, bool) {
		var v [][]float32
		if json.Unmarshal(body, &v) != nil {
			return nil, false
		}
		return v, allRowsPresent(v)
	}},
}

// allRowsPresent rejects null or empty rows so the body is reported as an unknown shape.
func allRowsPresent(rows [][]float32) bool {
	for _, row := range rows {
		if len(row) == 0 {
			return false
		}
	}
	return true
}

func parseEmbeddings(body []byte) ([][]float32, string, error) {
	for _, shape := range responseShapes {
		if vecs, ok := shape.parse(body); ok {
			return vecs, shape.name, nil
		}
	}
	return nil, "", apperr.Malformed("embeddings.remote", "unexpected response shape: %s", truncate(body, maxBodyInError))
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n])
}
