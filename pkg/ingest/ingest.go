// Package ingest turns source documents into stored chunks and embeddings for a persona.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/chunker"
	"github.com/EternisAI/persona-twin/pkg/embeddings"
	"github.com/EternisAI/persona-twin/pkg/helpers"
	"github.com/EternisAI/persona-twin/pkg/store"
	"github.com/EternisAI/persona-twin/pkg/workerpool"
)

const (
	DocTypeBook       = "book"
	DocTypeBiography  = "biography"
	DocTypeTranscript = "transcript"

	DefaultBatchSize = 32
)

// Store is the part of the repository ingestion writes through.
type Store interface {
	IngestDocument(ctx context.Context, doc store.NewDocument) (store.IngestResult, error)
}

var _ Store = (*store.Store)(nil)

type Document struct {
	PersonaName string
	Title       string
	Source      string
	Text        string
}

type Options struct {
	Mode      chunker.Mode
	Size      int
	Overlap   int
	BatchSize int
	DocType   string
}

// DefaultOptions returns the chunking used for a document type: transcripts window
// by words, books and biographies by characters.
func DefaultOptions(docType string) Options {
	if docType == DocTypeTranscript {
		return Options{Mode: chunker.ModeWords, Size: 800, Overlap: 100, BatchSize: DefaultBatchSize, DocType: docType}
	}
	return Options{Mode: chunker.ModeChars, Size: 1800, Overlap: 240, BatchSize: DefaultBatchSize, DocType: docType}
}

func (o Options) validate() error {
	if o.Size <= 0 {
		return apperr.InvalidInput("ingest", "chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return apperr.InvalidInput("ingest", "chunk overlap must be in [0, %d), got %d", o.Size, o.Overlap)
	}
	if o.Mode != chunker.ModeWords && o.Mode != chunker.ModeChars {
		return apperr.InvalidInput("ingest", "unknown chunk mode %q", o.Mode)
	}
	return nil
}

// Result reports one document's outcome. Skipped documents have no chunks and no error.
type Result struct {
	Title   string
	Skipped bool
	store.IngestResult
}

type Ingester struct {
	embedder embeddings.Embedder
	store    Store
	logger   *log.Logger
}

type NewIngesterInput struct {
	Embedder embeddings.Embedder
	Store    Store
	Logger   *log.Logger
}

func NewIngester(input NewIngesterInput) (*Ingester, error) {
	if input.Embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if input.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Ingester{embedder: input.Embedder, store: input.Store, logger: input.Logger}, nil
}

// Ingest chunks, embeds and stores one document. Chunk order is fixed before any
// embedding request, and the store write happens only after every batch succeeded.
func (i *Ingester) Ingest(ctx context.Context, doc Document, opts Options) (Result, error) {
	if strings.TrimSpace(doc.PersonaName) == "" {
		return Result{}, apperr.InvalidInput("ingest", "persona name is required")
	}
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	start := time.Now()
	var chunks []string
	if strings.TrimSpace(doc.Text) != "" {
		chunks = chunker.Split(opts.Mode, doc.Text, opts.Size, opts.Overlap)
	}
	if len(chunks) == 0 {
		i.logger.Warn("No chunks produced, skipping", "title", doc.Title, "source", doc.Source)
		return Result{Title: doc.Title, Skipped: true}, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for n, batch := range helpers.Batch(chunks, opts.BatchSize) {
		embedded, err := i.embedder.Embed(ctx, batch)
		if err != nil {
			return Result{}, fmt.Errorf("embed %q batch %d: %w", doc.Title, n, err)
		}
		vectors = append(vectors, embedded...)
	}

	res, err := i.store.IngestDocument(ctx, store.NewDocument{
		PersonaName: doc.PersonaName,
		Title:       doc.Title,
		Source:      doc.Source,
		DocType:     opts.DocType,
		Chunks:      chunks,
		Vectors:     vectors,
	})
	if err != nil {
		return Result{}, fmt.Errorf("store %q: %w", doc.Title, err)
	}

	i.logger.Info("Ingested document",
		"persona", doc.PersonaName,
		"title", doc.Title,
		"chunks", res.Chunks,
		"mode", opts.Mode,
		"duration", time.Since(start))
	return Result{Title: doc.Title, IngestResult: res}, nil
}

type job struct {
	n        int
	ingester *Ingester
	doc      Document
	opts     Options
}

func (j job) Process(ctx context.Context) (Result, error) {
	return j.ingester.Ingest(ctx, j.doc, j.opts)
}

// Failure pairs a document with the error that aborted it.
type Failure struct {
	Title string
	Err   error
}

// IngestAll ingests independent documents in parallel. One document failing does
// not stop the others; results and failures come back in input order.
func (i *Ingester) IngestAll(ctx context.Context, docs []Document, opts Options, workers int) ([]Result, []Failure) {
	jobs := make([]job, len(docs))
	for n, d := range docs {
		jobs[n] = job{n: n, ingester: i, doc: d, opts: opts}
	}

	results := make([]*Result, len(docs))
	failures := make([]*Failure, len(docs))
	pool := workerpool.New[job](workers, i.logger)
	for r := range pool.Process(ctx, jobs, 0) {
		n := r.Job.n
		if r.Error != nil {
			i.logger.Error("Document ingestion failed", "title", r.Job.doc.Title, "error", r.Error)
			failures[n] = &Failure{Title: r.Job.doc.Title, Err: r.Error}
			continue
		}
		res := r.Result
		results[n] = &res
	}

	var outResults []Result
	var outFailures []Failure
	for n := range docs {
		if results[n] == nil && failures[n] == nil {
			// never picked up: the context ended first
			failures[n] = &Failure{Title: docs[n].Title, Err: context.Cause(ctx)}
		}
		if results[n] != nil {
			outResults = append(outResults, *results[n])
		}
		if failures[n] != nil {
			outFailures = append(outFailures, *failures[n])
		}
	}
	return outResults, outFailures
}
