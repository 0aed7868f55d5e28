package bioextract

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/embeddings"
	"github.com/EternisAI/persona-twin/pkg/store"
)

const (
	DefaultDocType    = "biography"
	DefaultSourceName = "Biography Book"
	sourceReliability = 0.8
)

type Store interface {
	GetPersonaByName(ctx context.Context, name string) (store.Persona, error)
	DocumentsForPersona(ctx context.Context, personaID int64, docType string) ([]store.Document, error)
	ChunksForDocument(ctx context.Context, documentID int64) ([]store.Chunk, error)
	FactTexts(ctx context.Context, personaID int64) ([]string, error)
	UpsertBioSource(ctx context.Context, name, url string, reliability float64) (int64, error)
	InsertBioFacts(ctx context.Context, facts []store.BioFact) (int, error)
}

type Extractor struct {
	store    Store
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewExtractor(s Store, embedder embeddings.Embedder, logger *log.Logger) (*Extractor, error) {
	if s == nil || embedder == nil || logger == nil {
		return nil, fmt.Errorf("store, embedder and logger are required")
	}
	return &Extractor{store: s, embedder: embedder, logger: logger}, nil
}

type Options struct {
	PersonaName string
	// SourceName labels facts from documents without a title.
	SourceName string
	DocType    string
	// Preview collects candidates without embedding or storing them.
	Preview bool
}

type DocumentResult struct {
	DocumentID int64
	Title      string
	Candidates []string
	Inserted   int
}

type Result struct {
	Documents []DocumentResult
	Inserted  int
}

func (e *Extractor) ExtractForPersona(ctx context.Context, opts Options) (Result, error) {
	if opts.DocType == "" {
		opts.DocType = DefaultDocType
	}
	if opts.SourceName == "" {
		opts.SourceName = DefaultSourceName
	}

	persona, err := e.store.GetPersonaByName(ctx, opts.PersonaName)
	if err != nil {
		return Result{}, err
	}
	docs, err := e.store.DocumentsForPersona(ctx, persona.ID, opts.DocType)
	if err != nil {
		return Result{}, err
	}
	if len(docs) == 0 {
		e.logger.Warn("No documents to extract from", "persona", persona.Name, "doc_type", opts.DocType)
		return Result{}, nil
	}

	existingTexts, err := e.store.FactTexts(ctx, persona.ID)
	if err != nil {
		return Result{}, err
	}
	existing := lo.SliceToMap(existingTexts, func(s string) (string, struct{}) { return s, struct{}{} })

	var result Result
	for _, doc := range docs {
		dr, err := e.extractDocument(ctx, persona, doc, opts, existing)
		if err != nil {
			return result, fmt.Errorf("document %d (%s): %w", doc.ID, doc.Title, err)
		}
		result.Documents = append(result.Documents, dr)
		result.Inserted += dr.Inserted
		e.logger.Info("Extracted bio facts", "document", doc.Title, "candidates", len(dr.Candidates), "inserted", dr.Inserted)
	}
	return result, nil
}

func (e *Extractor) extractDocument(ctx context.Context, persona store.Persona, doc store.Document, opts Options, existing map[string]struct{}) (DocumentResult, error) {
	chunks, err := e.store.ChunksForDocument(ctx, doc.ID)
	if err != nil {
		return DocumentResult{}, err
	}
	candidates := Candidates(lo.Map(chunks, func(c store.Chunk, _ int) string { return c.Text }), persona.Name)
	dr := DocumentResult{DocumentID: doc.ID, Title: doc.Title, Candidates: candidates}
	if opts.Preview {
		return dr, nil
	}

	fresh := lo.Filter(candidates, func(s string, _ int) bool {
		_, ok := existing[s]
		return !ok
	})
	if len(fresh) == 0 {
		return dr, nil
	}

	vecs, err := e.embedder.Embed(ctx, fresh)
	if err != nil {
		return DocumentResult{}, err
	}

	sourceName := doc.Title
	if sourceName == "" {
		sourceName = opts.SourceName
	}
	sourceID, err := e.store.UpsertBioSource(ctx, sourceName, lo.FromPtr(doc.Source), sourceReliability)
	if err != nil {
		return DocumentResult{}, err
	}

	facts := make([]store.BioFact, len(fresh))
	for i, text := range fresh {
		facts[i] = store.BioFact{
			PersonaID: persona.ID,
			SourceID:  lo.ToPtr(sourceID),
			Text:      text,
			DateStart: ParseDate(text),
			Location:  ParseLocation(text),
			Tags:      GuessTags(text),
			Embedding: vecs[i],
		}
	}
	inserted, err := e.store.InsertBioFacts(ctx, facts)
	if err != nil {
		return DocumentResult{}, err
	}
	for _, text := range fresh {
		existing[text] = struct{}{}
	}
	dr.Inserted = inserted
	return dr, nil
}
