package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/bioextract"
	"github.com/EternisAI/persona-twin/pkg/chunker"
	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/dataimport"
	"github.com/EternisAI/persona-twin/pkg/db"
	"github.com/EternisAI/persona-twin/pkg/ingest"
	"github.com/EternisAI/persona-twin/pkg/logging"
	"github.com/EternisAI/persona-twin/pkg/store"
	"github.com/EternisAI/persona-twin/pkg/style"
)

type migrateCommand struct {
	app *app
}

func (c *migrateCommand) Execute(_ []string) error {
	d, logger, err := c.app.deps(true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	version, err := db.MigrationVersion(d.DB.DB, logger)
	if err != nil {
		return err
	}
	logger.Info("Schema up to date", "version", version)
	return nil
}

type resetCommand struct {
	app *app
	Yes bool `long:"yes" description:"Confirm that all data may be dropped"`
}

func (c *resetCommand) Execute(_ []string) error {
	if !c.Yes {
		return errors.New("reset drops every table; pass --yes to confirm")
	}
	d, logger, err := c.app.deps(false)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if err := db.ResetSchema(d.DB.DB, logger); err != nil {
		return errors.Wrap(err, "reset schema")
	}
	logger.Warn("Schema reset; all personas and documents were removed")
	return nil
}

type ingestCommand struct {
	app          *app
	Persona      string `long:"persona" required:"yes" description:"Persona name the documents belong to"`
	DocType      string `long:"doc-type" default:"book" description:"Document type tag: book, biography, transcript or any label"`
	Mode         string `long:"mode" choice:"words" choice:"chars" description:"Chunking mode; defaults to words for transcripts and chars otherwise"`
	ChunkSize    int    `long:"chunk-size" description:"Window size in words or characters"`
	ChunkOverlap int    `long:"chunk-overlap" default:"-1" description:"Overlap in words or characters"`
	BatchSize    int    `long:"batch-size" description:"Embedding request batch size"`
	Workers      int    `long:"workers" default:"4" description:"Documents ingested in parallel"`
	Args         struct {
		Path string `positional-arg-name:"path" required:"yes" description:"File or directory of .txt/.pdf files"`
	} `positional-args:"yes"`
}

// options layers flags over the per-type defaults; char windows follow CHUNK_SIZE/CHUNK_OVERLAP.
func (c *ingestCommand) options(envs *config.Config) ingest.Options {
	opts := ingest.DefaultOptions(c.DocType)
	if c.Mode != "" && chunker.Mode(c.Mode) != opts.Mode {
		opts = ingest.DefaultOptions(lo.Ternary(c.Mode == string(chunker.ModeWords), ingest.DocTypeTranscript, ingest.DocTypeBook))
		opts.DocType = c.DocType
	}
	if opts.Mode == chunker.ModeChars {
		opts.Size, opts.Overlap = envs.ChunkSize, envs.ChunkOverlap
	}
	if c.ChunkSize > 0 {
		opts.Size = c.ChunkSize
	}
	if c.ChunkOverlap >= 0 {
		opts.Overlap = c.ChunkOverlap
	}
	opts.BatchSize = lo.Ternary(c.BatchSize > 0, c.BatchSize, envs.EmbeddingsBatchSize)
	return opts
}

func (c *ingestCommand) Execute(_ []string) error {
	d, logger, err := c.app.deps(true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	sources, err := dataimport.LoadAll(c.Args.Path, logger)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no .txt or .pdf files found under %s", c.Args.Path)
	}

	ingester, err := d.Ingester()
	if err != nil {
		return err
	}
	docs := lo.Map(sources, func(s dataimport.Source, _ int) ingest.Document {
		return ingest.Document{PersonaName: c.Persona, Title: s.Title, Source: s.Path, Text: s.Text}
	})
	opts := c.options(d.Config)
	logger.Info("Ingesting", "persona", c.Persona, "documents", len(docs), "mode", opts.Mode,
		"chunk_size", opts.Size, "chunk_overlap", opts.Overlap, "batch_size", opts.BatchSize)

	results, failures := ingester.IngestAll(c.app.ctx, docs, opts, c.Workers)
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%-50s %s\n", r.Title, lo.Ternary(r.Skipped, "skipped (empty)", fmt.Sprintf("%d chunks", r.Chunks)))
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stdout, "%-50s FAILED: %v\n", f.Title, f.Err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(failures), len(docs))
	}
	return nil
}

type deletePersonaCommand struct {
	app     *app
	Persona string `long:"persona" required:"yes" description:"Persona name"`
	Yes     bool   `long:"yes" description:"Confirm that the persona and all its data may be removed"`
}

func (c *deletePersonaCommand) Execute(_ []string) error {
	if !c.Yes {
		return errors.Errorf("delete-persona removes every document and fact of %q; pass --yes to confirm", c.Persona)
	}
	d, logger, err := c.app.deps(true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	persona, err := d.Store.GetPersonaByName(c.app.ctx, c.Persona)
	if err != nil {
		return err
	}
	if err := d.Store.DeletePersona(c.app.ctx, persona.ID); err != nil {
		return errors.Wrap(err, "delete persona")
	}
	logger.Warn("Persona deleted", "persona", persona.Name, "persona_id", persona.ID)
	return nil
}

type extractBioCommand struct {
	app        *app
	Persona    string `long:"persona" required:"yes" description:"Persona name"`
	SourceName string `long:"source-name" default:"Biography Book" description:"Source name used when a document has no title"`
	DocType    string `long:"doc-type" default:"biography" description:"Only scan documents with this type"`
	Preview    bool   `long:"preview" description:"Print candidate facts without storing them"`
}

func (c *extractBioCommand) Execute(_ []string) error {
	d, logger, err := c.app.deps(true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	extractor, err := d.Extractor()
	if err != nil {
		return err
	}
	res, err := extractor.ExtractForPersona(c.app.ctx, bioextract.Options{
		PersonaName: c.Persona,
		SourceName:  c.SourceName,
		DocType:     c.DocType,
		Preview:     c.Preview,
	})
	if err != nil {
		return err
	}

	for _, doc := range res.Documents {
		fmt.Fprintf(os.Stdout, "%s: %d candidate facts\n", doc.Title, len(doc.Candidates))
		if c.Preview {
			for _, f := range doc.Candidates {
				fmt.Fprintf(os.Stdout, "  - %s\n", f)
			}
		}
	}
	logger.Info("Extraction finished", "persona", c.Persona, "documents", len(res.Documents), "inserted", res.Inserted, "preview", c.Preview)
	return nil
}

type styleProfileCommand struct {
	app     *app
	Persona string `long:"persona" required:"yes" description:"Persona name"`
	Top     int    `long:"top" default:"30" description:"Entries kept per n-gram list"`
}

func (c *styleProfileCommand) Execute(_ []string) error {
	d, _, err := c.app.deps(true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	profiler, err := d.Profiler()
	if err != nil {
		return err
	}
	phrases, err := profiler.Compute(c.app.ctx, c.Persona, c.Top)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, style.Prompt(phrases))
	fmt.Fprintf(os.Stdout, "top words: %s\n", strings.Join(lo.Map(lo.Slice(phrases.Unigrams, 0, 10), func(p store.PhraseCount, _ int) string {
		return fmt.Sprintf("%s (%d)", p.Phrase, p.Count)
	}), ", "))
	return nil
}

type pdfToTextCommand struct {
	app  *app
	Out  string `long:"out" default:"converted_txt" description:"Output directory for .txt files"`
	Args struct {
		Src string `positional-arg-name:"src" required:"yes" description:"Directory (or file) of PDFs"`
	} `positional-args:"yes"`
}

func (c *pdfToTextCommand) Execute(_ []string) error {
	level := lo.Ternary(c.app.opts.LogLevel != "", c.app.opts.LogLevel, "info")
	logger := logging.NewFactoryFromEnv(logging.NewLogger(os.Stderr, level)).ForCLI("pdf-to-text")

	written, err := dataimport.ConvertPDFs(c.Args.Src, c.Out, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Converted %d PDFs to text in %s.\n", len(written), c.Out)
	return nil
}
