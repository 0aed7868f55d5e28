// Command personactl manages the persona store: schema, ingestion, fact
// extraction, style profiles and PDF conversion.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/EternisAI/persona-twin/pkg/bootstrap"
	"github.com/EternisAI/persona-twin/pkg/config"
	"github.com/EternisAI/persona-twin/pkg/logging"
)

type globalOptions struct {
	LogLevel string `long:"log-level" description:"Override LOG_LEVEL (debug, info, warn, error)"`
}

type app struct {
	opts globalOptions
	ctx  context.Context
}

func (a *app) logs(envs *config.Config) *logging.Factory {
	level := envs.LogLevel
	if a.opts.LogLevel != "" {
		level = a.opts.LogLevel
	}
	return logging.NewFactoryFromEnv(logging.NewLogger(os.Stderr, level))
}

// deps loads config and connects. Callers own Close.
func (a *app) deps(migrate bool) (*bootstrap.Deps, *log.Logger, error) {
	envs, err := config.LoadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	logs := a.logs(envs)
	d, err := bootstrap.New(a.ctx, bootstrap.NewInput{Config: envs, Logs: logs, Migrate: migrate})
	if err != nil {
		return nil, nil, err
	}
	return d, logs.ForCLI("personactl"), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{ctx: ctx}
	parser := flags.NewParser(&a.opts, flags.Default)
	parser.ShortDescription = "persona store management"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"migrate", "Apply schema migrations", "Apply pending schema migrations and print the current version.", &migrateCommand{app: a}},
		{"reset", "Drop and recreate the schema", "Roll back every migration and apply them again. All data is lost.", &resetCommand{app: a}},
		{"ingest", "Ingest .txt and .pdf files", "Chunk, embed and store every supported file under a path for one persona.", &ingestCommand{app: a}},
		{"extract-bio", "Extract biographical facts", "Scan a persona's documents for biographical sentences and store them as facts.", &extractBioCommand{app: a}},
		{"style-profile", "Compute a style profile", "Count frequent words and phrases across a persona's chunks and store the style prompt.", &styleProfileCommand{app: a}},
		{"delete-persona", "Delete a persona", "Remove a persona with its documents, chunks, embeddings and facts.", &deletePersonaCommand{app: a}},
		{"pdf-to-text", "Convert PDFs to text", "Convert every PDF under a directory to cleaned UTF-8 text files.", &pdfToTextCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.Fatal("Failed to register command", "command", c.name, "error", err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
