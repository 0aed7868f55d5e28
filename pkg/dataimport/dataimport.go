// Package dataimport discovers source files on disk and turns them into plain text for ingestion.
package dataimport

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

const (
	ExtText = ".txt"
	ExtPDF  = ".pdf"
)

// Source is one loaded file.
type Source struct {
	Path  string
	Title string
	Text  string
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ExtText || ext == ExtPDF
}

// Discover returns the supported files at path: the file itself, or every .txt and
// .pdf below the directory in lexical order.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		if !supported(path) {
			return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && supported(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}

// TitleFromPath derives a display title from the file stem.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), "_", " ")
}

// Load reads one file. PDFs go through page extraction and cleanup.
func Load(path string) (Source, error) {
	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtText:
		b, err := os.ReadFile(path)
		if err != nil {
			return Source{}, fmt.Errorf("read %s: %w", path, err)
		}
		text = string(b)
	case ExtPDF:
		pages, err := ExtractPDFPages(path)
		if err != nil {
			return Source{}, err
		}
		text = CleanPDFPages(pages)
	default:
		return Source{}, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	return Source{Path: path, Title: TitleFromPath(path), Text: text}, nil
}

// LoadAll discovers and loads every file under path. Unreadable files are logged and skipped.
func LoadAll(path string, logger *log.Logger) ([]Source, error) {
	files, err := Discover(path)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(files))
	for _, f := range files {
		src, err := Load(f)
		if err != nil {
			logger.Warn("Skipping unreadable source", "path", f, "error", err)
			continue
		}
		sources = append(sources, src)
	}
	logger.Info("Loaded sources", "path", path, "files", len(files), "loaded", len(sources),
		"pdfs", lo.CountBy(files, func(f string) bool { return strings.EqualFold(filepath.Ext(f), ExtPDF) }))
	return sources, nil
}

// ConvertPDFs writes a cleaned .txt for each PDF under src into outDir, mirroring
// the relative layout. PDFs that fail to read are logged and skipped.
func ConvertPDFs(src, outDir string, logger *log.Logger) ([]string, error) {
	files, err := Discover(src)
	if err != nil {
		return nil, err
	}
	root := src
	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		root = filepath.Dir(src)
	}

	var written []string
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f), ExtPDF) {
			continue
		}
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return written, fmt.Errorf("relative path for %s: %w", f, err)
		}
		out := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+ExtText)

		source, err := Load(f)
		if err != nil {
			logger.Warn("Failed to read PDF", "path", f, "error", err)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return written, fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(out, []byte(source.Text), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", out, err)
		}
		logger.Info("Converted PDF", "source", f, "output", out, "chars", len(source.Text))
		written = append(written, out)
	}
	logger.Info("Conversion finished", "converted", len(written), "output", outDir)
	return written, nil
}
