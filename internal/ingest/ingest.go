// Package ingest reads the document corpus from disk.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type Document struct {
	Source string
	Text   string
}

// CorpusError is a failure to read one source document. It never aborts
// ingestion of the rest of the corpus.
type CorpusError struct {
	Source string
	Err    error
}

func (e *CorpusError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Source, e.Err)
}

func (e *CorpusError) Unwrap() error {
	return e.Err
}

// Extractor pulls plain text out of one file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type Loader struct {
	extractors map[string]Extractor
	logger     *zap.Logger
}

// NewLoader registers the PDF extractor for .pdf and reads .txt and .md
// files verbatim.
func NewLoader(logger *zap.Logger) *Loader {
	plain := plainTextExtractor{}
	return &Loader{
		extractors: map[string]Extractor{
			".pdf": NewPDFExtractor(),
			".txt": plain,
			".md":  plain,
		},
		logger: logger.Named("ingest"),
	}
}

// Register overrides or adds the extractor for a file extension.
func (l *Loader) Register(ext string, e Extractor) {
	l.extractors[strings.ToLower(ext)] = e
}

// LoadDirectory extracts every supported file in dir, in name order.
// Per-file failures are logged and skipped; only an unreadable directory is
// returned as an error.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []Document
	var skipped int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		extractor, ok := l.extractors[ext]
		if !ok {
			continue
		}

		text, err := extractor.Extract(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			skipped++
			l.logger.Warn("skipping document", zap.Error(&CorpusError{Source: entry.Name(), Err: err}))
			continue
		}
		docs = append(docs, Document{Source: entry.Name(), Text: text})
	}

	l.logger.Info("corpus loaded", zap.String("dir", dir), zap.Int("documents", len(docs)), zap.Int("skipped", skipped))
	return docs, nil
}

type plainTextExtractor struct{}

func (plainTextExtractor) Extract(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
