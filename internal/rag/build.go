package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asisten-gizi/server/internal/ingest"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Builder struct {
	embedder Embedder
	chunker  *Chunker
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewBuilder returns a Builder. A nil limiter means no throttling.
func NewBuilder(embedder Embedder, chunker *Chunker, limiter *rate.Limiter, logger *zap.Logger) *Builder {
	if chunker == nil {
		chunker = NewChunker()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Builder{embedder: embedder, chunker: chunker, limiter: limiter, logger: logger.Named("index-builder")}
}

// Build chunks and embeds docs. It returns a nil index and no error when
// there is no visible text to index.
func (b *Builder) Build(ctx context.Context, docs []ingest.Document) (*Index, error) {
	var chunks []Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		for i, text := range b.chunker.Split(doc.Text) {
			chunks = append(chunks, Chunk{Text: text, Source: doc.Source, Position: i})
		}
	}
	if len(chunks) == 0 {
		b.logger.Info("no text to index")
		return nil, nil
	}

	b.logger.Info("embedding chunks", zap.Int("chunks", len(chunks)), zap.String("model", b.embedder.ModelName()))

	entries := make([]Entry, 0, len(chunks))
	dim := 0
	for i, chunk := range chunks {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("index build interrupted: %w", err)
		}

		vec, err := b.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("index build interrupted: %w", ctx.Err())
			}
			b.logger.Warn("failed to embed chunk, skipping",
				zap.String("source", chunk.Source), zap.Int("position", chunk.Position), zap.Error(err))
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: chunk %d embedded to %d dimensions, earlier chunks had %d", ErrEmbeddingMismatch, i, len(vec), dim)
		}

		entries = append(entries, Entry{Chunk: chunk, Vector: vec})
		if n := len(entries); n%50 == 0 {
			b.logger.Info("embedded chunks", zap.Int("done", n), zap.Int("total", len(chunks)))
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("every chunk failed to embed")
	}
	b.logger.Info("index built", zap.Int("entries", len(entries)), zap.Int("skipped", len(chunks)-len(entries)))
	return NewIndex(b.embedder.ModelName(), entries)
}
