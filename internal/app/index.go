package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/asisten-gizi/server/internal/ingest"
	"github.com/asisten-gizi/server/internal/rag"
	"github.com/asisten-gizi/server/internal/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type IndexSettings struct {
	CorpusDir    string
	IndexPath    string
	ChunkSize    int
	ChunkOverlap int
	Codec        rag.TokenCodec // nil chunks by runes
	RateLimit    float64        // embedding calls per second, <= 0 for unlimited
}

// EnsureIndex loads the persisted index, or builds and saves it when none
// exists. It returns a nil index when the corpus has nothing to index.
func EnsureIndex(ctx context.Context, s IndexSettings, embedder rag.Embedder, logger *zap.Logger) (*rag.Index, error) {
	idx, err := store.LoadIndex(ctx, s.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if idx != nil {
		if err := idx.CheckModel(embedder.ModelName()); err != nil {
			return nil, fmt.Errorf("%w (rebuild with `ingest --force`)", err)
		}
		logger.Info("using existing index", zap.String("path", s.IndexPath), zap.Int("chunks", idx.Len()))
		return idx, nil
	}

	logger.Info("no index found, building from corpus", zap.String("corpus", s.CorpusDir))
	return RebuildIndex(ctx, s, embedder, logger)
}

// RebuildIndex ingests the corpus and overwrites the persisted index.
func RebuildIndex(ctx context.Context, s IndexSettings, embedder rag.Embedder, logger *zap.Logger) (*rag.Index, error) {
	docs, err := ingest.NewLoader(logger).LoadDirectory(ctx, s.CorpusDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("corpus directory not found, answers will use general knowledge only", zap.String("corpus", s.CorpusDir))
			return nil, nil
		}
		return nil, err
	}

	opts := []rag.ChunkerOption{rag.WithWindow(s.ChunkSize, s.ChunkOverlap)}
	if s.Codec != nil {
		opts = append(opts, rag.WithTokens(s.Codec))
	}
	var limiter *rate.Limiter
	if s.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.RateLimit), 1)
	}

	idx, err := rag.NewBuilder(embedder, rag.NewChunker(opts...), limiter, logger).Build(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	if idx == nil {
		logger.Warn("corpus has no text, answers will use general knowledge only")
		return nil, nil
	}

	if err := store.SaveIndex(ctx, idx, s.IndexPath); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}
	logger.Info("index saved", zap.String("path", s.IndexPath), zap.Int("chunks", idx.Len()))
	return idx, nil
}
