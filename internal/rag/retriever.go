package rag

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const DefaultK = 3

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// IndexRetriever answers queries from an in-memory Index.
type IndexRetriever struct {
	index    *Index
	embedder Embedder
	k        int
}

// NewIndexRetriever returns a nil Retriever for a nil index, so an absent
// index can be registered and simply contributes nothing.
func NewIndexRetriever(index *Index, embedder Embedder, k int) Retriever {
	if index == nil {
		return nil
	}
	if k <= 0 {
		k = DefaultK
	}
	return &IndexRetriever{index: index, embedder: embedder, k: k}
}

func (r *IndexRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	chunks, err := r.index.Search(vec, r.k)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{Source: c.Source, Content: c.Text}
	}
	return docs, nil
}

// CombinedRetriever merges results from several retrievers in registration
// order, with no deduplication and no re-ranking.
type CombinedRetriever struct {
	retrievers []Retriever
	logger     *zap.Logger
}

func Combined(logger *zap.Logger, retrievers ...Retriever) *CombinedRetriever {
	return &CombinedRetriever{retrievers: retrievers, logger: logger.Named("retriever")}
}

// Retrieve always returns what the healthy retrievers found. Failures are
// logged and joined into the returned error.
func (c *CombinedRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	var docs []Document
	var errs []error
	for i, r := range c.retrievers {
		if r == nil {
			continue
		}
		found, err := r.Retrieve(ctx, query)
		if err != nil {
			c.logger.Warn("retriever failed, skipping", zap.Int("retriever", i), zap.Error(err))
			errs = append(errs, fmt.Errorf("retriever %d: %w", i, err))
			continue
		}
		docs = append(docs, found...)
	}
	return docs, errors.Join(errs...)
}

// Len reports how many non-nil retrievers are registered.
func (c *CombinedRetriever) Len() int {
	n := 0
	for _, r := range c.retrievers {
		if r != nil {
			n++
		}
	}
	return n
}
