package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/asisten-gizi/server/internal/utils"
)

// ErrEmbeddingMismatch means an index and a query were embedded by different
// models. It is a configuration error.
var ErrEmbeddingMismatch = errors.New("embedding model mismatch")

// Embedder turns text into a vector. ModelName identifies the embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type Chunk struct {
	Text     string
	Source   string
	Position int
}

// Document is a retrieved chunk as the request layer sees it.
type Document struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// Index is immutable after construction.
type Index struct {
	embeddingModel string
	dimension      int
	entries        []Entry
}

// NewIndex validates that every vector has the same dimension.
func NewIndex(embeddingModel string, entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, errors.New("index must contain at least one entry")
	}
	dim := len(entries[0].Vector)
	for i, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return nil, fmt.Errorf("%w: entry %d has dimension %d, want %d", ErrEmbeddingMismatch, i, len(e.Vector), dim)
		}
	}
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return &Index{embeddingModel: embeddingModel, dimension: dim, entries: copied}, nil
}

func (idx *Index) EmbeddingModel() string { return idx.embeddingModel }
func (idx *Index) Dimension() int         { return idx.dimension }
func (idx *Index) Len() int               { return len(idx.entries) }

// Entries returns a copy of the index contents in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// CheckModel fails when the index was built with a different embedder.
func (idx *Index) CheckModel(model string) error {
	if idx.embeddingModel != model {
		return fmt.Errorf("%w: index built with %q, configured embedder is %q", ErrEmbeddingMismatch, idx.embeddingModel, model)
	}
	return nil
}

type scoredEntry struct {
	entry Entry
	score float32
}

// Search returns at most k chunks ordered by cosine similarity, highest
// first. Ties keep insertion order.
func (idx *Index) Search(query []float32, k int) ([]Chunk, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrEmbeddingMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	scored := make([]scoredEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		sim, err := utils.CosineSimilarity(query, e.Vector)
		if err != nil {
			return nil, err
		}
		scored = append(scored, scoredEntry{entry: e, score: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	out := make([]Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].entry.Chunk
	}
	return out, nil
}
