package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/asisten-gizi/server/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEmbedder struct {
	model string
	calls int
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) ModelName() string { return e.model }

func settingsFor(t *testing.T, corpus string) IndexSettings {
	t.Helper()
	return IndexSettings{
		CorpusDir:    corpus,
		IndexPath:    filepath.Join(t.TempDir(), "who_index.db"),
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "susu.txt"), []byte("Susu mengandung kalsium dan protein."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sayur.md"), []byte("# Sayur\nBayam kaya zat besi."), 0o644))
	return dir
}

func TestEnsureIndex_BuildsOnceThenLoads(t *testing.T) {
	ctx := context.Background()
	s := settingsFor(t, writeCorpus(t))

	first := &countingEmbedder{model: "test/len"}
	idx, err := EnsureIndex(ctx, s, first, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, first.calls)
	assert.FileExists(t, s.IndexPath)

	second := &countingEmbedder{model: "test/len"}
	loaded, err := EnsureIndex(ctx, s, second, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, second.calls, "an existing index must not be re-embedded")
	assert.Equal(t, idx.Entries(), loaded.Entries())
}

func TestEnsureIndex_EmbedderChanged(t *testing.T) {
	ctx := context.Background()
	s := settingsFor(t, writeCorpus(t))

	_, err := EnsureIndex(ctx, s, &countingEmbedder{model: "ollama/all-minilm"}, zap.NewNop())
	require.NoError(t, err)

	_, err = EnsureIndex(ctx, s, &countingEmbedder{model: "openai/text-embedding-3-small"}, zap.NewNop())
	assert.ErrorIs(t, err, rag.ErrEmbeddingMismatch)
	assert.Contains(t, err.Error(), "ingest --force")
}

func TestEnsureIndex_MissingCorpus(t *testing.T) {
	s := settingsFor(t, filepath.Join(t.TempDir(), "absent"))

	emb := &countingEmbedder{model: "test/len"}
	idx, err := EnsureIndex(context.Background(), s, emb, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.NoFileExists(t, s.IndexPath)
}

func TestRebuildIndex_Overwrites(t *testing.T) {
	ctx := context.Background()
	corpus := writeCorpus(t)
	s := settingsFor(t, corpus)

	_, err := EnsureIndex(ctx, s, &countingEmbedder{model: "test/len"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(corpus, "air.txt"), []byte("Air putih delapan gelas."), 0o644))
	emb := &countingEmbedder{model: "test/len"}
	idx, err := RebuildIndex(ctx, s, emb, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, emb.calls)
}
