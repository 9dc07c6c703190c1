package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asisten-gizi/server/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keywordEmbedder embeds text as counts of a few fixed keywords, which makes
// similarity easy to reason about in tests.
type keywordEmbedder struct {
	keywords []string
	fail     map[string]bool
	calls    int
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords, fail: map[string]bool{}}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail[text] {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, len(e.keywords))
	lower := strings.ToLower(text)
	for i, k := range e.keywords {
		vec[i] = float32(strings.Count(lower, k))
	}
	vec = append(vec, 0.01) // keep every vector non-zero
	return vec, nil
}

func (e *keywordEmbedder) ModelName() string { return "test/keywords" }

func buildIndex(t *testing.T, emb Embedder, docs ...ingest.Document) *Index {
	t.Helper()
	idx, err := NewBuilder(emb, NewChunker(), nil, zap.NewNop()).Build(context.Background(), docs)
	require.NoError(t, err)
	return idx
}

func TestBuild_EmptyCorpusIsAbsent(t *testing.T) {
	emb := newKeywordEmbedder("susu")
	b := NewBuilder(emb, nil, nil, zap.NewNop())

	idx, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, idx)

	idx, err = b.Build(context.Background(), []ingest.Document{{Source: "kosong.txt", Text: "  \n\t "}})
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Zero(t, emb.calls)

	assert.Nil(t, NewIndexRetriever(idx, emb, 3))
}

func TestBuild_KeepsSourceAndOrder(t *testing.T) {
	emb := newKeywordEmbedder("susu", "nasi")
	long := strings.Repeat("a", 1500)
	idx := buildIndex(t, emb,
		ingest.Document{Source: "a.txt", Text: long},
		ingest.Document{Source: "b.txt", Text: "susu"},
	)

	require.NotNil(t, idx)
	assert.Equal(t, "test/keywords", idx.EmbeddingModel())
	assert.Equal(t, 3, idx.Dimension())

	entries := idx.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Chunk{Text: long[:1000], Source: "a.txt", Position: 0}, entries[0].Chunk)
	assert.Equal(t, Chunk{Text: long[900:], Source: "a.txt", Position: 1}, entries[1].Chunk)
	assert.Equal(t, "b.txt", entries[2].Chunk.Source)
}

func TestBuild_SkipsChunksThatFailToEmbed(t *testing.T) {
	emb := newKeywordEmbedder("susu")
	emb.fail["rusak"] = true

	idx := buildIndex(t, emb,
		ingest.Document{Source: "a.txt", Text: "rusak"},
		ingest.Document{Source: "b.txt", Text: "susu segar"},
	)
	require.NotNil(t, idx)
	assert.Equal(t, 1, idx.Len())
}

func TestBuild_AllChunksFailing(t *testing.T) {
	emb := newKeywordEmbedder("susu")
	emb.fail["rusak"] = true

	_, err := NewBuilder(emb, nil, nil, zap.NewNop()).Build(context.Background(),
		[]ingest.Document{{Source: "a.txt", Text: "rusak"}})
	assert.Error(t, err)
}

type shiftingEmbedder struct{ n int }

func (e *shiftingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.n++
	return make([]float32, e.n), nil
}
func (e *shiftingEmbedder) ModelName() string { return "test/shifting" }

func TestBuild_DimensionChangeIsMismatch(t *testing.T) {
	_, err := NewBuilder(&shiftingEmbedder{}, NewChunker(WithWindow(2, 0)), nil, zap.NewNop()).
		Build(context.Background(), []ingest.Document{{Source: "a", Text: "abcd"}})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestIndex_SearchRanksBySimilarity(t *testing.T) {
	emb := newKeywordEmbedder("susu", "nasi", "kopi")
	idx := buildIndex(t, emb,
		ingest.Document{Source: "kopi.txt", Text: "kopi kopi"},
		ingest.Document{Source: "susu.txt", Text: "susu susu susu"},
		ingest.Document{Source: "campur.txt", Text: "susu nasi"},
		ingest.Document{Source: "nasi.txt", Text: "nasi"},
	)

	r := NewIndexRetriever(idx, emb, 2)
	docs, err := r.Retrieve(context.Background(), "manfaat susu")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "susu.txt", docs[0].Source)
	assert.Equal(t, "campur.txt", docs[1].Source)
}

func TestIndex_SearchLimits(t *testing.T) {
	emb := newKeywordEmbedder("susu")
	idx := buildIndex(t, emb, ingest.Document{Source: "a", Text: "susu"})

	vec, _ := emb.Embed(context.Background(), "susu")
	got, err := idx.Search(vec, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = idx.Search(vec, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = idx.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestIndex_CheckModel(t *testing.T) {
	idx, err := NewIndex("ollama/all-minilm", []Entry{{Chunk: Chunk{Text: "x"}, Vector: []float32{1}}})
	require.NoError(t, err)

	assert.NoError(t, idx.CheckModel("ollama/all-minilm"))
	assert.ErrorIs(t, idx.CheckModel("openai/text-embedding-3-small"), ErrEmbeddingMismatch)
}

type staticRetriever struct {
	docs []Document
	err  error
}

func (s staticRetriever) Retrieve(context.Context, string) ([]Document, error) {
	return s.docs, s.err
}

func TestCombined_NilRetrieverContributesNothing(t *testing.T) {
	populated := staticRetriever{docs: []Document{
		{Source: "who.pdf", Content: "satu"},
		{Source: "who.pdf", Content: "dua"},
	}}

	docs, err := Combined(zap.NewNop(), nil, populated).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, populated.docs, docs)
}

func TestCombined_PreservesOrderAndDuplicates(t *testing.T) {
	first := staticRetriever{docs: []Document{{Source: "a", Content: "sama"}}}
	second := staticRetriever{docs: []Document{{Source: "a", Content: "sama"}, {Source: "b", Content: "lain"}}}

	c := Combined(zap.NewNop(), first, nil, second)
	docs, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []Document{
		{Source: "a", Content: "sama"},
		{Source: "a", Content: "sama"},
		{Source: "b", Content: "lain"},
	}, docs)
	assert.Equal(t, 2, c.Len())
}

func TestCombined_FailingRetrieverIsSkipped(t *testing.T) {
	boom := errors.New("pgvector down")
	c := Combined(zap.NewNop(),
		staticRetriever{err: boom},
		staticRetriever{docs: []Document{{Source: "ok", Content: "isi"}}},
	)

	docs, err := c.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Document{{Source: "ok", Content: "isi"}}, docs)
}

func TestCombined_Empty(t *testing.T) {
	docs, err := Combined(zap.NewNop()).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
