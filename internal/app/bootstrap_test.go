package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/asisten-gizi/server/internal/config"
	"github.com/asisten-gizi/server/internal/core"
	"github.com/asisten-gizi/server/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// runeTokenizer maps every rune to its code point. 0 never occurs in text and
// serves as EOS.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) llm.Encoding {
	ids := runeTokenizer{}.EncodeIDs(text)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return llm.Encoding{InputIDs: ids, AttentionMask: mask}
}

func (runeTokenizer) EncodeIDs(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, int(r))
	}
	return ids
}

func (runeTokenizer) DecodeIDs(ids []int) string {
	runes := make([]rune, len(ids))
	for i, id := range ids {
		runes[i] = rune(id)
	}
	return string(runes)
}

func (t runeTokenizer) Decode(ids []int) string { return t.DecodeIDs(ids) }
func (runeTokenizer) EOSTokenID() int           { return 0 }
func (runeTokenizer) PadTokenID() (int, bool)   { return 0, false }

// fakeOllama answers generate and embeddings calls and records which paths
// were hit.
type fakeOllama struct {
	mu    sync.Mutex
	paths map[string]int
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths[r.URL.Path]++
	f.mu.Unlock()

	switch r.URL.Path {
	case "/api/generate":
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "Sarapan: nasi merah dan telur rebus", "done": true})
	case "/api/embeddings":
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, 0.5}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeOllama) hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paths[path]
}

func bootstrapConfig(t *testing.T, ollamaURL string) *config.Config {
	t.Helper()
	return &config.Config{
		CorpusDir:           writeCorpus(t),
		IndexPath:           filepath.Join(t.TempDir(), "who_index.db"),
		RetrievalK:          3,
		ChunkSize:           1000,
		ChunkOverlap:        100,
		ChunkUnit:           "runes",
		EmbedProvider:       config.ProviderOllama,
		LLMProvider:         config.ProviderOllama,
		ChatTemplate:        "mistral",
		OllamaURL:           ollamaURL,
		GenerationWorkers:   1,
		GenerationQueueSize: 4,
		GenerationTimeout:   10 * time.Second,
		MaxProgramWeeks:     52,
	}
}

func TestBootstrapPrograms_SkipsCorpus(t *testing.T) {
	ollama := &fakeOllama{paths: map[string]int{}}
	srv := httptest.NewServer(ollama)
	defer srv.Close()

	cfg := bootstrapConfig(t, srv.URL)
	rt, err := BootstrapPrograms(context.Background(), cfg, zap.NewNop(), Options{Tokenizer: runeTokenizer{}})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Answers)
	assert.Nil(t, rt.Index)
	require.NotNil(t, rt.Programs)

	program, err := rt.Programs.Generate(context.Background(), core.UserProfile{
		Duration: "1 minggu",
		Weight:   core.Number(70),
		Height:   core.Number(175),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, program.TotalWeeks)

	assert.Equal(t, 1, ollama.hits("/api/generate"))
	assert.Zero(t, ollama.hits("/api/embeddings"), "a program never needs the corpus")
	assert.NoFileExists(t, cfg.IndexPath)
}

func TestBootstrap_BuildsIndex(t *testing.T) {
	ollama := &fakeOllama{paths: map[string]int{}}
	srv := httptest.NewServer(ollama)
	defer srv.Close()

	cfg := bootstrapConfig(t, srv.URL)
	rt, err := Bootstrap(context.Background(), cfg, zap.NewNop(), Options{Tokenizer: runeTokenizer{}})
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Answers)
	require.NotNil(t, rt.Index)
	assert.Equal(t, 2, rt.Index.Len())
	assert.Equal(t, 2, ollama.hits("/api/embeddings"))
	assert.FileExists(t, cfg.IndexPath)
}
