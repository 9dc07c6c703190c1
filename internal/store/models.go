package store

import "github.com/asisten-gizi/server/internal/rag"

// DataChunk is one row of the persisted index.
type DataChunk struct {
	ID            string    `json:"id"` // UUID
	Source        string    `json:"source"`
	Position      int       `json:"position"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"`
	EmbeddingJSON string    `json:"-"` // Store as JSON string for DB
}

func (c DataChunk) entry() rag.Entry {
	return rag.Entry{
		Chunk:  rag.Chunk{Text: c.Content, Source: c.Source, Position: c.Position},
		Vector: c.Embedding,
	}
}

// index_meta keys
const (
	metaEmbeddingModel = "embedding_model"
	metaDimension      = "dimension"
	metaCreatedAt      = "created_at"
)
