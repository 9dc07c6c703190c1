package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/asisten-gizi/server/internal/rag"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// PGVectorStore mirrors the index into Postgres so several replicas can
// share one corpus.
type PGVectorStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPGVectorStore(ctx context.Context, connStr string, logger *zap.Logger) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgvector pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping pgvector database: %w", err)
	}
	return &PGVectorStore{pool: pool, logger: logger.Named("pgvector")}, nil
}

func (p *PGVectorStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PGVectorStore) createMetaTable(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS nutrition_index_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `)
	return err
}

func chunksTableDDL(dimension int) string {
	return fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS nutrition_chunks (
        id UUID PRIMARY KEY,
        source TEXT NOT NULL,
        position INT NOT NULL,
        content TEXT NOT NULL,
        embedding vector(%d) NOT NULL
    );
    `, dimension)
}

// schemaMatches reports whether the mirrored chunks table was created for
// idx's embedder. The vector column's dimension is fixed at creation.
func schemaMatches(meta map[string]string, idx *rag.Index) bool {
	return meta[metaEmbeddingModel] == idx.EmbeddingModel() &&
		meta[metaDimension] == strconv.Itoa(idx.Dimension())
}

// ReplaceIndex swaps the mirrored corpus for idx in one transaction. The
// chunks table is recreated when the embedder changed.
func (p *PGVectorStore) ReplaceIndex(ctx context.Context, idx *rag.Index) error {
	if idx == nil {
		return errors.New("cannot mirror an empty index")
	}
	if err := p.createMetaTable(ctx); err != nil {
		return fmt.Errorf("failed to create pgvector tables: %w", err)
	}
	meta, err := p.meta(ctx)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if !schemaMatches(meta, idx) {
		p.logger.Info("recreating chunks table",
			zap.String("old_model", meta[metaEmbeddingModel]), zap.String("old_dimension", meta[metaDimension]),
			zap.String("model", idx.EmbeddingModel()), zap.Int("dimension", idx.Dimension()),
		)
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS nutrition_chunks"); err != nil {
			return fmt.Errorf("failed to drop chunks table: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, chunksTableDDL(idx.Dimension())); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue("DELETE FROM nutrition_chunks")
	batch.Queue("DELETE FROM nutrition_index_meta")
	batch.Queue("INSERT INTO nutrition_index_meta (key, value) VALUES ($1, $2)", metaEmbeddingModel, idx.EmbeddingModel())
	batch.Queue("INSERT INTO nutrition_index_meta (key, value) VALUES ($1, $2)", metaDimension, strconv.Itoa(idx.Dimension()))
	for _, e := range idx.Entries() {
		batch.Queue(
			"INSERT INTO nutrition_chunks (id, source, position, content, embedding) VALUES ($1, $2, $3, $4, $5)",
			uuid.New(), e.Chunk.Source, e.Chunk.Position, e.Chunk.Text, pgvector.NewVector(e.Vector),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	p.logger.Info("mirrored index", zap.Int("chunks", idx.Len()))
	return nil
}

// Count reports how many chunks are mirrored. A store that was never
// written to has zero.
func (p *PGVectorStore) Count(ctx context.Context) (int, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, "SELECT to_regclass('nutrition_chunks') IS NOT NULL").Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check for nutrition_chunks: %w", err)
	}
	if !exists {
		return 0, nil
	}
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM nutrition_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// meta returns the mirror's metadata, empty when nothing was mirrored yet.
func (p *PGVectorStore) meta(ctx context.Context) (map[string]string, error) {
	meta := make(map[string]string)
	var exists bool
	if err := p.pool.QueryRow(ctx, "SELECT to_regclass('nutrition_index_meta') IS NOT NULL").Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check for nutrition_index_meta: %w", err)
	}
	if !exists {
		return meta, nil
	}

	rows, err := p.pool.Query(ctx, "SELECT key, value FROM nutrition_index_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query pgvector index metadata: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan pgvector index metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Retriever returns nil when nothing is mirrored yet, and fails with
// rag.ErrEmbeddingMismatch when the mirror was built by another embedder.
func (p *PGVectorStore) Retriever(ctx context.Context, embedder rag.Embedder, k int) (rag.Retriever, error) {
	n, err := p.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	meta, err := p.meta(ctx)
	if err != nil {
		return nil, err
	}
	if model := meta[metaEmbeddingModel]; model != embedder.ModelName() {
		return nil, fmt.Errorf("%w: pgvector mirror built with %q, configured embedder is %q", rag.ErrEmbeddingMismatch, model, embedder.ModelName())
	}
	dim, err := strconv.Atoi(meta[metaDimension])
	if err != nil {
		return nil, fmt.Errorf("pgvector index metadata %q is missing, re-run `ingest --pgvector`", metaDimension)
	}
	if k <= 0 {
		k = rag.DefaultK
	}
	return &pgRetriever{store: p, embedder: embedder, k: k, dimension: dim}, nil
}

// Search returns the k chunks nearest to vec by cosine distance.
func (p *PGVectorStore) Search(ctx context.Context, vec []float32, k int) ([]rag.Document, error) {
	if len(vec) == 0 {
		return nil, errors.New("empty query vector")
	}

	query := `
		SELECT source, content
		FROM nutrition_chunks
		ORDER BY embedding <=> $1, source, position
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var d rag.Document
		if err := rows.Scan(&d.Source, &d.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type pgRetriever struct {
	store     *PGVectorStore
	embedder  rag.Embedder
	k         int
	dimension int
}

func (r *pgRetriever) Retrieve(ctx context.Context, query string) ([]rag.Document, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != r.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, pgvector mirror has %d", rag.ErrEmbeddingMismatch, len(vec), r.dimension)
	}
	return r.store.Search(ctx, vec, r.k)
}
