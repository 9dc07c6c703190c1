package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/asisten-gizi/server/internal/rag"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS index_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS data_chunks (
        id TEXT PRIMARY KEY, -- UUID
        source TEXT NOT NULL,
        position INTEGER NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT NOT NULL -- JSON array of float32
    );
    `
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveIndex writes idx to path. The file is built next to path and renamed
// into place, so readers never see a half-written index.
func SaveIndex(ctx context.Context, idx *rag.Index, path string) error {
	if idx == nil {
		return errors.New("cannot save an empty index")
	}
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear stale %s: %w", tmp, err)
	}

	s, err := NewSQLiteStore(tmp)
	if err != nil {
		return err
	}
	if err := s.writeIndex(ctx, idx); err != nil {
		s.Close()
		os.Remove(tmp)
		return err
	}
	if err := s.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close index database: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

func (s *SQLiteStore) writeIndex(ctx context.Context, idx *rag.Index) error {
	if err := s.initSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		metaEmbeddingModel: idx.EmbeddingModel(),
		metaDimension:      strconv.Itoa(idx.Dimension()),
		metaCreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO index_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write index metadata %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO data_chunks (id, source, position, content, embedding_json) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range idx.Entries() {
		embeddingBytes, err := json.Marshal(e.Vector)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), e.Chunk.Source, e.Chunk.Position, e.Chunk.Text, string(embeddingBytes)); err != nil {
			return fmt.Errorf("failed to execute data_chunk insert: %w", err)
		}
	}
	return tx.Commit()
}

// LoadIndex reads an index written by SaveIndex. A missing file is not an
// error: it returns a nil index.
func LoadIndex(ctx context.Context, path string) (*rag.Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat index %s: %w", path, err)
	}

	s, err := NewSQLiteStore("file:" + path + "?mode=ro")
	if err != nil {
		return nil, err
	}
	defer s.Close()

	model, err := s.meta(ctx, metaEmbeddingModel)
	if err != nil {
		return nil, err
	}
	chunks, err := s.GetAllDataChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index %s has no chunks", path)
	}

	entries := make([]rag.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = c.entry()
	}
	return rag.NewIndex(model, entries)
}

func (s *SQLiteStore) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("index metadata %q is missing", key)
		}
		return "", fmt.Errorf("failed to query index metadata: %w", err)
	}
	return value, nil
}

// GetAllDataChunks returns chunks in the order they were written.
func (s *SQLiteStore) GetAllDataChunks(ctx context.Context) ([]DataChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, source, position, content, embedding_json FROM data_chunks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query data_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Position, &chunk.Content, &chunk.EmbeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data_chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(chunk.EmbeddingJSON), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("corrupt embedding for chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
