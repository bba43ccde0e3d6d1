package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/finsight/finsight/internal/models"
)

// SQLiteStore implements Store on a SQLite database. Every Add commits a
// transaction before returning, so a crash after Add cannot lose chunks.
// An in-memory mirror of all vectors serves brute-force cosine search;
// a RWMutex gives searches a consistent view while adds commit.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.RWMutex
	chunks    []*models.Chunk // insertion order
	dimension int
}

// NewSQLiteStore opens or creates the database at dbPath, initializes the
// schema, and loads existing chunks into memory. Parent directories are
// created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &models.StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, &models.StorageError{Op: "open", Err: fmt.Errorf("enable WAL: %w", err)}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, &models.StorageError{Op: "open", Err: fmt.Errorf("init schema: %w", err)}
	}
	s := &SQLiteStore{db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		source TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// load reads the dimension and all chunks into the in-memory mirror,
// preserving insertion (rowid) order.
func (s *SQLiteStore) load() error {
	var dimStr string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&dimStr)
	if err != nil && err != sql.ErrNoRows {
		return &models.StorageError{Op: "load", Err: err}
	}
	if err == nil {
		if _, scanErr := fmt.Sscanf(dimStr, "%d", &s.dimension); scanErr != nil {
			return &models.StorageError{Op: "load", Err: fmt.Errorf("bad dimension value %q", dimStr)}
		}
	}

	rows, err := s.db.Query(`SELECT id, content, embedding, metadata, created_at FROM chunks ORDER BY rowid`)
	if err != nil {
		return &models.StorageError{Op: "load", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var chunk models.Chunk
		var blob []byte
		var metadataJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Content, &blob, &metadataJSON, &chunk.CreatedAt); err != nil {
			return &models.StorageError{Op: "load", Err: err}
		}
		chunk.Embedding = decodeVector(blob)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
				return &models.StorageError{Op: "load", Err: fmt.Errorf("unmarshal metadata for %s: %w", chunk.ID, err)}
			}
		}
		s.chunks = append(s.chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return &models.StorageError{Op: "load", Err: err}
	}
	return nil
}

// Add validates, persists, and indexes the given chunks. The dimension is
// established by the first successful Add; later vectors must agree with it.
func (s *SQLiteStore) Add(ctx context.Context, contents []string, vectors [][]float32, metadatas []models.Metadata) ([]string, error) {
	if len(contents) == 0 {
		return nil, models.Validationf("no contents to add")
	}
	if len(contents) != len(vectors) || len(contents) != len(metadatas) {
		return nil, models.Validationf("lengths differ: %d contents, %d vectors, %d metadatas",
			len(contents), len(vectors), len(metadatas))
	}
	for i, content := range contents {
		if content == "" {
			return nil, models.Validationf("content %d is empty", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return nil, models.Validationf("vector 0 is empty")
		}
	}
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, &models.DimensionMismatchError{Want: dim, Got: len(vec)}
		}
	}

	now := time.Now().UTC()
	newChunks := make([]*models.Chunk, len(contents))
	for i := range contents {
		vec := make([]float32, dim)
		copy(vec, vectors[i])
		newChunks[i] = &models.Chunk{
			ID:        uuid.New().String(),
			Content:   contents[i],
			Embedding: vec,
			Metadata:  metadatas[i].Clone(),
			CreatedAt: now,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &models.StorageError{Op: "add", Err: err}
	}
	defer tx.Rollback()

	if s.dimension == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			fmt.Sprintf("%d", dim),
		); err != nil {
			return nil, &models.StorageError{Op: "add", Err: err}
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, content, embedding, metadata, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, &models.StorageError{Op: "add", Err: err}
	}
	defer stmt.Close()

	ids := make([]string, len(newChunks))
	for i, chunk := range newChunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, &models.StorageError{Op: "add", Err: fmt.Errorf("marshal metadata: %w", err)}
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Content, encodeVector(chunk.Embedding),
			string(metadataJSON), chunk.Source(), chunk.CreatedAt,
		); err != nil {
			return nil, &models.StorageError{Op: "add", Err: err}
		}
		ids[i] = chunk.ID
	}
	if err := tx.Commit(); err != nil {
		return nil, &models.StorageError{Op: "add", Err: err}
	}

	s.dimension = dim
	s.chunks = append(s.chunks, newChunks...)
	return ids, nil
}

// Search scans all chunks matching filter and returns the top k by cosine
// similarity. With fewer than k candidates, all of them are returned.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int, filter models.Metadata) ([]*models.RetrievalResult, error) {
	if k <= 0 {
		return nil, models.Validationf("k must be positive, got %d", k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, &models.DimensionMismatchError{Want: s.dimension, Got: len(query)}
	}

	type scored struct {
		chunk *models.Chunk
		score float64
		seq   int
	}
	candidates := make([]scored, 0, len(s.chunks))
	for i, chunk := range s.chunks {
		if filter != nil && !chunk.Metadata.Matches(filter) {
			continue
		}
		candidates = append(candidates, scored{chunk: chunk, score: CosineSimilarity(query, chunk.Embedding), seq: i})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].seq < candidates[j].seq
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]*models.RetrievalResult, k)
	for i := 0; i < k; i++ {
		results[i] = &models.RetrievalResult{Chunk: candidates[i].chunk, Score: candidates[i].score}
	}
	return results, nil
}

// DeleteBySource removes every chunk tagged with source.
func (s *SQLiteStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, &models.StorageError{Op: "delete", Err: err}
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		kept := s.chunks[:0]
		for _, chunk := range s.chunks {
			if chunk.Source() != source {
				kept = append(kept, chunk)
			}
		}
		s.chunks = kept
	}
	return int(n), nil
}

// Clear removes all chunks. The established dimension is kept: it reflects
// the configured embedding model, not the corpus.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	if err != nil {
		return 0, &models.StorageError{Op: "clear", Err: err}
	}
	n, _ := res.RowsAffected()
	s.chunks = nil
	return int(n), nil
}

// Stats returns the chunk count and established dimension.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Stats{ChunkCount: len(s.chunks), Dimension: s.dimension}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
