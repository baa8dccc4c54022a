// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/acmecorp/hrdesk/internal/fault"
)

const createChunksTableSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	document      TEXT NOT NULL,
	section       INTEGER NOT NULL,
	chunk_index   INTEGER NOT NULL,
	text          TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	content_hash  TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document);
`

// SQLiteStore persists chunks in a single SQLite file. Embeddings are
// stored as little-endian float32 BLOBs; similarity search scans the table
// and scores in process, which is comfortable at the corpus sizes the
// document pipeline produces.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteStore opens (or creates) the database file and ensures the
// schema exists.
func NewSQLiteStore(path string, dimension int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("create store directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("open chunk store: %w", err))
	}
	// A single connection avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createChunksTableSQL); err != nil {
		_ = db.Close()
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("ensure chunk schema: %w", err))
	}

	return &SQLiteStore{db: db, dim: dimension}, nil
}

// Upsert inserts the chunks in one transaction, replacing existing ids.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := checkDimensions(chunks, s.dim); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("begin upsert: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks
		(id, document, section, chunk_index, text, embedding, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.ExecContext(ctx,
			chunk.ID,
			chunk.Document,
			chunk.Section,
			chunk.Index,
			chunk.Text,
			EncodeVector(chunk.Embedding),
			chunk.ContentHash,
			chunk.CreatedAt.UTC().Unix(),
		)
		if err != nil {
			return fault.Wrap(fault.KindStorage, fmt.Errorf("insert chunk %s: %w", chunk.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("commit upsert: %w", err))
	}
	return nil
}

// Search scans the table, scores every chunk against the query vector, and
// returns the top k, best first.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if err := checkQueryVector(vector, s.dim, k); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, section, chunk_index, text, embedding, content_hash, created_at FROM chunks`)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("scan chunks: %w", err))
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			chunk     Chunk
			blob      []byte
			createdAt int64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Document, &chunk.Section, &chunk.Index,
			&chunk.Text, &blob, &chunk.ContentHash, &createdAt); err != nil {
			return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("scan chunk row: %w", err))
		}
		embedding, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		if len(embedding) != len(vector) {
			continue
		}
		chunk.Embedding = embedding
		chunk.CreatedAt = time.Unix(createdAt, 0).UTC()
		results = append(results, SearchResult{
			Chunk: chunk,
			Score: CosineSimilarity(vector, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("read chunks: %w", err))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Chunk.ID < results[j].Chunk.ID
		}
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// DeleteDocument removes every chunk of the named document.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, document string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document = ?`, document)
	if err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("delete document %s: %w", document, err))
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("delete document %s: %w", document, err))
	}
	return removed, nil
}

// Count reports the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("count chunks: %w", err))
	}
	return n, nil
}

// Clear removes all chunks.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("clear chunks: %w", err))
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
