// internal/store/store.go
// Package store persists embedded document chunks and answers
// nearest-neighbor queries over them. Backends: an embedded SQLite file
// (default), a Milvus cluster, and an in-memory map for tests and
// throwaway runs.
package store

import (
	"context"
	"time"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/fault"
)

// Chunk is one embedded span of a source document. Chunks are immutable
// once stored; re-processing a document replaces them by id.
type Chunk struct {
	ID          string    `json:"id"`
	Document    string    `json:"document"`
	Section     int       `json:"section"`
	Index       int       `json:"chunk_index"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult pairs a chunk with its similarity score against the query
// vector. Scores are cosine similarity, higher is closer.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Store is the vector store port. Every backend rejects vectors whose
// dimensionality differs from the one the store was opened with.
type Store interface {
	// Upsert inserts the chunks, replacing any existing chunk with the
	// same id. All chunks are checked before any write happens.
	Upsert(ctx context.Context, chunks []Chunk) error
	// Search returns the k nearest chunks to the query vector, best first.
	Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	// DeleteDocument removes every chunk of the named source document and
	// reports how many were removed.
	DeleteDocument(ctx context.Context, document string) (int64, error)
	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int64, error)
	// Clear removes all chunks.
	Clear(ctx context.Context) error
	Close() error
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg appconfig.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case appconfig.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath, cfg.Dimension)
	case appconfig.BackendMilvus:
		return NewMilvusStore(ctx, cfg.MilvusAddress, cfg.MilvusCollection, cfg.Dimension)
	case appconfig.BackendMemory:
		return NewMemoryStore(cfg.Dimension), nil
	default:
		return nil, fault.Errorf(fault.KindStorage, "unknown store backend %q", cfg.Backend)
	}
}

// checkDimensions verifies every chunk's embedding against the store
// dimension before any write is attempted.
func checkDimensions(chunks []Chunk, dim int) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != dim {
			return fault.Errorf(fault.KindStorage,
				"chunk %s: embedding dimension %d does not match store dimension %d",
				chunk.ID, len(chunk.Embedding), dim)
		}
	}
	return nil
}

func checkQueryVector(vector []float32, dim int, k int) error {
	if k <= 0 {
		return fault.Errorf(fault.KindValidation, "search k must be positive, got %d", k)
	}
	if len(vector) != dim {
		return fault.Errorf(fault.KindStorage,
			"query vector dimension %d does not match store dimension %d", len(vector), dim)
	}
	return nil
}
