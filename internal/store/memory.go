// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps chunks in a map. It backs tests and short-lived demo
// runs where persistence does not matter.
type MemoryStore struct {
	mu     sync.RWMutex
	dim    int
	chunks map[string]Chunk
}

// NewMemoryStore returns an empty in-memory store for vectors of the given
// dimensionality.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dim:    dimension,
		chunks: make(map[string]Chunk),
	}
}

// Upsert inserts the chunks, replacing existing ids.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk) error {
	if err := checkDimensions(chunks, s.dim); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search scores every stored chunk against the query vector and returns the
// top k, best first.
func (s *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]SearchResult, error) {
	if err := checkQueryVector(vector, s.dim, k); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := make([]SearchResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if len(chunk.Embedding) != len(vector) {
			continue
		}
		results = append(results, SearchResult{
			Chunk: chunk,
			Score: CosineSimilarity(vector, chunk.Embedding),
		})
	}
	s.mu.RUnlock()

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
func (s *MemoryStore) DeleteDocument(_ context.Context, document string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, chunk := range s.chunks {
		if chunk.Document == document {
			delete(s.chunks, id)
			removed++
		}
	}
	return removed, nil
}

// Count reports the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

// Clear removes all chunks.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]Chunk)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
