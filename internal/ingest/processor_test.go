// internal/ingest/processor_test.go
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/store"
)

const testDimension = 4

// fakeEmbedder returns deterministic vectors and can be told to fail when a
// chunk's text contains a marker.
type fakeEmbedder struct {
	failText string
	batches  [][]string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failText != "" && strings.Contains(text, f.failText) {
			return nil, fault.Errorf(fault.KindUpstream, "embedding request failed")
		}
		vector := make([]float32, testDimension)
		vector[0] = float32(len(text))
		vectors[i] = vector
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type failingStore struct {
	store.Store
}

func (f *failingStore) Upsert(ctx context.Context, chunks []store.Chunk) error {
	return fault.Errorf(fault.KindStorage, "store offline")
}

func newTestProcessor(t *testing.T, st store.Store, emb *fakeEmbedder) (*Processor, string, string) {
	t.Helper()
	docs := t.TempDir()
	archive := t.TempDir()

	cfg := appconfig.Config{}
	cfg.Paths.DocsDir = docs
	cfg.Paths.ArchiveDir = archive
	cfg.RAG.ChunkSize = 80
	cfg.RAG.ChunkOverlap = 10

	return NewProcessor(st, emb, metrics.NewAggregator("", false), cfg), docs, archive
}

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunProcessesAndArchives(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{}
	proc, docs, archive := newTestProcessor(t, st, emb)

	writeDoc(t, docs, "hr_policy.txt", handbookDoc)

	summary, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 processed and 0 failed", summary)
	}
	if summary.Chunks == 0 {
		t.Fatal("summary reports 0 chunks stored")
	}

	count, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != int64(summary.Chunks) {
		t.Errorf("store holds %d chunks, summary says %d", count, summary.Chunks)
	}

	if _, err := os.Stat(filepath.Join(docs, "hr_policy.txt")); !os.IsNotExist(err) {
		t.Error("source document still present in docs directory after processing")
	}
	if _, err := os.Stat(filepath.Join(archive, "hr_policy.txt")); err != nil {
		t.Errorf("archived document missing: %v", err)
	}

	if len(emb.batches) != 1 {
		t.Errorf("embedder saw %d batches, want 1 per document", len(emb.batches))
	}
}

func TestRunEmbeddingFailureStoresNothing(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{failText: "POISON"}
	proc, docs, archive := newTestProcessor(t, st, emb)

	// Two paragraphs, two chunks; the second one trips the embedder.
	writeDoc(t, docs, "broken.txt",
		"First paragraph about leave accrual rules for full-time staff.\n\n"+
			"POISON second paragraph that the embedding service rejects.")

	summary, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 0 {
		t.Fatalf("summary = %+v, want 1 failed and 0 processed", summary)
	}

	count, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("store holds %d chunks after failed document, want 0", count)
	}

	if _, err := os.Stat(filepath.Join(docs, "broken.txt")); err != nil {
		t.Errorf("source document should remain for retry: %v", err)
	}
	if _, err := os.Stat(filepath.Join(archive, "broken.txt")); !os.IsNotExist(err) {
		t.Error("failed document must not be archived")
	}

	if len(emb.batches) != 1 || len(emb.batches[0]) < 2 {
		t.Fatalf("embedder batches = %v, want one batch with at least 2 chunks", emb.batches)
	}
}

func TestRunStoreFailureKeepsSourceInPlace(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore(testDimension)}
	emb := &fakeEmbedder{}
	proc, docs, _ := newTestProcessor(t, st, emb)

	writeDoc(t, docs, "doc.txt", "Some perfectly fine text that will not reach the store.")

	summary, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
	if _, err := os.Stat(filepath.Join(docs, "doc.txt")); err != nil {
		t.Errorf("source document should remain after store failure: %v", err)
	}
}

func TestRunSkipsNonTxtAndEmptyFiles(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{}
	proc, docs, archive := newTestProcessor(t, st, emb)

	writeDoc(t, docs, "notes.md", "# not a policy document")
	writeDoc(t, docs, "empty.txt", "   \n  ")

	summary, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Discovered != 1 {
		t.Errorf("Discovered = %d, want 1 (only the .txt file)", summary.Discovered)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}
	if summary.Processed != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want nothing processed or failed", summary)
	}

	if _, err := os.Stat(filepath.Join(docs, "notes.md")); err != nil {
		t.Errorf("non-txt file should stay put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(archive, "empty.txt")); !os.IsNotExist(err) {
		t.Error("empty document must not be archived")
	}
}

func TestRunMissingDocsDir(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{}

	cfg := appconfig.Config{}
	cfg.Paths.DocsDir = filepath.Join(t.TempDir(), "does-not-exist")
	cfg.Paths.ArchiveDir = t.TempDir()
	cfg.RAG.ChunkSize = 80
	cfg.RAG.ChunkOverlap = 10
	proc := NewProcessor(st, emb, metrics.NewAggregator("", false), cfg)

	_, err := proc.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with missing docs directory, want error")
	}
	if kind := fault.KindOf(err); kind != fault.KindIO {
		t.Errorf("error kind = %v, want KindIO", kind)
	}
}
