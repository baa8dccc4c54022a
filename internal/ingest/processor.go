// internal/ingest/processor.go
package ingest

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/embedding"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/logging"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/store"
)

// Summary reports one processing run.
type Summary struct {
	Discovered int           `json:"discovered"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Chunks     int           `json:"chunks"`
	Duration   time.Duration `json:"duration"`
}

// Processor ingests documents from the docs directory into the vector store
// and archives the sources it has handled. A document is stored all or not
// at all: if embedding or insertion fails, nothing of it is written and the
// source file stays in place for the next run.
type Processor struct {
	store    store.Store
	embedder embedding.Embedder
	stats    *metrics.Aggregator

	docsDir    string
	archiveDir string
	chunkSize  int
	overlap    int
}

// NewProcessor wires a processor from its dependencies and the paths/rag
// sections of the config.
func NewProcessor(st store.Store, emb embedding.Embedder, stats *metrics.Aggregator, cfg appconfig.Config) *Processor {
	return &Processor{
		store:      st,
		embedder:   emb,
		stats:      stats,
		docsDir:    cfg.Paths.DocsDir,
		archiveDir: cfg.Paths.ArchiveDir,
		chunkSize:  cfg.RAG.ChunkSize,
		overlap:    cfg.RAG.ChunkOverlap,
	}
}

// Run processes every pending document once and returns a summary. Errors
// in individual documents are logged and counted, not returned; the error
// return covers run-level failures such as an unreadable docs directory.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	status := func(format string, args ...any) {
		elapsed := time.Since(start).Truncate(time.Millisecond)
		logging.LogEvent("[INGEST][%s] %s", elapsed, fmt.Sprintf(format, args...))
	}

	entries, err := os.ReadDir(p.docsDir)
	if err != nil {
		return Summary{}, fault.Wrap(fault.KindIO, fmt.Errorf("read docs directory %s: %w", p.docsDir, err))
	}
	if err := os.MkdirAll(p.archiveDir, 0o755); err != nil {
		return Summary{}, fault.Wrap(fault.KindIO, fmt.Errorf("create archive directory %s: %w", p.archiveDir, err))
	}

	var summary Summary
	status("Scanning %s", p.docsDir)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".txt") {
			status("Skipping %s: not a .txt document", name)
			summary.Skipped++
			continue
		}
		summary.Discovered++

		chunks, err := p.processDocument(ctx, name, status)
		if err != nil {
			status("Failed %s: %v", name, err)
			summary.Failed++
			continue
		}
		if chunks == 0 {
			summary.Skipped++
			continue
		}
		summary.Processed++
		summary.Chunks += chunks
	}

	summary.Duration = time.Since(start)
	status("Complete: %d processed, %d skipped, %d failed, %d chunks stored",
		summary.Processed, summary.Skipped, summary.Failed, summary.Chunks)
	return summary, nil
}

// processDocument handles one file end to end and returns how many chunks it
// stored. A zero count with nil error means the document had no usable text.
func (p *Processor) processDocument(ctx context.Context, name string, status func(string, ...any)) (int, error) {
	docStart := time.Now()
	path := filepath.Join(p.docsDir, name)

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fault.Wrap(fault.KindIO, fmt.Errorf("read document: %w", err))
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		status("Skipping %s: empty document", name)
		return 0, nil
	}
	contentHash := fmt.Sprintf("%x", md5.Sum(raw))

	chunks := ChunkDocument(name, text, p.chunkSize, p.overlap)
	if len(chunks) == 0 {
		status("Skipping %s: no chunks produced", name)
		return 0, nil
	}
	status("Chunked %s into %d chunks across %d sections", name, len(chunks), countSections(chunks))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", name, err)
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		chunks[i].ContentHash = contentHash
		chunks[i].CreatedAt = now
	}

	if err := p.store.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store %s: %w", name, err)
	}

	if err := moveFile(path, filepath.Join(p.archiveDir, name)); err != nil {
		return 0, fault.Wrap(fault.KindIO, fmt.Errorf("archive %s: %w", name, err))
	}

	elapsed := time.Since(docStart)
	status("Processed %s: %d chunks in %s", name, len(chunks), elapsed.Truncate(time.Millisecond))
	p.stats.RecordIngest(len(chunks), float64(elapsed.Milliseconds()))
	return len(chunks), nil
}

func countSections(chunks []store.Chunk) int {
	seen := make(map[int]struct{})
	for _, chunk := range chunks {
		seen[chunk.Section] = struct{}{}
	}
	return len(seen)
}

// moveFile renames src to dst, falling back to copy and remove when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
