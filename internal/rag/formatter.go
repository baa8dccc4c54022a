// internal/rag/formatter.go
package rag

import (
	"fmt"
	"strings"

	"github.com/acmecorp/hrdesk/internal/store"
)

// BuildContext assembles the CONTEXT block from retrieved chunks in score
// order. Chunks are kept whole: one that would push the block past maxChars
// is dropped, never truncated, and smaller chunks after it may still fit.
// It returns the block and the chunks it actually contains.
func BuildContext(results []store.SearchResult, maxChars int) (string, []store.Chunk) {
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("CONTEXT\n")
	used := b.Len()

	var included []store.Chunk
	for _, result := range results {
		text := strings.TrimSpace(result.Chunk.Text)
		if text == "" {
			continue
		}
		line := fmt.Sprintf("[doc:%s chunk:%s] %s\n", result.Chunk.Document, result.Chunk.ID, text)
		if maxChars > 0 && used+len(line) > maxChars {
			continue
		}
		b.WriteString(line)
		used += len(line)
		included = append(included, result.Chunk)
	}

	if len(included) == 0 {
		return "", nil
	}
	return strings.TrimRight(b.String(), "\n"), included
}
