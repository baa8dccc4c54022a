// internal/ingest/chunker.go
// Package ingest turns raw documents into embedded chunks in the vector store.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/acmecorp/hrdesk/internal/store"
)

// sectionHeading matches numbered policy headings such as "3. LEAVE POLICY:".
var sectionHeading = regexp.MustCompile(`^(\d+)\.\s+([A-Z\s&]+):`)

// defaultSeparators orders split points from the strongest break to the
// weakest: paragraph, line, sentence, word.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Section is a heading-delimited region of a document. Text before the first
// heading becomes section 0; documents without headings are one section.
type Section struct {
	Index int
	Title string
	Text  string
}

// SplitSections divides a document at numbered headings. The heading line
// stays part of its section's text so chunks keep their topic.
func SplitSections(text string) []Section {
	current := Section{Index: 0}
	var sections []Section
	var lines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(lines, "\n"))
		if body != "" {
			current.Text = body
			sections = append(sections, current)
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := sectionHeading.FindStringSubmatch(line); m != nil {
			flush()
			index, _ := strconv.Atoi(m[1])
			current = Section{Index: index, Title: strings.TrimSpace(m[2])}
		}
		lines = append(lines, line)
	}
	flush()

	return sections
}

// Chunker splits text into chunks of at most Size characters, carrying up to
// Overlap characters of trailing context into the next chunk. Splits prefer
// the strongest separator present; pieces that are still too large recurse
// onto weaker separators. A single token longer than Size is emitted whole
// rather than cut mid-word.
type Chunker struct {
	Size    int
	Overlap int

	separators []string
}

// NewChunker returns a chunker with the standard separator preference.
func NewChunker(size, overlap int) Chunker {
	if overlap < 0 {
		overlap = 0
	}
	if size > 0 && overlap >= size {
		overlap = size / 2
	}
	return Chunker{Size: size, Overlap: overlap, separators: defaultSeparators}
}

// Split chunks one span of text.
func (c Chunker) Split(text string) []string {
	if c.Size <= 0 {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, piece := range c.split(text, c.separators) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

// split breaks text on the first separator it contains, recursing oversized
// parts onto the remaining separators, and merges small parts back together.
func (c Chunker) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return []string{text}
	}

	var out []string
	var small []string
	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len(part) <= c.Size {
			small = append(small, part)
			continue
		}
		if len(small) > 0 {
			out = append(out, c.merge(small, sep)...)
			small = nil
		}
		out = append(out, c.split(part, rest)...)
	}
	if len(small) > 0 {
		out = append(out, c.merge(small, sep)...)
	}
	return out
}

// merge greedily joins parts into chunks up to Size characters, keeping a
// tail of whole parts totalling at most Overlap characters as the start of
// the next chunk.
func (c Chunker) merge(parts []string, sep string) []string {
	var chunks []string
	var window []string
	length := 0

	for _, part := range parts {
		add := len(part)
		if len(window) > 0 {
			add += len(sep)
		}

		if length+add > c.Size && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 {
				need := len(part)
				if len(window) > 0 {
					need += len(sep)
				}
				if length <= c.Overlap && length+need <= c.Size {
					break
				}
				drop := len(window[0])
				if len(window) > 1 {
					drop += len(sep)
				}
				length -= drop
				window = window[1:]
			}
			add = len(part)
			if len(window) > 0 {
				add += len(sep)
			}
		}

		window = append(window, part)
		length += add
	}

	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}

// ChunkDocument splits a document into section-aware chunks with stable ids
// of the form {stem}_s{section}_c{index}. Embeddings, content hash, and
// timestamps are filled in by the processor.
func ChunkDocument(filename, text string, size, overlap int) []store.Chunk {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	chunker := NewChunker(size, overlap)

	var chunks []store.Chunk
	for _, section := range SplitSections(text) {
		for i, piece := range chunker.Split(section.Text) {
			chunks = append(chunks, store.Chunk{
				ID:       fmt.Sprintf("%s_s%d_c%d", stem, section.Index, i),
				Document: base,
				Section:  section.Index,
				Index:    i,
				Text:     piece,
			})
		}
	}
	return chunks
}
