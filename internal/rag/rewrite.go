// internal/rag/rewrite.go
package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/llm"
	"github.com/acmecorp/hrdesk/internal/logging"
)

// Short follow-ups lean on the conversation; longer questions usually stand
// on their own and are retrieved as-is.
const (
	maxFollowupWords   = 10
	contextualizeTurns = 2
)

const contextualizeSystem = `Rewrite the follow-up question as a single standalone question using the conversation. Reply with the rewritten question only, no explanation.`

const decomposeSystem = `Split the question into the smallest set of standalone search queries that together cover it. Reply with a numbered list, one query per line, and nothing else. If the question is already a single query, reply with one item.`

var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// contextualize rewrites a short follow-up into a standalone question using
// the most recent turns. Any failure falls back to the original question.
func (s *Service) contextualize(ctx context.Context, question string, window []history.Turn) string {
	if !s.rewriteEnabled || len(window) == 0 {
		return question
	}
	if len(strings.Fields(question)) > maxFollowupWords {
		return question
	}

	var transcript strings.Builder
	for _, turn := range history.Window(window, contextualizeTurns) {
		fmt.Fprintf(&transcript, "%s: %s\n", turn.Role, turn.Text)
	}

	rewritten, err := s.completer.Complete(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: contextualizeSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Conversation:\n%s\nFollow-up question: %s", transcript.String(), question)},
	})
	if err != nil {
		logging.LogEvent("[RAG] Contextualize failed, keeping original question: %v", err)
		return question
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}
	logging.LogEvent("[RAG] Contextualized %q -> %q", question, rewritten)
	return rewritten
}

// decompose splits a question into standalone sub-queries for retrieval.
// Malformed model output or any failure falls back to the question itself.
func (s *Service) decompose(ctx context.Context, question string) []string {
	if !s.rewriteEnabled || s.maxSubqueries <= 1 {
		return []string{question}
	}

	out, err := s.completer.Complete(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: decomposeSystem},
		{Role: llm.RoleUser, Content: question},
	})
	if err != nil {
		logging.LogEvent("[RAG] Decompose failed, keeping original question: %v", err)
		return []string{question}
	}

	subqueries := parseNumberedList(out)
	if len(subqueries) == 0 {
		return []string{question}
	}
	if len(subqueries) > s.maxSubqueries {
		subqueries = subqueries[:s.maxSubqueries]
	}
	return subqueries
}

// parseNumberedList extracts the items of a "1. ..." or "1) ..." list.
func parseNumberedList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
