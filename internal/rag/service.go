// internal/rag/service.go
// Package rag answers employee questions grounded in retrieved document
// chunks, carrying conversation context across turns of a session.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/embedding"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/llm"
	"github.com/acmecorp/hrdesk/internal/logging"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/store"
)

// maxQuestionChars bounds a single user question.
const maxQuestionChars = 2000

// systemPrompt pins every answer to the retrieved context.
const systemPrompt = `You are the Acme Corp HR assistant. Answer employee questions using only the information in the CONTEXT block. If the context does not contain the answer, say you do not have that information and suggest contacting HR directly. Keep answers concise.`

// QueryRequest is one question against a session.
type QueryRequest struct {
	SessionID string
	Question  string
}

// QueryResponse carries the answer and the ids of the chunks it is
// grounded in.
type QueryResponse struct {
	SessionID         string
	Answer            string
	GroundingChunkIDs []string
}

// Service runs the retrieval-augmented query pipeline. All dependencies are
// injected; the service holds no global state.
type Service struct {
	store     store.Store
	embedder  embedding.Embedder
	completer llm.Completer
	history   *history.Store
	stats     *metrics.Aggregator

	retrievalK      int
	maxContextChars int
	historyTurns    int
	maxSubqueries   int
	rewriteEnabled  bool
}

// NewService wires a query service from its dependencies and the rag section
// of the config.
func NewService(st store.Store, emb embedding.Embedder, completer llm.Completer, hist *history.Store, stats *metrics.Aggregator, cfg appconfig.Config) *Service {
	return &Service{
		store:           st,
		embedder:        emb,
		completer:       completer,
		history:         hist,
		stats:           stats,
		retrievalK:      cfg.RAG.RetrievalK,
		maxContextChars: cfg.RAG.MaxContextChars,
		historyTurns:    cfg.RAG.HistoryTurns,
		maxSubqueries:   cfg.RAG.MaxSubqueries,
		rewriteEnabled:  cfg.RAG.RewriteEnabled,
	}
}

// Query answers one question. The returned grounding ids name the chunks the
// prompt contained, never more than the configured retrieval k. On failure
// nothing is appended to the session history.
func (s *Service) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return QueryResponse{}, fault.Errorf(fault.KindValidation, "question is empty")
	}
	if len(question) > maxQuestionChars {
		return QueryResponse{}, fault.Errorf(fault.KindValidation,
			"question is %d characters, limit is %d", len(question), maxQuestionChars)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if err := history.ValidateSessionID(sessionID); err != nil {
		return QueryResponse{}, err
	}

	turns, err := s.history.Load(sessionID)
	if err != nil {
		return QueryResponse{}, err
	}
	window := history.Window(turns, s.historyTurns)

	standalone := s.contextualize(ctx, question, window)
	subqueries := s.decompose(ctx, standalone)

	results, err := s.retrieve(ctx, subqueries)
	if err != nil {
		return QueryResponse{}, err
	}

	contextBlock, included := BuildContext(results, s.maxContextChars)
	logging.LogEvent("[RAG] Session %s: %d subqueries, %d chunks retrieved, %d grounded, %d context chars",
		sessionID, len(subqueries), len(results), len(included), len(contextBlock))

	answer, err := s.completer.Complete(ctx, buildMessages(contextBlock, window, question))
	if err != nil {
		return QueryResponse{}, err
	}

	now := time.Now().UTC()
	err = s.history.Append(sessionID,
		history.Turn{Role: history.RoleUser, Text: question, At: now},
		history.Turn{Role: history.RoleAssistant, Text: answer, At: now},
	)
	if err != nil {
		return QueryResponse{}, err
	}

	groundingIDs := make([]string, len(included))
	for i, chunk := range included {
		groundingIDs[i] = chunk.ID
	}
	s.stats.RecordQuery(len(subqueries), len(included), len(contextBlock),
		float64(time.Since(start).Milliseconds()))

	return QueryResponse{
		SessionID:         sessionID,
		Answer:            answer,
		GroundingChunkIDs: groundingIDs,
	}, nil
}

// retrieve embeds the subqueries, searches the store for each, and merges
// the hits by chunk id keeping the best score, capped at retrieval k.
func (s *Service) retrieve(ctx context.Context, subqueries []string) ([]store.SearchResult, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, subqueries)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	best := make(map[string]store.SearchResult)
	for _, vector := range vectors {
		results, err := s.store.Search(ctx, vector, s.retrievalK)
		if err != nil {
			return nil, fmt.Errorf("search store: %w", err)
		}
		for _, result := range results {
			if prev, ok := best[result.Chunk.ID]; !ok || result.Score > prev.Score {
				best[result.Chunk.ID] = result
			}
		}
	}

	merged := make([]store.SearchResult, 0, len(best))
	for _, result := range best {
		merged = append(merged, result)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	if len(merged) > s.retrievalK {
		merged = merged[:s.retrievalK]
	}
	return merged, nil
}

// buildMessages assembles the chat prompt: system instruction, windowed
// history, then the context block and the user's question.
func buildMessages(contextBlock string, window []history.Turn, question string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(window)+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})

	for _, turn := range window {
		role := llm.RoleUser
		if turn.Role == history.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: turn.Text})
	}

	if contextBlock == "" {
		contextBlock = "CONTEXT\n(no relevant documents found)"
	}
	messages = append(messages, llm.ChatMessage{
		Role:    llm.RoleUser,
		Content: contextBlock + "\n\nQUESTION\n" + question,
	})
	return messages
}
