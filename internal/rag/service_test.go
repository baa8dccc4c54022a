// internal/rag/service_test.go
package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/llm"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/store"
)

const testDimension = 3

// fakeEmbedder returns canned vectors by exact text, with a default vector
// for anything else.
type fakeEmbedder struct {
	vectors map[string][]float32
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vector, ok := f.vectors[text]; ok {
			out[i] = vector
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// fakeCompleter replies with scripted responses in order, recording every
// call. With no script it answers "ok".
type fakeCompleter struct {
	responses []string
	err       error
	calls     [][]llm.ChatMessage
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "ok", nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

// seedChunks stores five chunks whose similarity to [1,0,0] strictly
// decreases: s1_c0 > s1_c1 > s2_c0 > s2_c1 > s3_c0.
func seedChunks(t *testing.T, st store.Store) []string {
	t.Helper()
	vectors := [][]float32{
		{1, 0, 0},
		{2, 1, 0},
		{1, 1, 0},
		{1, 2, 0},
		{0, 1, 0},
	}
	ids := []string{"policy_s1_c0", "policy_s1_c1", "policy_s2_c0", "policy_s2_c1", "policy_s3_c0"}

	chunks := make([]store.Chunk, len(ids))
	for i, id := range ids {
		chunks[i] = store.Chunk{
			ID:        id,
			Document:  "policy.txt",
			Section:   1,
			Index:     i,
			Text:      "chunk " + id,
			Embedding: vectors[i],
		}
	}
	if err := st.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("seed Upsert returned error: %v", err)
	}
	return ids
}

func newTestService(t *testing.T, st store.Store, emb *fakeEmbedder, completer *fakeCompleter, rewrite bool, k int) (*Service, *history.Store) {
	t.Helper()
	hist, err := history.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	cfg := appconfig.Config{}
	cfg.RAG.RetrievalK = k
	cfg.RAG.MaxContextChars = 6000
	cfg.RAG.HistoryTurns = 6
	cfg.RAG.MaxSubqueries = 3
	cfg.RAG.RewriteEnabled = rewrite

	return NewService(st, emb, completer, hist, metrics.NewAggregator("", false), cfg), hist
}

func TestQueryReturnsTopKGrounding(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{responses: []string{"You accrue twenty days."}}
	svc, _ := newTestService(t, st, emb, completer, false, 3)

	resp, err := svc.Query(context.Background(), QueryRequest{Question: "How much vacation do I get?"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if resp.Answer != "You accrue twenty days." {
		t.Errorf("answer = %q, want the completion", resp.Answer)
	}
	if len(resp.GroundingChunkIDs) != 3 {
		t.Fatalf("grounding ids = %v, want exactly 3", resp.GroundingChunkIDs)
	}
	want := []string{"policy_s1_c0", "policy_s1_c1", "policy_s2_c0"}
	for i, id := range want {
		if resp.GroundingChunkIDs[i] != id {
			t.Errorf("grounding[%d] = %q, want %q", i, resp.GroundingChunkIDs[i], id)
		}
	}

	// The prompt carried exactly the grounded chunks.
	final := completer.calls[len(completer.calls)-1]
	prompt := final[len(final)-1].Content
	for _, id := range want {
		if !strings.Contains(prompt, id) {
			t.Errorf("prompt missing grounded chunk %s", id)
		}
	}
	if strings.Contains(prompt, "policy_s3_c0") {
		t.Error("prompt contains a chunk beyond k")
	}
}

func TestQueryGeneratesAndPersistsSession(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{responses: []string{"Twenty days."}}
	svc, hist := newTestService(t, st, emb, completer, false, 3)

	resp, err := svc.Query(context.Background(), QueryRequest{Question: "How much vacation do I get?"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("no session id generated")
	}
	if err := history.ValidateSessionID(resp.SessionID); err != nil {
		t.Fatalf("generated session id %q is invalid: %v", resp.SessionID, err)
	}

	turns, err := hist.Load(resp.SessionID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("session has %d turns, want 2", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[0].Text != "How much vacation do I get?" {
		t.Errorf("first turn = %+v, want the user question", turns[0])
	}
	if turns[1].Role != history.RoleAssistant || turns[1].Text != "Twenty days." {
		t.Errorf("second turn = %+v, want the answer", turns[1])
	}

	// A second question in the same session appends, never reorders.
	completer.responses = []string{"Ten days carry over."}
	if _, err := svc.Query(context.Background(), QueryRequest{SessionID: resp.SessionID, Question: "How many carry over?"}); err != nil {
		t.Fatalf("second Query returned error: %v", err)
	}
	turns, err = hist.Load(resp.SessionID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("session has %d turns after two queries, want 4", len(turns))
	}
	if turns[0].Text != "How much vacation do I get?" {
		t.Errorf("first turn changed after append: %+v", turns[0])
	}
}

func TestQueryFailureLeavesHistoryUnchanged(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{err: fault.Errorf(fault.KindUpstream, "completion failed")}
	svc, hist := newTestService(t, st, emb, completer, false, 3)

	_, err := svc.Query(context.Background(), QueryRequest{SessionID: "sess-1", Question: "anything"})
	if err == nil {
		t.Fatal("Query succeeded, want error")
	}
	if kind := fault.KindOf(err); kind != fault.KindUpstream {
		t.Errorf("error kind = %v, want KindUpstream", kind)
	}

	turns, err := hist.Load("sess-1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("failed query persisted %d turns, want 0", len(turns))
	}
}

func TestQueryEmbeddingFailure(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{err: fault.Errorf(fault.KindUpstream, "embedding failed")}
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, st, emb, completer, false, 3)

	_, err := svc.Query(context.Background(), QueryRequest{Question: "anything"})
	if err == nil {
		t.Fatal("Query succeeded, want error")
	}
	if kind := fault.KindOf(err); kind != fault.KindUpstream {
		t.Errorf("error kind = %v, want KindUpstream", kind)
	}
}

func TestQueryValidation(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, st, emb, completer, false, 3)

	if _, err := svc.Query(context.Background(), QueryRequest{Question: "   "}); fault.KindOf(err) != fault.KindValidation {
		t.Errorf("empty question error = %v, want KindValidation", err)
	}

	long := strings.Repeat("w", maxQuestionChars+1)
	if _, err := svc.Query(context.Background(), QueryRequest{Question: long}); fault.KindOf(err) != fault.KindValidation {
		t.Errorf("oversized question error = %v, want KindValidation", err)
	}

	if _, err := svc.Query(context.Background(), QueryRequest{SessionID: "../escape", Question: "hi"}); fault.KindOf(err) != fault.KindValidation {
		t.Errorf("bad session id error = %v, want KindValidation", err)
	}
}

func TestQueryFollowupRewriteDrivesRetrieval(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{responses: []string{
		"What is the leave policy for managers?",
		"1. manager leave policy\n2. leave approval chain",
		"Managers accrue the same twenty days.",
	}}
	svc, hist := newTestService(t, st, emb, completer, true, 3)

	if err := hist.Append("sess-2",
		history.Turn{Role: history.RoleUser, Text: "What is the leave policy?"},
		history.Turn{Role: history.RoleAssistant, Text: "Twenty days per year."},
	); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	resp, err := svc.Query(context.Background(), QueryRequest{SessionID: "sess-2", Question: "and for managers?"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if resp.Answer != "Managers accrue the same twenty days." {
		t.Errorf("answer = %q, want the final completion", resp.Answer)
	}
	if len(completer.calls) != 3 {
		t.Fatalf("completer saw %d calls, want contextualize, decompose, answer", len(completer.calls))
	}

	if len(emb.batches) != 1 {
		t.Fatalf("embedder saw %d batches, want 1", len(emb.batches))
	}
	got := emb.batches[0]
	if len(got) != 2 || got[0] != "manager leave policy" || got[1] != "leave approval chain" {
		t.Errorf("embedded subqueries = %v, want the decomposed queries", got)
	}

	// The persisted user turn is the question as asked, not the rewrite.
	turns, err := hist.Load("sess-2")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if turns[2].Text != "and for managers?" {
		t.Errorf("persisted user turn = %q, want the original question", turns[2].Text)
	}
}

func TestQueryEmptyStoreAnswersWithoutGrounding(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{responses: []string{"I do not have that information."}}
	svc, _ := newTestService(t, st, emb, completer, false, 3)

	resp, err := svc.Query(context.Background(), QueryRequest{Question: "What is the dress code?"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(resp.GroundingChunkIDs) != 0 {
		t.Errorf("grounding ids = %v, want none", resp.GroundingChunkIDs)
	}

	final := completer.calls[len(completer.calls)-1]
	prompt := final[len(final)-1].Content
	if !strings.Contains(prompt, "(no relevant documents found)") {
		t.Errorf("prompt missing empty-context marker: %q", prompt)
	}
}

func TestQueryHistoryWindowInPrompt(t *testing.T) {
	st := store.NewMemoryStore(testDimension)
	seedChunks(t, st)
	emb := &fakeEmbedder{}
	completer := &fakeCompleter{responses: []string{"answer"}}
	svc, hist := newTestService(t, st, emb, completer, false, 3)

	// Eight prior turns; only the newest six belong in the prompt.
	for i := 0; i < 4; i++ {
		if err := hist.Append("sess-3",
			history.Turn{Role: history.RoleUser, Text: "question " + string(rune('A'+i))},
			history.Turn{Role: history.RoleAssistant, Text: "answer " + string(rune('A'+i))},
		); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	if _, err := svc.Query(context.Background(), QueryRequest{SessionID: "sess-3", Question: "latest?"}); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	messages := completer.calls[0]
	// system + 6 windowed turns + final user message.
	if len(messages) != 8 {
		t.Fatalf("prompt has %d messages, want 8", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", messages[0].Role)
	}
	if messages[1].Content != "question B" {
		t.Errorf("oldest windowed turn = %q, want %q", messages[1].Content, "question B")
	}

	// Persisted history is untouched by windowing.
	turns, err := hist.Load("sess-3")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(turns) != 10 {
		t.Errorf("persisted turns = %d, want 10", len(turns))
	}
}
