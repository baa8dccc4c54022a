// internal/server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/attrition"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/rag"
	"github.com/acmecorp/hrdesk/internal/store"
)

const sampleCSV = `EmployeeID,Attrition,Department,JobRole,Gender,Age,MonthlyIncome,OverTime,JobSatisfaction,WorkLifeBalance,EnvironmentSatisfaction,PerformanceRating,YearsAtCompany,YearsInCurrentRole,DistanceFromHome,EducationLevel,TrainingTimesLastYear
E001,Yes,Sales,Sales Executive,Male,28,4500,Yes,1,2,3,3,1,1,5,3,2
E002,No,Sales,Sales Executive,Female,35,5200,No,3,3,3,3,4,2,10,4,3
E003,Yes,Sales,Manager,Male,45,13000,No,4,4,4,4,12,7,3,5,1
E004,No,Research & Development,Research Scientist,Female,30,3200,No,2,3,2,3,2,2,8,4,2
E005,No,Research & Development,Research Scientist,Male,41,6800,Yes,5,4,4,4,7,5,12,3,4
E006,Yes,Research & Development,Laboratory Technician,Male,22,2600,Yes,2,2,1,3,1,0,20,2,0
E007,No,Research & Development,Laboratory Technician,Female,38,3100,No,3,3,3,3,6,3,7,3,5
E008,No,Human Resources,HR Specialist,Female,52,9000,No,4,3,4,3,18,10,2,4,2
E009,Yes,Human Resources,HR Specialist,Male,33,15500,Yes,1,1,2,3,5,2,9,5,1
E010,No,Sales,Sales Executive,Female,47,11000,No,3,4,3,4,11,6,4,3,3
`

// fakeQueryService returns a scripted response and records every request
// it receives.
type fakeQueryService struct {
	resp rag.QueryResponse
	err  error
	reqs []rag.QueryRequest
}

func (f *fakeQueryService) Query(_ context.Context, req rag.QueryRequest) (rag.QueryResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return rag.QueryResponse{}, f.err
	}
	resp := f.resp
	if resp.SessionID == "" {
		resp.SessionID = req.SessionID
	}
	return resp, nil
}

type testEnv struct {
	handler http.Handler
	queries *fakeQueryService
	history *history.Store
	chunks  *store.MemoryStore
	stats   *metrics.Aggregator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "hr.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("writing sample csv: %v", err)
	}
	dataset, err := attrition.Load(csvPath)
	if err != nil {
		t.Fatalf("loading dataset: %v", err)
	}

	hist, err := history.NewStore(filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("creating history store: %v", err)
	}

	var cfg appconfig.Config
	cfg.ApplyDefaults()
	cfg.Store.Backend = appconfig.BackendMemory

	queries := &fakeQueryService{}
	chunks := store.NewMemoryStore(3)
	stats := metrics.NewAggregator("", false)

	srv, err := New(queries, hist, dataset, chunks, stats, cfg)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	return &testEnv{
		handler: srv.Handler(),
		queries: queries,
		history: hist,
		chunks:  chunks,
		stats:   stats,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestChatReturnsAnswerWithGrounding(t *testing.T) {
	env := newTestEnv(t)
	env.queries.resp = rag.QueryResponse{
		SessionID:         "abc123",
		Answer:            "Employees accrue 20 days of annual leave.",
		GroundingChunkIDs: []string{"hr_policy_s1_c0", "hr_policy_s1_c1"},
	}

	rec := env.do(t, http.MethodPost, "/chats", `{"user_message":"How much annual leave do I get?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[chatResponse](t, rec)
	if resp.SessionID != "abc123" {
		t.Errorf("expected session abc123, got %q", resp.SessionID)
	}
	if resp.BotMessage != "Employees accrue 20 days of annual leave." {
		t.Errorf("unexpected bot message %q", resp.BotMessage)
	}
	if len(resp.GroundingChunkIDs) != 2 || resp.GroundingChunkIDs[0] != "hr_policy_s1_c0" {
		t.Errorf("unexpected grounding ids %v", resp.GroundingChunkIDs)
	}

	if len(env.queries.reqs) != 1 {
		t.Fatalf("expected 1 query, got %d", len(env.queries.reqs))
	}
	if got := env.queries.reqs[0].Question; got != "How much annual leave do I get?" {
		t.Errorf("service received question %q", got)
	}
}

func TestChatForwardsSessionID(t *testing.T) {
	env := newTestEnv(t)
	env.queries.resp = rag.QueryResponse{Answer: "ok"}

	rec := env.do(t, http.MethodPost, "/chats", `{"session_id":"team-42","user_message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.queries.reqs[0].SessionID; got != "team-42" {
		t.Errorf("service received session %q, want team-42", got)
	}
	resp := decodeBody[chatResponse](t, rec)
	if resp.SessionID != "team-42" {
		t.Errorf("response session %q, want team-42", resp.SessionID)
	}
}

func TestChatRejectsInvalidBodies(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing message", `{}`},
		{"empty message", `{"user_message":""}`},
		{"oversized message", `{"user_message":"` + strings.Repeat("a", 2001) + `"}`},
		{"unknown field", `{"user_message":"hi","mode":"debug"}`},
		{"malformed json", `{"user_message":`},
		{"bad session id", `{"session_id":"has spaces","user_message":"hi"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/chats", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decodeBody[ErrResp](t, rec)
			if resp.OK || resp.Error == "" {
				t.Errorf("expected error envelope, got %+v", resp)
			}
		})
	}

	if len(env.queries.reqs) != 0 {
		t.Errorf("invalid bodies reached the query service: %d calls", len(env.queries.reqs))
	}
}

func TestChatMapsFaultKindsToStatus(t *testing.T) {
	cases := []struct {
		kind   fault.Kind
		status int
	}{
		{fault.KindValidation, http.StatusBadRequest},
		{fault.KindNotFound, http.StatusNotFound},
		{fault.KindUpstream, http.StatusBadGateway},
		{fault.KindStorage, http.StatusServiceUnavailable},
		{fault.KindIO, http.StatusInternalServerError},
		{fault.KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			env := newTestEnv(t)
			env.queries.err = fault.Errorf(tc.kind, "scripted failure")

			rec := env.do(t, http.MethodPost, "/chats", `{"user_message":"hi"}`)
			if rec.Code != tc.status {
				t.Fatalf("kind %v: expected %d, got %d", tc.kind, tc.status, rec.Code)
			}
			resp := decodeBody[ErrResp](t, rec)
			if resp.OK || !strings.Contains(resp.Error, "scripted failure") {
				t.Errorf("unexpected error envelope %+v", resp)
			}
		})
	}
}

func TestSessionTranscriptEndpoints(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	err := env.history.Append("abc123",
		history.Turn{Role: history.RoleUser, Text: "How much leave?", At: now},
		history.Turn{Role: history.RoleAssistant, Text: "20 days.", At: now},
	)
	if err != nil {
		t.Fatalf("seeding history: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/chats/abc123", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[sessionResponse](t, rec)
	if resp.SessionID != "abc123" || len(resp.Turns) != 2 {
		t.Fatalf("unexpected transcript %+v", resp)
	}
	if resp.Turns[0].Role != history.RoleUser || resp.Turns[1].Text != "20 days." {
		t.Errorf("turns out of order: %+v", resp.Turns)
	}

	rec = env.do(t, http.MethodGet, "/chats/nosuch", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/chats/bad%20id", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid session id: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/chats/abc123", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ok := decodeBody[okResp](t, rec)
	if !ok.OK {
		t.Errorf("delete response not ok: %+v", ok)
	}

	rec = env.do(t, http.MethodGet, "/chats/abc123", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted session still readable: %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/chats/abc123", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete: expected 404, got %d", rec.Code)
	}
}

func TestAttritionSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/attrition/summary", `{"dimension":"Department"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[attritionResponse](t, rec)
	if resp.Dimension != "Department" || resp.Total != 10 {
		t.Fatalf("unexpected summary header %+v", resp)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("expected 3 department rows, got %d", len(resp.Rows))
	}
	first := resp.Rows[0]
	if first.Group != "Human Resources" || first.Total != 2 || first.Attrited != 1 || first.AttritionRate != 50 {
		t.Errorf("unexpected first row %+v", first)
	}

	rec = env.do(t, http.MethodPost, "/attrition/summary",
		`{"dimension":"JobRole","filters":{"departments":["Sales"]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered summary: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp = decodeBody[attritionResponse](t, rec)
	if resp.Total != 4 {
		t.Errorf("sales filter: expected total 4, got %d", resp.Total)
	}
	if len(resp.Rows) != 2 || resp.Rows[0].Group != "Manager" || resp.Rows[0].AttritionRate != 100 {
		t.Errorf("unexpected sales rows %+v", resp.Rows)
	}

	rec = env.do(t, http.MethodPost, "/attrition/summary", `{"dimension":"Department","top_n":1}`)
	resp = decodeBody[attritionResponse](t, rec)
	if len(resp.Rows) != 1 || resp.Total != 10 {
		t.Errorf("top_n=1: expected 1 row over full total, got %+v", resp)
	}
}

func TestAttritionSummaryValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing dimension", `{}`},
		{"unknown dimension", `{"dimension":"ShoeSize"}`},
		{"unknown filter key", `{"dimension":"Department","filters":{"planet":["Mars"]}}`},
		{"unknown filter value", `{"dimension":"Department","filters":{"departments":["Astrophysics"]}}`},
		{"negative top_n", `{"dimension":"Department","top_n":-1}`},
		{"wrong dimension type", `{"dimension":7}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/attrition/summary", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAttritionOptionsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/attrition/options", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	opts := decodeBody[attrition.Options](t, rec)
	if len(opts.Departments) != 3 {
		t.Errorf("expected 3 departments, got %v", opts.Departments)
	}
	found := false
	for _, d := range opts.Dimensions {
		if d == "Department" {
			found = true
		}
	}
	if !found {
		t.Errorf("dimensions missing Department: %v", opts.Dimensions)
	}
	if len(opts.Buckets["Age"]) != 4 {
		t.Errorf("expected 4 age buckets, got %v", opts.Buckets["Age"])
	}
}

func TestHealthzReportsCounts(t *testing.T) {
	env := newTestEnv(t)

	err := env.chunks.Upsert(context.Background(), []store.Chunk{
		{ID: "doc_s1_c0", Document: "doc.txt", Text: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "doc_s1_c1", Document: "doc.txt", Text: "beta", Embedding: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	if err := env.history.Append("abc123", history.Turn{Role: history.RoleUser, Text: "hi", At: time.Now().UTC()}); err != nil {
		t.Fatalf("seeding history: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	health := decodeBody[healthResponse](t, rec)
	if !health.OK || health.Store != appconfig.BackendMemory {
		t.Errorf("unexpected health header %+v", health)
	}
	if health.Chunks != 2 || health.Sessions != 1 {
		t.Errorf("expected 2 chunks and 1 session, got %+v", health)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.stats.RecordQuery(2, 5, 1800, 250)

	rec := env.do(t, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stats := decodeBody[metrics.Stats](t, rec)
	if stats.Query.TotalQueries != 1 {
		t.Errorf("expected 1 recorded query, got %d", stats.Query.TotalQueries)
	}
	if stats.Query.Subqueries.Mean != 2 {
		t.Errorf("expected subquery mean 2, got %v", stats.Query.Subqueries.Mean)
	}
}
