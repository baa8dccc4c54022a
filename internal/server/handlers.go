// internal/server/handlers.go
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/acmecorp/hrdesk/internal/attrition"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/rag"
)

// chatRequest is the payload for POST /chats. SessionID is optional;
// the query service mints one when it is absent.
type chatRequest struct {
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
}

// chatResponse carries the answer plus the chunk IDs it was grounded on.
type chatResponse struct {
	SessionID         string   `json:"session_id"`
	BotMessage        string   `json:"bot_message"`
	GroundingChunkIDs []string `json:"grounding_chunk_ids"`
}

// sessionResponse is the transcript returned by GET /chats/{session_id}.
type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []history.Turn `json:"turns"`
}

// attritionRequest is the payload for POST /attrition/summary.
type attritionRequest struct {
	Dimension string           `json:"dimension"`
	TopN      int              `json:"top_n"`
	Filters   attrition.Filter `json:"filters"`
}

// attritionResponse pairs the grouped rows with the filtered headcount.
type attritionResponse struct {
	Dimension string                 `json:"dimension"`
	Total     int                    `json:"total"`
	Rows      []attrition.SummaryRow `json:"rows"`
}

// healthResponse reports readiness plus coarse corpus and session counts.
type healthResponse struct {
	OK       bool   `json:"ok"`
	Store    string `json:"store"`
	Chunks   int64  `json:"chunks"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, fault.Errorf(fault.KindValidation, "reading request body: %w", err))
		return
	}
	if err := validateJSON(s.chatSchema, body); err != nil {
		writeError(w, err)
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, fault.Errorf(fault.KindValidation, "decoding chat request: %w", err))
		return
	}

	resp, err := s.queries.Query(r.Context(), rag.QueryRequest{
		SessionID: req.SessionID,
		Question:  req.UserMessage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	grounding := resp.GroundingChunkIDs
	if grounding == nil {
		grounding = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:         resp.SessionID,
		BotMessage:        resp.Answer,
		GroundingChunkIDs: grounding,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if err := history.ValidateSessionID(id); err != nil {
		writeError(w, err)
		return
	}
	exists, err := s.history.Exists(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, fault.Errorf(fault.KindNotFound, "session %q not found", id))
		return
	}
	turns, err := s.history.Load(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Turns: turns})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if err := s.history.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResp{OK: true})
}

func (s *Server) handleAttritionSummary(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, fault.Errorf(fault.KindValidation, "reading request body: %w", err))
		return
	}
	if err := validateJSON(s.attritionSchema, body); err != nil {
		writeError(w, err)
		return
	}
	var req attritionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, fault.Errorf(fault.KindValidation, "decoding attrition request: %w", err))
		return
	}

	matched, err := s.dataset.Filter(req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.dataset.Summarize(req.Filters, req.Dimension, req.TopN)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []attrition.SummaryRow{}
	}
	writeJSON(w, http.StatusOK, attritionResponse{
		Dimension: req.Dimension,
		Total:     len(matched),
		Rows:      rows,
	})
}

func (s *Server) handleAttritionOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dataset.Options())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	sessions, err := s.history.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		OK:       true,
		Store:    s.backend,
		Chunks:   chunks,
		Sessions: len(sessions),
	})
}

// readBody drains the request body under the global size cap.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
