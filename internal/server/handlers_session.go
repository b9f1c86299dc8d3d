package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/agentcore/internal/session"
)

// createSessionRequest is the body for POST /session.
type createSessionRequest struct {
	Workspace    string `json:"workspace"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	ModelName    string `json:"model,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
			return
		}
	}

	sess, err := s.sessions.CreateSession(r.Context(), session.Config{
		ID:           ulid.Make().String(),
		Workspace:    req.Workspace,
		SystemPrompt: req.SystemPrompt,
		ModelName:    req.ModelName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.ListSessions()
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		sess, err := s.sessions.GetSession(id)
		if err != nil {
			continue
		}
		out = append(out, sessionSummary(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DestroySession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sendMessageRequest struct {
	Prompt string `json:"prompt"`
}

// sendMessage runs a prompt to completion and returns the final result.
// Callers that want incremental deltas should use /ws instead.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := s.sessions.Generate(r.Context(), sessionID, req.Prompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) forkSession(w http.ResponseWriter, r *http.Request) {
	fork, err := s.sessions.ForkSession(r.Context(), chi.URLParam(r, "sessionID"), ulid.Make().String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary(fork))
}

func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	cancelled := s.sessions.CancelOperation(chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) generateTitle(w http.ResponseWriter, r *http.Request) {
	title, err := s.sessions.GenerateTitle(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

func sessionSummary(sess *session.Session) map[string]any {
	return map[string]any{
		"id":         sess.ID(),
		"state":      sess.State(),
		"workspace":  sess.Workspace(),
		"model":      sess.ModelName(),
		"usage":      sess.TotalUsage(),
		"context":    sess.ContextUsage(),
		"created_at": sess.CreatedAt(),
		"updated_at": sess.UpdatedAt(),
	}
}
