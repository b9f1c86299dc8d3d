package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentcore/pkg/types"
)

func (s *Server) cronDisabled(w http.ResponseWriter) bool {
	if s.cron == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "cron subsystem is disabled")
		return true
	}
	return false
}

func (s *Server) listCronJobs(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.cron.ListJobs())
}

func (s *Server) createCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	var job types.CronJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	created, err := s.cron.AddJob(job)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) getCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	job, err := s.cron.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	if err := s.cron.RemoveJob(chi.URLParam(r, "jobID")); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) pauseCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	if err := s.cron.PauseJob(chi.URLParam(r, "jobID")); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) resumeCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	if err := s.cron.ResumeJob(chi.URLParam(r, "jobID")); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) runCronJob(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	if err := s.cron.RunJob(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) cronJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.cronDisabled(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.cron.GetHistory(chi.URLParam(r, "jobID"), limit))
}
