package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/EmmettHwang/ssirn/internal/jobs"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/go-chi/chi/v5"
)

const defaultHistoryLimit = 50

type startResponse struct {
	JobID string `json:"job_id"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func (s *Server) handleStartConvert(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Camera          string `json:"camera"`
		Date            string `json:"date"`
		DeleteOriginals bool   `json:"delete_originals"`
	}
	if !decode(w, r, &payload) {
		return
	}
	id, err := s.app.StartConvert(payload.Camera, payload.Date, payload.DeleteOriginals)
	if err != nil {
		respondWithStartError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

func (s *Server) handleStartResize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Camera string `json:"camera"`
		Date   string `json:"date"`
	}
	if !decode(w, r, &payload) {
		return
	}
	id, err := s.app.StartResize(payload.Camera, payload.Date)
	if err != nil {
		respondWithStartError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

func (s *Server) handleStartResizeAll(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Camera string `json:"camera"`
	}
	if !decode(w, r, &payload) {
		return
	}
	id, err := s.app.StartResizeAll(payload.Camera)
	if err != nil {
		respondWithStartError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

func (s *Server) handleStartConvertRange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Camera          string `json:"camera"`
		From            string `json:"from"`
		To              string `json:"to"`
		DeleteOriginals bool   `json:"delete_originals"`
	}
	if !decode(w, r, &payload) {
		return
	}
	id, err := s.app.StartConvertRange(payload.Camera, payload.From, payload.To, payload.DeleteOriginals)
	if err != nil {
		respondWithStartError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, startResponse{JobID: id})
}

// limitParam reads ?limit, falling back to def when absent.
func limitParam(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r, jobs.DefaultRecentLimit)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Registry().ListRecent(limit))
}

func (s *Server) handleListRunningJobs(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Registry().ListRunning())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, ok := s.app.Registry().Get(id)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleSweepJobs(w http.ResponseWriter, r *http.Request) {
	evicted := s.app.Registry().Sweep()
	ids := make([]string, 0, len(evicted))
	for _, j := range evicted {
		ids = append(ids, j.ID)
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"evicted": len(ids),
		"job_ids": ids,
	})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r, defaultHistoryLimit)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	st := s.app.Store()
	if st == nil {
		RespondWithJSON(w, http.StatusOK, []models.Job{})
		return
	}
	history, err := st.ListJobHistory(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load job history")
		return
	}
	RespondWithJSON(w, http.StatusOK, history)
}
