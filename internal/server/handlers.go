package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paperguild/internal/core"
)

// HealthResponse reports service health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SubmitJobRequest is the body of POST /jobs. All fields are optional;
// omitted ones fall back to the configured pipeline defaults.
type SubmitJobRequest struct {
	Topic      string `json:"topic"`
	Days       int    `json:"days"`
	MaxResults int    `json:"max_results"`
}

// SubmitJobResponse returns the id of the queued job.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse is a job with its log attached.
type JobResponse struct {
	Job core.Job `json:"job"`
	Log string   `json:"log"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	if err := s.store.Ping(); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Topic == "" {
		req.Topic = s.defaults.Topic
	}
	if req.Days <= 0 {
		req.Days = s.defaults.Days
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.defaults.MaxResults
	}

	jobID, err := s.jobs.Submit(req.Topic, req.Days, req.MaxResults)
	if err != nil {
		s.log.Error("job submission failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, SubmitJobResponse{JobID: jobID})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := core.JobStatus(r.URL.Query().Get("status"))
	jobs, err := s.store.ListJobs(status)
	if err != nil {
		s.log.Error("listing jobs failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []core.Job{}
	}
	s.respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(id)
	if err != nil {
		s.log.Error("loading job failed", "error", err, "job", id)
		s.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	lines, err := s.store.JobLog(id)
	if err != nil {
		s.log.Error("loading job log failed", "error", err, "job", id)
		s.respondError(w, http.StatusInternalServerError, "failed to load job log")
		return
	}
	s.respondJSON(w, http.StatusOK, JobResponse{Job: *job, Log: strings.Join(lines, "\n")})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != core.JobDone {
		s.respondError(w, http.StatusConflict, "job has not finished")
		return
	}

	result, err := s.store.GetResult(id)
	if err != nil {
		s.log.Error("loading result failed", "error", err, "job", id)
		s.respondError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if result == nil {
		s.respondError(w, http.StatusNotFound, "result not found")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Wipe(); err != nil {
		s.log.Error("wipe failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "wipe failed")
		return
	}
	s.log.Warn("all pipeline data wiped by admin request")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}
