package rest

import (
	"encoding/json"
	"net/http"

	"github.com/fortuna/almanac/internal/refresh"
)

type refreshRequest struct {
	SeasonYear int   `json:"season_year" validate:"omitempty,gte=1900,lte=2200"`
	PeriodIDs  []int `json:"period_ids" validate:"omitempty,dive,gt=0"`
}

// EnqueueRefresh handles POST /api/v1/refresh
func (h *Handler) EnqueueRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validateRequest(r.Context(), &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid refresh request", err)
		return
	}

	refreshReq := refresh.Request{SeasonYear: req.SeasonYear, PeriodIDs: req.PeriodIDs}
	if _, err := refreshReq.DeriveType(); err != nil {
		respondError(w, http.StatusBadRequest, "Provide season_year or period_ids", err)
		return
	}

	job, err := h.deps.Refresh.Enqueue(r.Context(), refreshReq)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue refresh job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Refresh job queued",
		"job":     jobPayload(job),
	})
}

// RefreshStatus handles GET /api/v1/refresh/status
func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Refresh.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *refresh.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []map[string]interface{}{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *refresh.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.SeasonYear.Valid {
		payload["season_year"] = job.SeasonYear.Int32
	}
	if len(job.PeriodIDs) > 0 {
		payload["period_ids"] = job.PeriodIDs
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
