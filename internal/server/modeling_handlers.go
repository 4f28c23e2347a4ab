package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ytcomments/internal/export"
	"ytcomments/internal/modeling"
	"ytcomments/internal/topics"
)

type modelingRunRequest struct {
	Channels  []string        `json:"channels"`
	Algorithm string          `json:"algorithm"`
	Params    modeling.Params `json:"params"`
}

func (a *App) handleModelingRun(w http.ResponseWriter, r *http.Request) {
	var req modelingRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Channels) == 0 {
		writeError(w, http.StatusBadRequest, "channels is required")
		return
	}
	if req.Algorithm != topics.AlgorithmLDA && req.Algorithm != topics.AlgorithmNMF {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported algorithm %q, use lda or nmf", req.Algorithm))
		return
	}

	jobID, err := a.modeling.Submit(req.Channels, req.Algorithm, req.Params)
	if err != nil {
		if errors.Is(err, modeling.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "modeling queue is full, try again later")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": jobID})
}

func (a *App) handleModelingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.modeling.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *App) handleModelingResults(w http.ResponseWriter, r *http.Request) {
	result, err := a.modeling.ResultFor(chi.URLParam(r, "id"))
	if err != nil {
		writeModelingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *App) handleModelingJobs(w http.ResponseWriter, r *http.Request) {
	summaries, total := a.modeling.List(modeling.ListFilter{})
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries, "total": total})
}

// handleListRuns is the paginated/filtered job listing.
func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := modeling.ListFilter{
		Status:    q.Get("status"),
		Algorithm: q.Get("algorithm"),
		Page:      queryInt(q.Get("page"), 1),
		Limit:     queryInt(q.Get("limit"), 20),
	}
	summaries, total := a.modeling.List(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  summaries,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func (a *App) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.modeling.Delete(id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}

func (a *App) handleExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := a.modeling.ResultFor(id)
	if err != nil {
		writeModelingError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	disposition := fmt.Sprintf("attachment; filename=%q", export.Filename(id, format))

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", disposition)
		err = export.WriteJSON(w, result)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", disposition)
		err = export.WriteTopicsCSV(w, result)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", disposition)
		err = export.WriteWorkbook(w, result)
	default:
		writeError(w, http.StatusBadRequest, "format must be json, csv or xlsx")
		return
	}
	if err != nil {
		a.log.Error("export failed", "job_id", id, "format", format, "err", err)
	}
}

func writeModelingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, modeling.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, modeling.ErrNotCompleted):
		writeError(w, http.StatusBadRequest, "job is not completed yet")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
