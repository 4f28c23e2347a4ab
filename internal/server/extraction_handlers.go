package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"ytcomments/internal/extraction"
	"ytcomments/internal/storage"
)

type scrapeRequest struct {
	Channel      string `json:"channel"`
	Limit        int    `json:"limit"`
	SkipExisting *bool  `json:"skip_existing"`
	Workers      int    `json:"workers"`
}

// handleScrapeComments queues one extraction job per channel in the
// comma-separated input.
func (a *App) handleScrapeComments(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Channel) == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}

	skipExisting := true
	if req.SkipExisting != nil {
		skipExisting = *req.SkipExisting
	}

	var channels []string
	for _, c := range strings.Split(req.Channel, ",") {
		if c = strings.TrimSpace(c); c != "" {
			channels = append(channels, c)
		}
	}

	jobIDs := make([]string, 0, len(channels))
	for _, channel := range channels {
		jobID, err := a.extraction.Submit(channel, req.Limit, skipExisting, req.Workers)
		if err != nil {
			if errors.Is(err, extraction.ErrQueueFull) {
				writeError(w, http.StatusServiceUnavailable, "extraction queue is full, try again later")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		jobIDs = append(jobIDs, jobID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":    true,
		"job_ids":    jobIDs,
		"channels":   channels,
		"queue_size": a.extraction.QueueSize(),
	})
}

func (a *App) handleExtractionStatus(w http.ResponseWriter, r *http.Request) {
	state, queue := a.extraction.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      state,
		"queue":      queue,
		"queue_size": a.extraction.QueueSize(),
	})
}

func (a *App) handleStopExtraction(w http.ResponseWriter, r *http.Request) {
	if !a.extraction.RequestStop() {
		writeError(w, http.StatusBadRequest, "no extraction in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Stop requested, finishing current videos",
	})
}

func (a *App) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	a.extraction.ClearQueue()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type channelInfoRequest struct {
	Channel string `json:"channel"`
}

// handleChannelInfo resolves a channel without queueing anything, as a
// preview before extraction.
func (a *App) handleChannelInfo(w http.ResponseWriter, r *http.Request) {
	var req channelInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Channel) == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}

	videos, info, err := a.resolver.ListVideos(r.Context(), strings.TrimSpace(req.Channel))
	if err != nil {
		a.log.Error("channel resolution failed", "channel", req.Channel, "err", err)
		writeError(w, http.StatusBadGateway, "could not resolve channel")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"channel":     info,
		"video_count": len(videos),
		"videos":      videos,
	})
}

func (a *App) handleFilesStats(w http.ResponseWriter, r *http.Request) {
	channels, err := a.files.ListChannels()
	if err != nil {
		a.log.Error("listing stored channels failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list stored channels")
		return
	}
	if channels == nil {
		channels = []storage.ChannelSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "channels": channels})
}

func (a *App) handleFileDetail(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	detail, err := a.files.ChannelDetail(folder)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		a.log.Error("reading channel detail failed", "folder", folder, "err", err)
		writeError(w, http.StatusInternalServerError, "could not read channel")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
