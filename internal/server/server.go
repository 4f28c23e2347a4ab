// Package server exposes the JSON API over chi.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"ytcomments/internal/extraction"
	"ytcomments/internal/modeling"
	"ytcomments/internal/storage"
	"ytcomments/internal/youtube"
)

// ChannelResolver answers channel preview requests.
type ChannelResolver interface {
	ListVideos(ctx context.Context, channel string) ([]youtube.Video, youtube.ChannelInfo, error)
}

// App wires the HTTP layer to the two job services and their stores.
type App struct {
	log        *slog.Logger
	extraction *extraction.Service
	modeling   *modeling.Service
	resolver   ChannelResolver
	files      *storage.FileStore
	db         *storage.ResultStore
	cache      *storage.SnapshotCache

	defaultWorkers int
	maxWorkers     int
}

func NewApp(log *slog.Logger, ext *extraction.Service, mod *modeling.Service, resolver ChannelResolver, files *storage.FileStore, db *storage.ResultStore, cache *storage.SnapshotCache, defaultWorkers, maxWorkers int) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		log:            log,
		extraction:     ext,
		modeling:       mod,
		resolver:       resolver,
		files:          files,
		db:             db,
		cache:          cache,
		defaultWorkers: defaultWorkers,
		maxWorkers:     maxWorkers,
	}
}

// Router builds the full route tree with middleware.
func (a *App) Router(requestsPerSecond, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.cors)
	r.Use(rateLimit(rate.Limit(requestsPerSecond), burst))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape-comments", a.handleScrapeComments)
		r.Get("/extraction-status", a.handleExtractionStatus)
		r.Post("/stop-extraction", a.handleStopExtraction)
		r.Post("/clear-queue", a.handleClearQueue)
		r.Post("/channel-info", a.handleChannelInfo)
		r.Get("/files-stats", a.handleFilesStats)
		r.Get("/file-detail/{folder}", a.handleFileDetail)

		r.Route("/modeling", func(r chi.Router) {
			r.Post("/run", a.handleModelingRun)
			r.Get("/status/{id}", a.handleModelingStatus)
			r.Get("/results/{id}", a.handleModelingResults)
			r.Get("/jobs", a.handleModelingJobs)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", a.handleListRuns)
			r.Delete("/{id}", a.handleDeleteRun)
			r.Get("/{id}/export", a.handleExportRun)
		})

		r.Get("/system-info", a.handleSystemInfo)
		r.Get("/health", a.handleHealth)
	})
	return r
}

func (a *App) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a shared token bucket across all clients.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func (a *App) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cpu_count":           runtime.NumCPU(),
		"default_workers":     a.defaultWorkers,
		"max_workers":         a.maxWorkers,
		"recommended_workers": a.defaultWorkers,
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "disabled"
	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "ok"
		}
	}
	cacheStatus := "disabled"
	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			cacheStatus = "down"
		} else {
			cacheStatus = "ok"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": dbStatus,
		"redis":    cacheStatus,
	})
}
