package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/models"
	"shorts-pipeline/internal/storage"
	"shorts-pipeline/internal/telemetry"
)

// JobStore is the enqueue-side slice of the job table.
type JobStore interface {
	CreateJob(ctx context.Context, sourceRef, sourceName string) (models.Job, bool, error)
	KnownSourceRefs(ctx context.Context) (map[string]struct{}, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
}

// FileLister scans the watched folder for candidate source videos.
type FileLister interface {
	ListCandidateFiles(ctx context.Context, folderRef string) ([]storage.RemoteFile, error)
}

// Limiter guards the enqueue endpoints against notification bursts.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Server wires the HTTP surface: storage push notifications, manual sync,
// health, and job lookups. It only produces job records; processing lives
// entirely in the worker.
type Server struct {
	cfg      config.Config
	store    JobStore
	files    FileLister
	limiter  Limiter
	watchRef string
}

func New(cfg config.Config, store JobStore, files FileLister, limiter Limiter) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		files:    files,
		limiter:  limiter,
		watchRef: strings.TrimSuffix(cfg.WatchedPrefix, "/") + "/",
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/webhook/storage", s.handleWebhook)
	r.Post("/sync", s.handleSync)
	r.Get("/jobs/{id}", s.handleGetJob)
	return r
}

// storageEvent is the (optional) notification body sent by the storage
// provider when the watched folder changes.
type storageEvent struct {
	EventName string `json:"event_name"`
}

// handleWebhook receives push notifications. The notification does not say
// which file changed, only that something did, so it triggers the same
// folder scan as /sync. Always answers 200 so the provider does not retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}

	var ev storageEvent
	_ = json.NewDecoder(r.Body).Decode(&ev)
	if ev.EventName != "" && !strings.Contains(ev.EventName, "ObjectCreated") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if _, _, err := s.enqueueNewVideos(r.Context()); err != nil {
		log.Printf("webhook: scan watched folder: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSync scans the watched folder on demand and reports what it added.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}

	added, total, err := s.enqueueNewVideos(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "added": added, "total": total})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// enqueueNewVideos lists the watched folder and creates a pending job for
// every video file that has no job yet. Uniqueness rides on both the
// in-memory known-refs check and the source_file_ref constraint, so a
// concurrent scan cannot double-enqueue.
func (s *Server) enqueueNewVideos(ctx context.Context) (added, total int, err error) {
	files, err := s.files.ListCandidateFiles(ctx, s.watchRef)
	if err != nil {
		return 0, 0, err
	}
	known, err := s.store.KnownSourceRefs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, f := range files {
		if !isVideoFile(f.Name) {
			continue
		}
		total++
		if _, seen := known[f.Key]; seen {
			continue
		}
		_, created, err := s.store.CreateJob(ctx, f.Key, f.Name)
		if err != nil {
			log.Printf("enqueue %s: %v", f.Key, err)
			continue
		}
		if created {
			added++
			telemetry.JobsEnqueued.Inc()
		}
	}
	return added, total, nil
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	allowed, err := s.limiter.Allow(r.Context(), "rl:enqueue")
	if err != nil {
		// A broken limiter should not take the enqueue path down.
		log.Printf("rate limiter: %v", err)
		return true
	}
	if !allowed {
		telemetry.RateLimitRejects.Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
		return false
	}
	return true
}

func isVideoFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp4", ".mov", ".webm", ".mkv", ".m4v":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
