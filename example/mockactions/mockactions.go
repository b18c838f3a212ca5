// Package mockactions serves a fake GitHub Actions API whose latest workflow
// run cycles through a build forever: completed, then queued, then
// in_progress, then completed again.
//
// It backs the demo in example/ and the standalone example/cmd/mockserver,
// so the build status widget can be watched changing without pushing commits.
package mockactions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Phases is the default build cycle.
var Phases = Cycle{
	Idle:    40 * time.Second,
	Queued:  5 * time.Second,
	Running: 25 * time.Second,
}

// Cycle sets how long each phase of a simulated build lasts.
type Cycle struct {
	Idle    time.Duration
	Queued  time.Duration
	Running time.Duration
}

func (c Cycle) total() time.Duration {
	return c.Idle + c.Queued + c.Running
}

// Server is the fake API. The zero value is not usable; use [New].
type Server struct {
	cycle  Cycle
	start  time.Time
	now    func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	lastStatus string
}

// New returns a Server whose first build starts after cycle.Idle. A nil now
// uses [time.Now].
func New(cycle Cycle, now func() time.Time, logger *slog.Logger) *Server {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cycle: cycle, start: now(), now: now, logger: logger}
}

// run reports the latest run at the current time.
func (s *Server) run() (id int64, status string) {
	elapsed := s.now().Sub(s.start)
	n := elapsed / s.cycle.total()
	offset := elapsed % s.cycle.total()

	switch {
	case offset < s.cycle.Idle:
		// the run of the previous cycle has completed
		id, status = int64(n), "completed"
	case offset < s.cycle.Idle+s.cycle.Queued:
		id, status = int64(n)+1, "queued"
	default:
		id, status = int64(n)+1, "in_progress"
	}
	if id == 0 {
		id = 1 // the site was built once before the server started
	}

	s.mu.Lock()
	if status != s.lastStatus {
		s.logger.Info("run status change", "run", id, "from", s.lastStatus, "to", status)
		s.lastStatus = status
	}
	s.mu.Unlock()
	return id, status
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/repos/{owner}/{repo}/actions/runs", s.handleRuns)
	r.Get("/repos/{owner}/{repo}/actions/runs/{id}/jobs", s.handleJobs)
	return r
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	id, status := s.run()

	apiBase := "http://" + r.Host
	htmlBase := fmt.Sprintf("https://github.com/%s/%s/actions/runs/%d", owner, repo, id)

	conclusion := ""
	if status == "completed" {
		conclusion = "success"
	}
	writeJSON(w, s.logger, map[string]any{
		"total_count": id,
		"workflow_runs": []map[string]any{{
			"id":         id,
			"name":       "Build and deploy site",
			"status":     status,
			"conclusion": conclusion,
			"jobs_url":   fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d/jobs", apiBase, owner, repo, id),
			"html_url":   htmlBase,
		}},
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	jobID := id * 10
	writeJSON(w, s.logger, map[string]any{
		"total_count": 1,
		"jobs": []map[string]any{{
			"id":       jobID,
			"name":     "build",
			"html_url": fmt.Sprintf("https://github.com/%s/%s/actions/runs/%d/job/%d", owner, repo, id, jobID),
		}},
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
