package api

import (
	"net/http"
	"time"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/buildinfo"
	"github.com/darmiel/lastword/internal/tasks"
	"github.com/darmiel/lastword/internal/workflow"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type HealthResponse struct {
	Status     string `json:"status"`
	Dispatcher string `json:"dispatcher,omitempty"`
	// Resume is the state of the task that wakes due countdowns. Empty until it is registered.
	Resume  *tasks.TaskStatus `json:"resume,omitempty"`
	Uptime  string            `json:"uptime"`
	Reasons []string          `json:"reasons,omitempty"`
}

type AboutResponse struct {
	buildinfo.Info
	StartedAt time.Time `json:"started_at"`
}

// handleHealth reports whether countdowns can make progress. A missing dispatcher or a failed
// last resume run marks the server degraded and answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: healthOK,
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.dispatcher != nil {
		resp.Dispatcher = s.dispatcher.Name()
	} else {
		resp.Reasons = append(resp.Reasons, "no dispatcher configured")
	}
	if s.taskManager != nil {
		for _, st := range s.taskManager.ListStatus() {
			if st.Name != workflow.ResumeTaskName {
				continue
			}
			resp.Resume = &st
			if st.LastRunFailed() {
				resp.Reasons = append(resp.Reasons, "last resume run "+st.LastResult)
			}
		}
	}

	status := http.StatusOK
	if len(resp.Reasons) > 0 {
		resp.Status = healthDegraded
		status = http.StatusServiceUnavailable
	}
	presenter.JSON(w, r, resp, status)
}

// handleAbout responds with the build of the running server and when it started.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, AboutResponse{
		Info:      buildinfo.GetBuildInfo(),
		StartedAt: s.startedAt.UTC(),
	}, http.StatusOK)
}
