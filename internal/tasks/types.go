package tasks

import (
	"context"
	"time"

	"github.com/darmiel/lastword/internal/logging"
)

// TaskFunc is the unit of work.
// The logger mirrors its output into the task's log buffer.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskDefinition struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Handler  TaskFunc
}

type TaskStatus struct {
	Name         string    `json:"name,omitempty"`
	Interval     string    `json:"interval,omitempty"`
	Running      bool      `json:"running,omitempty"`
	Queued       bool      `json:"queued,omitempty"`
	Runs         int       `json:"runs"`
	Failures     int       `json:"failures"`
	LastRun      time.Time `json:"last_run"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastResult   string    `json:"last_result,omitempty"`
	NextRun      time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}

// LastRunFailed reports whether the most recent finished run returned an error.
func (s TaskStatus) LastRunFailed() bool {
	return s.LastResult != "" && s.LastResult != resultSuccess
}
