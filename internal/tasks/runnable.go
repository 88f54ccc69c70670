package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const resultSuccess = "success"

// RunnableTask is a registered task together with the state of its most recent run.
type RunnableTask struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Handler  TaskFunc

	registeredAt time.Time

	mu    sync.RWMutex
	state runState
	logs  []LogEntry
}

type runState struct {
	running      bool
	pending      bool
	runs         int
	failures     int
	lastRun      time.Time
	lastDuration time.Duration
	lastResult   string
}

func newRunnableTask(def TaskDefinition, now time.Time) *RunnableTask {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RunnableTask{
		Name:         def.Name,
		Interval:     def.Interval,
		Timeout:      timeout,
		Handler:      def.Handler,
		registeredAt: now,
	}
}

// begin marks the task running and clears the previous run's logs. If the task is busy and
// queue is set, one follow-up run is requested instead.
func (t *RunnableTask) begin(queue bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.running {
		if queue {
			t.state.pending = true
		}
		return false
	}
	t.state.running = true
	t.logs = t.logs[:0]
	return true
}

// finish records the result. It reports whether a queued follow-up run should start, in which
// case the task stays marked as running.
func (t *RunnableTask) finish(started time.Time, err error, followUp bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.runs++
	t.state.lastRun = time.Now()
	t.state.lastDuration = t.state.lastRun.Sub(started)
	if err != nil {
		t.state.failures++
		t.state.lastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.state.lastResult = resultSuccess
	}
	if t.state.pending && followUp {
		t.state.pending = false
		t.logs = t.logs[:0]
		return true
	}
	t.state.pending = false
	t.state.running = false
	return false
}

// Run executes the handler once. Overlapping runs are skipped and report ErrAlreadyRunning.
func (t *RunnableTask) Run(parent context.Context) error {
	return t.run(parent, false)
}

// RunOrQueue is Run, except that a busy task gets one follow-up run after the current one
// instead of dropping the request. Requests arriving during the same run are coalesced.
func (t *RunnableTask) RunOrQueue(parent context.Context) error {
	return t.run(parent, true)
}

func (t *RunnableTask) run(parent context.Context, queue bool) error {
	l := log.With().Str("task", t.Name).Logger()
	if !t.begin(queue) {
		if queue {
			l.Debug().Msg("task is running, queued a follow-up run")
			return nil
		}
		l.Warn().Msg("task is already running, skipping execution")
		return ErrAlreadyRunning
	}
	for {
		started := time.Now()
		err := t.execute(parent, l)
		if !t.finish(started, err, parent.Err() == nil) {
			return err
		}
		l.Debug().Msg("starting queued follow-up run")
	}
}

func (t *RunnableTask) execute(parent context.Context, l zerolog.Logger) error {
	logger := NewCompositeLogger(t, l)
	logger.Debug("starting run (timeout %s)", t.Timeout)

	ctx, cancel := context.WithTimeout(l.WithContext(parent), t.Timeout)
	defer cancel()

	started := time.Now()
	err := t.Handler(ctx, logger)
	if err == nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s", t.Timeout)
	}

	if err != nil {
		logger.Error("run failed after %s: %v", time.Since(started), err)
	} else {
		logger.Debug("run completed in %s", time.Since(started))
	}
	return err
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var next time.Time
	if t.Interval > 0 {
		base := t.registeredAt
		if !t.state.lastRun.IsZero() {
			base = t.state.lastRun
		}
		next = base.Add(t.Interval)
	}

	return TaskStatus{
		Name:         t.Name,
		Interval:     t.Interval.String(),
		Running:      t.state.running,
		Queued:       t.state.pending,
		Runs:         t.state.runs,
		Failures:     t.state.failures,
		LastRun:      t.state.lastRun,
		LastDuration: t.state.lastDuration.String(),
		LastResult:   t.state.lastResult,
		NextRun:      next,
	}
}

// GetLogs returns a copy of the log lines of the current or most recent run.
func (t *RunnableTask) GetLogs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]LogEntry(nil), t.logs...)
}

// AppendLog records a line for the logs endpoint, dropping the oldest beyond MaxLogsPerTask.
func (t *RunnableTask) AppendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.logs) >= MaxLogsPerTask {
		t.logs = append(t.logs[:0], t.logs[1:]...)
	}
	t.logs = append(t.logs, LogEntry{Time: time.Now(), Level: level, Message: msg})
}
