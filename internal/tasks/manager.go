// Package tasks runs named background jobs on an interval. The workflow resume job is the
// external timer that wakes sleeping countdowns.
package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	MaxLogsPerTask = 1000

	// DefaultTimeout bounds a single run unless the definition says otherwise.
	DefaultTimeout = 5 * time.Minute
)

type Manager struct {
	tasks sync.Map

	mu      sync.Mutex
	ctx     context.Context
	started bool
	wg      sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{ctx: context.Background()}
}

// Register adds a task. Interval tasks begin ticking once Start was called.
func (m *Manager) Register(def TaskDefinition) {
	task := newRunnableTask(def, time.Now())
	m.tasks.Store(def.Name, task)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		m.schedule(task)
	}
}

// Start launches the schedulers of all interval tasks. They stop when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.ctx = ctx
	m.started = true
	m.tasks.Range(func(_, value any) bool {
		m.schedule(value.(*RunnableTask))
		return true
	})
}

// Wait blocks until every scheduler returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// caller holds m.mu
func (m *Manager) schedule(task *RunnableTask) {
	if task.Interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.scheduler(m.ctx, task)
	}()
}

// Trigger runs the task once in the background. If it is already running, one follow-up run
// is queued behind the current one.
func (m *Manager) Trigger(name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	go func() {
		// a busy task runs once more afterwards so the request is not lost
		_ = task.RunOrQueue(m.baseContext())
	}()
	return nil
}

// RunSync runs the task once and returns its error.
func (m *Manager) RunSync(ctx context.Context, name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	return task.Run(ctx)
}

func (m *Manager) ListStatus() []TaskStatus {
	var list []TaskStatus
	m.tasks.Range(func(_, value any) bool {
		list = append(list, value.(*RunnableTask).Status())
		return true
	})
	slices.SortFunc(list, func(a, b TaskStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	task, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return task.GetLogs(), nil
}

func (m *Manager) get(name string) (*RunnableTask, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t.(*RunnableTask), nil
}

func (m *Manager) baseContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

func (m *Manager) scheduler(ctx context.Context, task *RunnableTask) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("task", task.Name).Msg("scheduler stopped")
			return
		case <-ticker.C:
			_ = task.Run(ctx)
		}
	}
}
