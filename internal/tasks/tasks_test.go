package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/darmiel/lastword/internal/logging"
)

func TestRunSync(t *testing.T) {
	m := NewManager()
	m.Register(TaskDefinition{
		Name: "ok",
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			logger.Info("hello %s", "world")
			return nil
		},
	})
	m.Register(TaskDefinition{
		Name: "broken",
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			return errors.New("boom")
		},
	})

	if err := m.RunSync(context.Background(), "ok"); err != nil {
		t.Fatalf("RunSync(ok) = %v", err)
	}
	if err := m.RunSync(context.Background(), "broken"); err == nil {
		t.Fatal("RunSync(broken) expected error")
	}

	var notFound TaskNotFoundError
	if err := m.RunSync(context.Background(), "missing"); !errors.As(err, &notFound) {
		t.Fatalf("RunSync(missing) = %v, want TaskNotFoundError", err)
	}

	logs, err := m.GetLogs("ok")
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	var found bool
	for _, entry := range logs {
		if entry.Message == "hello world" && entry.Level == "info" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected task output in logs, got %+v", logs)
	}

	statuses := m.ListStatus()
	if len(statuses) != 2 || statuses[0].Name != "broken" || statuses[1].Name != "ok" {
		t.Fatalf("unexpected status list: %+v", statuses)
	}
	if statuses[0].LastResult != "failed: boom" || statuses[1].LastResult != "success" {
		t.Errorf("unexpected results: %+v", statuses)
	}
	if statuses[0].Runs != 1 || statuses[0].Failures != 1 || statuses[1].Runs != 1 || statuses[1].Failures != 0 {
		t.Errorf("unexpected counters: %+v", statuses)
	}
}

func TestAppendLogBounded(t *testing.T) {
	task := newRunnableTask(TaskDefinition{Name: "noisy"}, time.Now())
	for i := 0; i < MaxLogsPerTask+5; i++ {
		task.AppendLog("info", fmt.Sprintf("line %d", i))
	}
	logs := task.GetLogs()
	if len(logs) != MaxLogsPerTask {
		t.Fatalf("expected %d lines, got %d", MaxLogsPerTask, len(logs))
	}
	if logs[0].Message != "line 5" {
		t.Errorf("expected oldest lines to be dropped, first is %q", logs[0].Message)
	}
	if task.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %s", task.Timeout)
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	m := NewManager()
	m.Register(TaskDefinition{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Handler: func(ctx context.Context, _ logging.InternalLogger) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err := m.RunSync(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunSync = %v, want deadline exceeded", err)
	}
}

func TestRunSkipsOverlap(t *testing.T) {
	m := NewManager()
	release := make(chan struct{})
	entered := make(chan struct{})
	m.Register(TaskDefinition{
		Name: "blocking",
		Handler: func(ctx context.Context, _ logging.InternalLogger) error {
			close(entered)
			<-release
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- m.RunSync(context.Background(), "blocking") }()
	<-entered

	if err := m.RunSync(context.Background(), "blocking"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second run = %v, want ErrAlreadyRunning", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first run = %v", err)
	}
}

func TestTriggerQueuesFollowUp(t *testing.T) {
	m := NewManager()
	var (
		runs    atomic.Int32
		once    sync.Once
		entered = make(chan struct{})
		release = make(chan struct{})
	)
	m.Register(TaskDefinition{
		Name: "resume",
		Handler: func(ctx context.Context, _ logging.InternalLogger) error {
			runs.Add(1)
			once.Do(func() { close(entered) })
			<-release
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- m.RunSync(context.Background(), "resume") }()
	<-entered

	if err := m.Trigger("resume"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !m.ListStatus()[0].Queued && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !m.ListStatus()[0].Queued {
		t.Fatal("expected a queued follow-up run")
	}
	task, err := m.get("resume")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := task.RunOrQueue(context.Background()); err != nil {
			t.Fatalf("RunOrQueue on a busy task: %v", err)
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := runs.Load(); got != 2 {
		t.Errorf("expected the busy triggers to coalesce into one follow-up, got %d runs", got)
	}
	status := m.ListStatus()[0]
	if status.Running || status.Queued || status.Runs != 2 {
		t.Errorf("unexpected status after follow-up: %+v", status)
	}
}

func TestSchedulerStopsWithContext(t *testing.T) {
	m := NewManager()
	var runs atomic.Int32
	m.Register(TaskDefinition{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Handler: func(ctx context.Context, _ logging.InternalLogger) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	m.Wait()

	if runs.Load() < 2 {
		t.Fatalf("expected at least 2 runs, got %d", runs.Load())
	}
	if status := m.ListStatus()[0]; status.NextRun.IsZero() {
		t.Error("interval task should report a next run")
	}
}
