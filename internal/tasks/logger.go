package tasks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/darmiel/lastword/internal/logging"
)

var _ logging.InternalLogger = (*runLog)(nil)

// runLog captures a run's output so it can be served by the logs endpoint.
type runLog struct {
	task *RunnableTask
}

func (r runLog) add(level, format string, args []any) {
	r.task.AppendLog(level, fmt.Sprintf(format, args...))
}

func (r runLog) Debug(format string, args ...any) { r.add("debug", format, args) }
func (r runLog) Info(format string, args ...any)  { r.add("info", format, args) }
func (r runLog) Warn(format string, args ...any)  { r.add("warn", format, args) }
func (r runLog) Error(format string, args ...any) { r.add("error", format, args) }

// NewCompositeLogger writes to zlog and to the task's run log.
func NewCompositeLogger(task *RunnableTask, zlog zerolog.Logger) logging.MultiLogger {
	return logging.NewMultiLogger(logging.NewZLogger(zlog), runLog{task: task})
}
