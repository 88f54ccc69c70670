package workflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/logging"
)

const (
	// ResumeTaskName is the name of the background task that advances due instances.
	ResumeTaskName = "workflow.resume"

	resumeBatchSize   = 100
	resumeConcurrency = 4
)

// ResumeDue advances every instance whose next step is due. It is the external
// orchestrator of the engine and is safe to run from multiple processes at once.
func (e *Engine) ResumeDue(ctx context.Context, logger logging.InternalLogger) error {
	due, err := e.store.ListDue(ctx, e.clock(), resumeBatchSize)
	if err != nil {
		return fmt.Errorf("listing due instances: %w", err)
	}
	if len(due) == 0 {
		logger.Debug("no due instances")
		return nil
	}
	logger.Info("resuming %d due instance(s)", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resumeConcurrency)

	var failed int
	results := make([]error, len(due))
	for i, inst := range due {
		g.Go(func() error {
			after, err := e.Advance(gctx, inst.ID)
			switch {
			case err == nil:
				logger.Info("instance %s: %s -> %s", inst.ID, inst.State, after.State)
			case errors.Is(err, core.ErrLeaseHeld):
				logger.Debug("instance %s is leased by another runner", inst.ID)
			default:
				logger.Warn("instance %s: %v", inst.ID, err)
				results[i] = err
			}
			// a failing instance must not stop the others
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instance(s) could not be advanced", failed, len(due))
	}
	return nil
}
