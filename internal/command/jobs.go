package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Jobs runs long operations (sweeps, campaigns, harvests) off the event loop
// so joins keep being handled. Wait blocks until every job has returned.
type Jobs struct {
	ctx    context.Context
	group  errgroup.Group
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]int
}

// NewJobs creates a job runner bound to ctx; jobs see ctx cancellation.
func NewJobs(ctx context.Context, logger *zap.Logger) *Jobs {
	return &Jobs{
		ctx:    ctx,
		logger: logger.Named("jobs"),
		active: make(map[string]int),
	}
}

// Go starts fn in the background. Errors and panics are logged and kept
// for Wait; they never cancel the other jobs. Cancellation is not a failure.
func (j *Jobs) Go(name string, fn func(ctx context.Context) error) {
	j.mu.Lock()
	j.active[name]++
	j.mu.Unlock()

	j.group.Go(func() (err error) {
		defer func() {
			j.mu.Lock()
			j.active[name]--
			if j.active[name] == 0 {
				delete(j.active, name)
			}
			j.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				j.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", rec), zap.Stack("stack"))
				err = fmt.Errorf("job %s panicked: %v", name, rec)
			}
		}()

		if err := fn(j.ctx); err != nil && !errors.Is(err, context.Canceled) {
			j.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
			return fmt.Errorf("job %s: %w", name, err)
		}
		return nil
	})
}

// Active returns how many jobs named name are running.
func (j *Jobs) Active(name string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active[name]
}

// Wait blocks until all started jobs finish and returns the first job
// failure, if any.
func (j *Jobs) Wait() error {
	return j.group.Wait()
}
