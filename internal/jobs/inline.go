package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InlineDispatcher runs each job in its own goroutine with a timeout. It is
// the fallback when NATS is not configured.
type InlineDispatcher struct {
	handler Handler
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

var _ Enqueuer = (*InlineDispatcher)(nil)

func NewInlineDispatcher(handler Handler, timeout time.Duration, logger zerolog.Logger) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InlineDispatcher{handler: handler, timeout: timeout, logger: logger}
}

// Enqueue never blocks on the handler. The job runs detached from the
// caller's cancellation.
func (d *InlineDispatcher) Enqueue(ctx context.Context, job Job) error {
	jobCtx := d.logger.WithContext(context.WithoutCancel(ctx))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(jobCtx, d.timeout)
		defer cancel()

		if err := d.handler(runCtx, job); err != nil {
			d.logger.Error().Err(err).Str("job_id", job.ID).Str("job_type", job.Type).Msg("inline job failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight jobs finish.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
