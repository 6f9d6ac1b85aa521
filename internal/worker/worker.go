package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/goodboy/internal/email"
	"github.com/dukerupert/goodboy/internal/jobs"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// JobTimeout bounds a single job
	JobTimeout time.Duration

	// BaseURL is used to build tracking links in emails
	BaseURL string
}

// OrderMailer is implemented by *email.Service.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, data email.OrderConfirmationEmail) error
}

// Worker processes background jobs
type Worker struct {
	config  Config
	mailer  OrderMailer
	metrics *telemetry.BusinessMetrics
	logger  zerolog.Logger
}

// NewWorker creates a new background job worker
func NewWorker(mailer OrderMailer, metrics *telemetry.BusinessMetrics, config Config, logger zerolog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}

	return &Worker{
		config:  config,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger.With().Str("worker_id", config.WorkerID).Logger(),
	}
}

// Handle runs one job. It satisfies jobs.Handler so the inline dispatcher
// and the NATS subscription share the same code path.
func (w *Worker) Handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	log := w.logger.With().Str("job_id", job.ID).Str("job_type", job.Type).Logger()

	var err error
	switch job.Type {
	case jobs.JobTypeOrderConfirmation:
		err = w.processOrderConfirmation(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		w.metrics.JobsFailed.WithLabelValues(job.Type).Inc()
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return err
	}

	w.metrics.JobsProcessed.WithLabelValues(job.Type).Inc()
	log.Info().Dur("took", time.Since(start)).Msg("job completed")
	return nil
}

func (w *Worker) processOrderConfirmation(ctx context.Context, job jobs.Job) error {
	var payload jobs.OrderConfirmationPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	trackingURL := ""
	if w.config.BaseURL != "" {
		trackingURL = fmt.Sprintf("%s/order-tracker.html?id=%s", w.config.BaseURL, payload.Order.ID)
	}

	data := email.NewOrderConfirmationEmail(&payload.Order, trackingURL)
	if err := w.mailer.SendOrderConfirmation(ctx, data); err != nil {
		w.metrics.EmailFailed.WithLabelValues(data.TemplateName()).Inc()
		return fmt.Errorf("order %s: %w", payload.Order.ID, err)
	}
	w.metrics.EmailSent.WithLabelValues(data.TemplateName()).Inc()
	return nil
}

// subscriber is the part of *nats.Conn the worker needs.
type subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Start joins the queue group and processes jobs until ctx is cancelled,
// then drains the subscription.
func (w *Worker) Start(ctx context.Context, nc subscriber, subject, queue string) error {
	if subject == "" {
		subject = jobs.DefaultSubject
	}
	if queue == "" {
		queue = jobs.DefaultQueue
	}

	sub, err := nc.QueueSubscribe(subject, queue, w.messageHandler(ctx))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	w.logger.Info().Str("subject", subject).Str("queue", queue).Msg("worker starting")

	<-ctx.Done()
	w.logger.Info().Msg("worker shutting down")
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}

func (w *Worker) messageHandler(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var job jobs.Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.logger.Error().Err(err).Str("subject", msg.Subject).Msg("discarding malformed job")
			return
		}

		jobCtx, cancel := context.WithTimeout(w.logger.WithContext(context.WithoutCancel(ctx)), w.config.JobTimeout)
		defer cancel()
		_ = w.Handle(jobCtx, job)
	}
}
