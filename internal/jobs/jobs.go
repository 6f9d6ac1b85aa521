// Package jobs defines background job envelopes and the queues that carry
// them: NATS when configured, an in-process dispatcher otherwise.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the envelope published to the queue.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

// Enqueuer hands a job to whatever runs it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// NewJob marshals payload into a fresh envelope.
func NewJob(jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}
	return Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dst.
func (j Job) Decode(dst any) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", j.Type, err)
	}
	return nil
}
