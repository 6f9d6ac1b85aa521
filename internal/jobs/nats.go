package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubject and DefaultQueue are used when config leaves them empty.
const (
	DefaultSubject = "goodboy.jobs"
	DefaultQueue   = "goodboy-workers"
)

// Connect dials NATS with reconnect logging.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("goodboy"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

// publisher is the part of *nats.Conn the publisher needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes jobs as JSON to a subject.
type NATSPublisher struct {
	conn    publisher
	subject string
}

var _ Enqueuer = (*NATSPublisher)(nil)

func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	return newNATSPublisher(nc, subject)
}

func newNATSPublisher(conn publisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.Type, err)
	}
	return nil
}
