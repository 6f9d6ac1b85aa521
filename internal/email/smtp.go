package email

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional, some relays allow unauthenticated submission
	Password string
	From     string
	FromName string
}

// SMTPSender implements Sender with go-mail.
type SMTPSender struct {
	config SMTPConfig
	logger zerolog.Logger
}

func NewSMTPSender(config SMTPConfig, logger zerolog.Logger) *SMTPSender {
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPSender{config: config, logger: logger}
}

// Send dials the relay, sends one message and closes the connection.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	if s.config.Host == "" {
		return "", ErrNotConfigured
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error().Err(err).Strs("to", email.To).Msg("smtp: failed to send email")
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	messageID := "smtp-" + uuid.NewString()
	s.logger.Info().Strs("to", email.To).Str("message_id", messageID).Msg("smtp: email sent")
	return messageID, nil
}

func (s *SMTPSender) buildMessage(email *Email) (*mail.Msg, error) {
	if len(email.To) == 0 {
		return nil, ErrNoRecipient
	}

	msg := mail.NewMsg()

	if email.From != "" {
		if err := msg.From(email.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := msg.FromFormat(s.config.FromName, s.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(email.Subject)

	switch {
	case email.HTMLBody != "" && email.TextBody != "":
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	case email.HTMLBody != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}
	return msg, nil
}

// clientOptions picks the TLS mode from the port: 465 implicit TLS, 587
// mandatory STARTTLS, anything else opportunistic (Mailpit on 1025).
func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}

// LogSender writes messages to the log instead of delivering them. Used in
// dev when SMTP_HOST is empty.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", ErrNoRecipient
	}
	id := "log-" + uuid.NewString()
	l.logger.Info().
		Str("message_id", id).
		Strs("to", email.To).
		Str("subject", email.Subject).
		Str("body", email.TextBody).
		Msg("email not sent (log sender)")
	return id, nil
}
