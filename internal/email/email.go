package email

import "context"

// Email represents an email message to be sent.
type Email struct {
	To       []string          // Recipient email addresses
	From     string            // Sender, "Name <addr>" or a bare address
	Subject  string            // Email subject
	TextBody string            // Plain text body
	HTMLBody string            // HTML body (optional)
	Headers  map[string]string // Custom headers (optional)
}

// Sender delivers a composed message and returns a provider message id.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
