package email

import "errors"

var (
	// ErrNoRecipient is returned when a message has no usable To address.
	ErrNoRecipient = errors.New("email: no recipient")

	// ErrNotConfigured is returned by the SMTP sender when no host is set.
	ErrNotConfigured = errors.New("email: smtp host not configured")
)
