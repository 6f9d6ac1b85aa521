package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrMalformedEvent is returned when a verified event cannot be decoded.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")

	// ErrEmptyCheckout is returned when a session is requested with no items.
	ErrEmptyCheckout = errors.New("billing: checkout has no items")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "resource_missing")
	HTTPStatus    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.HTTPStatus >= 500
}

// wrapStripeError converts SDK errors into StripeError.
func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		return &StripeError{
			Message:       se.Msg,
			Code:          string(se.Code),
			HTTPStatus:    se.HTTPStatusCode,
			RequestID:     se.RequestID,
			OriginalError: err,
		}
	}

	return &StripeError{Message: err.Error(), OriginalError: err}
}
