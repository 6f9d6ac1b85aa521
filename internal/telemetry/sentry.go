package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

var sentryEnabled bool

// InitSentry initializes the global Sentry hub. The returned cleanup flushes
// buffered events and should run on shutdown.
func InitSentry(cfg SentryConfig, logger zerolog.Logger) (func(), error) {
	sentryEnabled = false

	if !cfg.Enabled {
		logger.Info().Msg("Sentry disabled")
		return func() {}, nil
	}
	if cfg.DSN == "" {
		logger.Warn().Msg("Sentry DSN not configured, disabling error tracking")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled = true

	logger.Info().
		Str("environment", cfg.Environment).
		Str("release", cfg.Release).
		Float64("sample_rate", sampleRate).
		Msg("Sentry initialized")

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled reports whether InitSentry configured a client.
func IsEnabled() bool {
	return sentryEnabled
}

// CaptureError reports err through the hub on ctx, falling back to the
// global hub. Safe to call when Sentry is disabled.
func CaptureError(ctx context.Context, err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// SentryMiddleware clones a hub per request and reports panics, then
// re-panics so the recovery middleware writes the response.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.Scope().SetRequest(r)
		ctx := sentry.SetHubOnContext(r.Context(), hub)

		defer func() {
			if err := recover(); err != nil {
				if err != http.ErrAbortHandler {
					hub.RecoverWithContext(ctx, err)
					sentry.Flush(2 * time.Second)
				}
				panic(err)
			}
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
