// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/rs/zerolog"
)

const minAdminPasswordLength = 12

// AdminConfig contains configuration for the initial admin user.
type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Validate checks that the admin configuration is valid.
func (c *AdminConfig) Validate() error {
	if c.Email == "" {
		return errors.New("admin email is required")
	}
	if c.Password == "" {
		return errors.New("admin password is required")
	}
	if len(c.Password) < minAdminPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", minAdminPasswordLength)
	}
	return nil
}

// AdminEnsurer is implemented by service.UserService.
type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, req service.RegisterRequest) (*domain.User, error)
}

// EnsureMasterAdmin creates the admin account or promotes an existing user
// with the same email. Safe to call on every startup.
//
// A nil config or one with an empty email or password is skipped with a
// warning so development servers can run without an admin.
func EnsureMasterAdmin(ctx context.Context, users AdminEnsurer, cfg *AdminConfig, logger zerolog.Logger) error {
	if cfg == nil || cfg.Email == "" || cfg.Password == "" {
		logger.Warn().
			Str("hint", "Set ADMIN_EMAIL and ADMIN_PASSWORD to create an admin user on startup").
			Msg("bootstrap: skipping admin creation")
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid admin configuration: %w", err)
	}

	firstName := cfg.FirstName
	if firstName == "" {
		firstName = "Admin"
	}
	lastName := cfg.LastName
	if lastName == "" {
		lastName = "User"
	}

	user, err := users.EnsureAdmin(ctx, service.RegisterRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     cfg.Email,
		Password:  cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}

	logger.Info().
		Str("email", user.Email).
		Str("user_id", user.ID).
		Msg("bootstrap: admin user ready")
	return nil
}
