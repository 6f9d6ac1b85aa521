package domain

import (
	"context"
	"strings"
	"time"
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the account view returned to clients.
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
}

// Public strips credentials from the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		IsAdmin:   u.IsAdmin,
	}
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore persists accounts. Emails are compared after NormalizeEmail.
type UserStore interface {
	// CreateUser inserts a user, failing with ErrEmailTaken on duplicates.
	CreateUser(ctx context.Context, u *User) error

	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail returns ErrUserNotFound when no account matches.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// SetAdmin grants or revokes the admin flag and optionally replaces the
	// password hash when newHash is non-empty.
	SetAdmin(ctx context.Context, id string, admin bool, newHash string) error
}

// Auth-related domain errors.
var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrEmailTaken         = &Error{Code: EINVALID, Message: "An account with this email already exists"}
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}
	ErrAuthRequired       = &Error{Code: EUNAUTHORIZED, Message: "No token, authorization denied"}
	ErrInvalidToken       = &Error{Code: EUNAUTHORIZED, Message: "Token is not valid"}
	ErrAdminRequired      = &Error{Code: EFORBIDDEN, Message: "Admin access required"}
)
