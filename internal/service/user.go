package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Phone     string `json:"phone"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// UserService handles accounts and sessions.
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)

	// Login fails with ErrInvalidCredentials for an unknown email and for
	// a wrong password alike.
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)

	// Authenticate resolves a session token into a principal.
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)

	// GetPublic returns a user's public fields. Callers may read their own
	// account; admins may read any.
	GetPublic(ctx context.Context, caller *domain.Principal, id string) (*domain.PublicUser, error)

	// EnsureAdmin creates the admin account, or promotes an existing one
	// and resets its password. Safe to call on every start.
	EnsureAdmin(ctx context.Context, req RegisterRequest) (*domain.User, error)
}

type userService struct {
	store   domain.UserStore
	hasher  auth.Hasher
	tokens  *auth.TokenIssuer
	metrics *telemetry.BusinessMetrics
	now     func() time.Time

	// decoy is compared against on unknown emails so a miss costs the
	// same bcrypt round as a wrong password.
	decoy func() string
}

func NewUserService(store domain.UserStore, hasher auth.Hasher, tokens *auth.TokenIssuer, metrics *telemetry.BusinessMetrics) UserService {
	return &userService{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		metrics: metrics,
		now:     time.Now,
		decoy:   sync.OnceValue(func() string {
			hash, _ := hasher.Hash(uuid.NewString())
			return hash
		}),
	}
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	const op = "user.register"

	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	user, err := s.newUser(op, req, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.Signups.Inc()
	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user registered")
	return s.session(op, user)
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	const op = "user.login"

	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = s.hasher.Verify(req.Password, s.decoy())
		s.metrics.LoginFailed.Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		s.metrics.LoginFailed.Inc()
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(err, op, "failed to verify password")
	}

	s.metrics.Logins.Inc()
	return s.session(op, user)
}

func (s *userService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrAuthRequired
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("rejected session token")
		return nil, domain.ErrInvalidToken
	}
	return &domain.Principal{
		UserID:  claims.Subject,
		Email:   claims.Email,
		IsAdmin: claims.Admin,
	}, nil
}

func (s *userService) GetPublic(ctx context.Context, caller *domain.Principal, id string) (*domain.PublicUser, error) {
	if caller == nil {
		return nil, domain.ErrAuthRequired
	}
	if caller.UserID != id && !caller.IsAdmin {
		return nil, domain.Forbidden("user.get", "Not authorized to view this user")
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	const op = "user.ensure_admin"

	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		hash, err := s.hashPassword(op, req.Password)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetAdmin(ctx, existing.ID, true, hash); err != nil {
			return nil, err
		}
		existing.IsAdmin = true
		existing.PasswordHash = hash
		return existing, nil
	case errors.Is(err, domain.ErrUserNotFound):
		user, err := s.newUser(op, req, true)
		if err != nil {
			return nil, err
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	default:
		return nil, err
	}
}

func (s *userService) newUser(op string, req RegisterRequest, admin bool) (*domain.User, error) {
	hash, err := s.hashPassword(op, req.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        domain.NormalizeEmail(req.Email),
		Phone:        req.Phone,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// hashPassword reports length problems as validation errors. The length
// tag counts characters while bcrypt counts bytes, so multi-byte input can
// pass validation and still be too long here.
func (s *userService) hashPassword(op, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort):
		return "", domain.NewValidationError(op, "password", MsgPasswordTooShort)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", domain.NewValidationError(op, "password", MsgPasswordTooLong)
	case err != nil:
		return "", domain.Internal(err, op, "failed to hash password")
	}
	return hash, nil
}

func (s *userService) session(op string, user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to issue token")
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}
