package service

import (
	"context"
	"strings"
	"testing"

	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		FirstName: "Sam",
		LastName:  "Buyer",
		Email:     "Sam@Example.com",
		Password:  "hunter22",
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	res, err := env.users.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "sam@example.com", res.User.Email)
	assert.False(t, res.User.IsAdmin)

	principal, err := env.users.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, principal.UserID)
	assert.Equal(t, "sam@example.com", principal.Email)

	stored, err := env.store.GetUser(ctx, res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Signups))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterRequest)
		message string
	}{
		{"missing first name", func(r *RegisterRequest) { r.FirstName = "" }, MsgRequiredFields},
		{"missing password", func(r *RegisterRequest) { r.Password = "" }, MsgRequiredFields},
		{"bad email", func(r *RegisterRequest) { r.Email = "sam.example.com" }, MsgInvalidEmail},
		{"short password", func(r *RegisterRequest) { r.Password = "12345" }, MsgPasswordTooShort},
		{"long password", func(r *RegisterRequest) { r.Password = strings.Repeat("a", 80) }, MsgPasswordTooLong},
		{"long multibyte password", func(r *RegisterRequest) { r.Password = strings.Repeat("é", 40) }, MsgPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			req := validRegistration()
			tt.mutate(&req)

			_, err := env.users.Register(context.Background(), req)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Equal(t, tt.message, domain.ErrorMessage(err))
		})
	}
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	again := validRegistration()
	again.Email = "SAM@example.COM"
	_, err = env.users.Register(ctx, again)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.Equal(t, "An account with this email already exists", domain.ErrorMessage(err))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	res, err := env.users.Login(ctx, LoginRequest{Email: "sam@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = env.users.Login(ctx, LoginRequest{Email: "sam@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.users.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Logins))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.LoginFailed))
}

func TestLogin_UnknownEmailStillHashes(t *testing.T) {
	env := newTestEnv(t, false)
	svc := env.users.(*userService)

	var decoys int
	decoy := svc.decoy
	svc.decoy = func() string {
		decoys++
		return decoy()
	}

	_, err := env.users.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 1, decoys)
	assert.ErrorIs(t, svc.hasher.Verify("hunter22", decoy()), auth.ErrPasswordMismatch)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.users.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = env.users.Authenticate(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestGetPublic(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	res, err := env.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	self := &domain.Principal{UserID: res.User.ID, Email: res.User.Email}
	u, err := env.users.GetPublic(ctx, self, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", u.FirstName)

	stranger := &domain.Principal{UserID: "someone-else"}
	_, err = env.users.GetPublic(ctx, stranger, res.User.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	admin := &domain.Principal{UserID: "admin", IsAdmin: true}
	_, err = env.users.GetPublic(ctx, admin, res.User.ID)
	assert.NoError(t, err)

	_, err = env.users.GetPublic(ctx, nil, res.User.ID)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestEnsureAdmin_IsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Password = "new-admin-password"

	first, err := env.users.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	second, err := env.users.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	res, err := env.users.Login(ctx, LoginRequest{Email: req.Email, Password: "new-admin-password"})
	require.NoError(t, err)
	assert.True(t, res.User.IsAdmin)

	fresh, err := env.users.EnsureAdmin(ctx, RegisterRequest{
		FirstName: "Store",
		LastName:  "Admin",
		Email:     "admin@goodboy.com",
		Password:  "admin-password",
	})
	require.NoError(t, err)
	assert.True(t, fresh.IsAdmin)
}
