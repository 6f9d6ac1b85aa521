package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/rs/zerolog"
)

// AuthTokenHeader is the legacy header the storefront sends tokens in.
const AuthTokenHeader = "x-auth-token"

// Authenticator resolves session tokens into principals.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

var _ Authenticator = (service.UserService)(nil)

// RequireAuth rejects requests without a valid token and stores the caller
// in the context.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Authenticate(r.Context(), tokenFromRequest(r))
			if err != nil {
				handler.ErrorResponse(w, r, err)
				return
			}

			ctx := domain.NewContextWithPrincipal(r.Context(), principal)
			logger := zerolog.Ctx(ctx).With().Str("user_id", principal.UserID).Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
		})
	}
}

// RequireAdmin ensures the caller is an admin, returning 403 if not.
// Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := domain.PrincipalFromContext(r.Context())
		if principal == nil {
			handler.UnauthorizedResponse(w, r)
			return
		}
		if !principal.IsAdmin {
			handler.ForbiddenResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(AuthTokenHeader))
}
