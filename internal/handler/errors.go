package handler

import (
	"errors"
	"net/http"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON error envelope returned by every API route.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	Product   string            `json:"product,omitempty"`
	Available *int              `json:"available,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID, domain.ESTOCK:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse logs err and writes it as a JSON error body. Internal
// errors are reported with an opaque message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	log := zerolog.Ctx(r.Context())
	event := log.Info()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("code", code).
		Int("status", status).
		Str("op", domain.ErrorOp(err)).
		Msg("request failed")

	body := ErrorBody{
		Error:  domain.ErrorMessage(err),
		Code:   code,
		Fields: domain.GetValidationFields(err),
	}

	var se *domain.StockError
	if errors.As(err, &se) {
		available := se.Available
		body.Product = se.Product
		body.Available = &available
	}

	WriteJSON(w, status, body)
}

// NotFoundResponse writes a 404 for unmatched routes.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse writes the missing-token 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.ErrAuthRequired)
}

// ForbiddenResponse writes the admin-required 403.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.ErrAdminRequired)
}

// InternalErrorResponse wraps err as internal and writes a 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}
