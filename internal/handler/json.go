// Package handler holds the HTTP plumbing shared by the API and webhook
// handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/goodboy/internal/domain"
)

// MaxJSONBody bounds decoded request bodies.
const MaxJSONBody = 1 << 20

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "http.decode"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is empty")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}
	return nil
}
