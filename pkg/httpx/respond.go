// Package httpx maps the core error taxonomy onto HTTP responses. Handlers
// translate errors through WriteDomainError and perform no business logic.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltgrid/identity/internal/models"
)

// ErrorResponse is the standard API error body
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error code
	Message string `json:"message"` // human-readable message
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteDomainError maps a core error onto a status code. Authentication and
// account-state failures all collapse to a generic 401 so responses never
// reveal whether an account exists or why it was refused.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, models.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "resource already exists")
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, models.ErrExpired):
		WriteError(w, http.StatusBadRequest, "expired", "the token or registration has expired")
	case errors.Is(err, models.ErrInvalidToken):
		WriteError(w, http.StatusBadRequest, "invalid_token", "the token is invalid or has already been used")
	case errors.Is(err, models.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	case errors.Is(err, models.ErrUnauthenticated),
		errors.Is(err, models.ErrInvalidClaims),
		errors.Is(err, models.ErrAccountInactive),
		errors.Is(err, models.ErrAccountSuspended),
		errors.Is(err, models.ErrAccountDeleted):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication failed")
	case errors.Is(err, models.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
	case errors.Is(err, models.ErrUpstreamUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "upstream_unavailable", "a dependency is unavailable, retry later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
