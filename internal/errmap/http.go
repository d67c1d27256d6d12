// Package errmap provides wire protocol mappers for domain errors: every
// domain sentinel a request can surface has an explicit HTTP (and gRPC, for
// a future framed sibling) mapping, and anything unmapped (including
// ErrIncorrectCode and ErrConfigRequired) becomes a generic INTERNAL error,
// so no raw internal error ever crosses the wire.
package errmap

import (
	"errors"
	"net/http"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMappings maps domain errors to HTTP status/code pairs. Order matters:
// first match wins (via errors.Is), so more specific sentinels must precede
// the coarser ones they would otherwise also satisfy.
var httpMappings = []struct {
	err  error
	code int
	name string
}{
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},

	{domain.ErrSessionVerified, http.StatusConflict, "SESSION_ALREADY_VERIFIED"},
	{domain.ErrNoCodeSent, http.StatusBadRequest, "NO_CODE_SENT"},
	{domain.ErrMaxCheckExceeded, http.StatusTooManyRequests, "RATE_LIMITED"},
	{domain.ErrSessionExpired, http.StatusNotFound, "NOT_FOUND"},

	{domain.ErrSenderRejected, http.StatusUnprocessableEntity, "SENDER_REJECTED"},
	{domain.ErrSenderIllegalArgument, http.StatusBadRequest, "SENDER_ILLEGAL_ARGUMENT"},
	{domain.ErrSenderUnsupportedRoute, http.StatusBadRequest, "SENDER_UNAVAILABLE"},
	{domain.ErrUnknownSender, http.StatusBadRequest, "SENDER_UNAVAILABLE"},
	{domain.ErrSenderUnavailable, http.StatusServiceUnavailable, "SENDER_UNAVAILABLE"},

	{domain.ErrInvalidPhoneNumber, http.StatusBadRequest, "ILLEGAL_PHONE_NUMBER"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT"},

	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{domain.ErrConflict, http.StatusServiceUnavailable, "UNAVAILABLE"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.code, Code: m.name, Message: err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
