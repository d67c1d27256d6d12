package port

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/errmap"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// errorResponse is the wire shape for every non-2xx response. retryAfterSeconds
// and mayRetry are the two fields spec §6 attaches to in-band errors, beyond
// errmap.HTTPError's code/message pair.
type errorResponse struct {
	Code              string           `json:"code"`
	Message           string           `json:"message"`
	MayRetry          bool             `json:"mayRetry"`
	RetryAfterSeconds int              `json:"retryAfterSeconds,omitempty"`
	Session           *sessionMetadata `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("verify port: encode response", "error", err)
	}
}

// writeInvalidArgument answers a malformed request at the RPC edge (spec §7
// tier 1), never as an in-band error.
func writeInvalidArgument(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:     "INVALID_ARGUMENT",
		Message:  err.Error(),
		MayRetry: false,
	})
}

// writeError maps a domain error onto its wire shape, with no session
// metadata attached.
func writeError(w http.ResponseWriter, err error) {
	writeErrorWithRecord(w, err, nil)
}

// writeErrorWithRecord maps a domain error onto its wire shape, attaching the
// caller's current session metadata when the orchestrator returned one
// alongside the error (e.g. SESSION_ALREADY_VERIFIED, NO_CODE_SENT).
func writeErrorWithRecord(w http.ResponseWriter, err error, rec *store.Record) {
	httpErr := errmap.ToHTTPError(err)

	resp := errorResponse{
		Code:     httpErr.Code,
		Message:  httpErr.Message,
		MayRetry: domain.IsRetryable(err),
	}

	var rle *domain.RateLimitError
	if errors.As(err, &rle) {
		resp.RetryAfterSeconds = int(rle.RetryAfter.Seconds())
	}

	if rec != nil {
		meta := toMetadata(rec)
		resp.Session = &meta
	}

	writeJSON(w, httpErr.StatusCode, resp)
}
