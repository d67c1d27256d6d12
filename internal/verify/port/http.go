// Package port exposes the verification orchestrator's four operations
// (spec §6) as a plain net/http JSON API, mounted on the shared service
// mux. Protobuf + grpc-gateway, the teacher's wire framing, needs protoc
// code generation that this build environment cannot run, so this is a
// thinner transport realization of the same external interface.
package port

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/sender"
	"github.com/aelexs/phone-verify-service/internal/verify/app"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// verifyService is a narrow, consumer-defined interface for the
// orchestrator operations this handler needs. *app.Service satisfies it.
type verifyService interface {
	CreateSession(ctx context.Context, e164Long, clientIP string) (*store.Record, error)
	SendCode(ctx context.Context, sessionID string, transport sender.Transport, languageRanges []string, clientType string, clientIP string) (*store.Record, error)
	CheckCode(ctx context.Context, sessionID, submittedCode, clientIP string) (app.CheckResult, error)
	GetSession(ctx context.Context, sessionID string) (*store.Record, error)
}

// Handler implements the §6 wire surface over net/http.
type Handler struct {
	svc verifyService
}

// NewHandler creates a Handler backed by the given verification service.
func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /v1/sessions/{id}/send", h.sendCode)
	mux.HandleFunc("POST /v1/sessions/{id}/check", h.checkCode)
}

// sessionMetadata is the wire shape returned to callers (spec §6:
// "sessionId (bytes), e164 (uint64), verified (bool)").
type sessionMetadata struct {
	SessionID string `json:"sessionId"`
	E164      uint64 `json:"e164"`
	Verified  bool   `json:"verified"`
}

func toMetadata(rec *store.Record) sessionMetadata {
	phone, err := domain.NewPhoneNumber(rec.PhoneNumber)
	var e164 uint64
	if err == nil {
		e164 = phone.Uint64()
	}
	return sessionMetadata{
		SessionID: rec.SessionID,
		E164:      e164,
		Verified:  rec.IsVerified(),
	}
}

// createSessionRequest is the POST /v1/sessions request body.
type createSessionRequest struct {
	E164 uint64 `json:"e164"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidArgument(w, err)
		return
	}

	phone, err := domain.PhoneNumberFromUint64(req.E164)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.svc.CreateSession(r.Context(), phone.String(), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMetadata(rec))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeInvalidArgument(w, errors.New("missing session id"))
		return
	}

	rec, err := h.svc.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMetadata(rec))
}

// sendCodeRequest is the POST /v1/sessions/{id}/send request body.
// acceptLanguage and clientType are optional (spec §6): when absent, the
// selection strategy and adapter see a nil/empty value and fall back to
// their defaults.
type sendCodeRequest struct {
	Transport      string `json:"transport"`
	AcceptLanguage string `json:"acceptLanguage,omitempty"`
	ClientType     string `json:"clientType,omitempty"`
}

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeInvalidArgument(w, errors.New("missing session id"))
		return
	}

	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidArgument(w, err)
		return
	}

	transport, err := parseTransport(req.Transport)
	if err != nil {
		writeInvalidArgument(w, err)
		return
	}

	rec, err := h.svc.SendCode(r.Context(), sessionID, transport, parseLanguageRanges(req.AcceptLanguage), req.ClientType, clientIP(r))
	if err != nil {
		// A send failure still carries the current metadata for the caller
		// (spec §6: "optional sessionMetadata" alongside the error), e.g.
		// SESSION_ALREADY_VERIFIED.
		writeErrorWithRecord(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, toMetadata(rec))
}

// checkCodeRequest is the POST /v1/sessions/{id}/check request body.
type checkCodeRequest struct {
	VerificationCode string `json:"verificationCode"`
}

// checkCodeResponse mirrors spec §6's checkVerificationCode response:
// verified plus optional session metadata.
type checkCodeResponse struct {
	Verified bool             `json:"verified"`
	Session  *sessionMetadata `json:"session,omitempty"`
}

func (h *Handler) checkCode(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeInvalidArgument(w, errors.New("missing session id"))
		return
	}

	var req checkCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidArgument(w, err)
		return
	}
	if req.VerificationCode == "" {
		writeInvalidArgument(w, errors.New("verificationCode cannot be empty"))
		return
	}

	result, err := h.svc.CheckCode(r.Context(), sessionID, req.VerificationCode, clientIP(r))
	if err != nil {
		writeErrorWithRecord(w, err, result.Record)
		return
	}

	resp := checkCodeResponse{Verified: result.Verified}
	if result.Record != nil {
		meta := toMetadata(result.Record)
		resp.Session = &meta
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseTransport(raw string) (sender.Transport, error) {
	switch strings.ToLower(raw) {
	case "sms":
		return sender.TransportSMS, nil
	case "voice":
		return sender.TransportVoice, nil
	default:
		return "", errors.New("transport must be \"sms\" or \"voice\"")
	}
}

// parseLanguageRanges splits an Accept-Language-style header value
// ("en-US,fr;q=0.9") into its ordered list of language tags, dropping
// quality-value suffixes. An empty header yields a nil slice.
func parseLanguageRanges(acceptLanguage string) []string {
	if acceptLanguage == "" {
		return nil
	}
	parts := strings.Split(acceptLanguage, ",")
	ranges := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if idx := strings.IndexByte(tag, ';'); idx >= 0 {
			tag = strings.TrimSpace(tag[:idx])
		}
		if tag != "" {
			ranges = append(ranges, tag)
		}
	}
	return ranges
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if idx := strings.LastIndexByte(r.RemoteAddr, ':'); idx >= 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
