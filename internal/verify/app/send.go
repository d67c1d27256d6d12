package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/observability"
	"github.com/aelexs/phone-verify-service/internal/sender"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// SendCode implements spec §4.5 sendCode: enforces the send-rate limiters,
// pins or picks an adapter, dispatches through the worker pool, and
// CAS-updates the session on success.
func (s *Service) SendCode(ctx context.Context, sessionID string, transport sender.Transport, languageRanges []string, clientType string, clientIP string) (*store.Record, error) {
	ctx, span := tracer.Start(ctx, "verify.send_code")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID), attribute.String("transport", string(transport)))

	logger := observability.WithTraceID(ctx, s.logger)

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("send code: %w", err)
	}
	if rec.IsVerified() {
		span.SetStatus(codes.Error, "session already verified")
		return rec, fmt.Errorf("send code: %w", domain.ErrSessionVerified)
	}

	phone, err := domain.NewPhoneNumber(rec.PhoneNumber)
	if err != nil {
		span.RecordError(err)
		return rec, fmt.Errorf("send code: %w", domain.ErrInvalidPhoneNumber)
	}
	phoneHash := auth.HashPhone(phone.String())

	decision, err := s.limiters.AllowSend(ctx, sessionID, phoneHash, string(transport))
	if err != nil {
		span.RecordError(err)
		return rec, fmt.Errorf("send code: rate limit check: %w", domain.ErrUnavailable)
	}
	if !decision.Allowed {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("step", "send_code")))
		span.SetStatus(codes.Error, "rate limited")
		return rec, fmt.Errorf("send code: %w", &domain.RateLimitError{RetryAfter: decision.RetryAfter})
	}

	adapter, err := sender.Select(s.registry, s.routing, rec.SenderName, transport, phone, languageRanges, clientType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rec, fmt.Errorf("send code: %w", err)
	}

	payload, sendErr := s.pool.Send(ctx, adapter, phone.String(), transport, languageRanges, clientType)
	outcome := store.OutcomeSent
	if sendErr != nil {
		outcome = classifySendOutcome(sendErr)
		senderErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("adapter", adapter.Name()), attribute.String("outcome", outcome)))
	}

	now := s.clock.Now()
	attempt := store.SendAttempt{
		Transport:   string(transport),
		Timestamp:   now,
		AdapterName: adapter.Name(),
		Outcome:     outcome,
	}

	if sendErr != nil {
		if _, updErr := s.updateWithRetry(ctx, sessionID, func(r *store.Record) error {
			r.SendAttempts = append(r.SendAttempts, attempt)
			return nil
		}); updErr != nil {
			logger.WarnContext(ctx, "verify.send_attempt_record_failed", "session_id", sessionID, "error", updErr)
		}
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, sendErr.Error())
		return rec, fmt.Errorf("send code: %w", mapSenderErr(sendErr))
	}

	ttl := adapter.SessionTTL()
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expiresAt := now.Add(ttl)

	updated, err := s.updateWithRetry(ctx, sessionID, func(r *store.Record) error {
		if r.IsVerified() {
			return domain.ErrSessionVerified
		}
		if r.SenderName == "" {
			r.SenderName = adapter.Name()
		}
		r.SenderData = payload
		if expiresAt.After(r.ExpiresAt) {
			r.ExpiresAt = expiresAt
		}
		r.SendAttempts = append(r.SendAttempts, attempt)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("send code: %w", err)
	}

	codesSentTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("adapter", adapter.Name())))
	logger.InfoContext(ctx, "verify.code_sent", "session_id", sessionID, "adapter", adapter.Name())
	return updated, nil
}

// classifySendOutcome maps a sender adapter error onto a store.SendAttempt
// outcome label (spec §4.3's error table).
func classifySendOutcome(err error) string {
	switch {
	case errors.Is(err, sender.ErrRejected):
		return store.OutcomeRejected
	case errors.Is(err, sender.ErrIllegalArgument):
		return store.OutcomeIllegalArgument
	default:
		return store.OutcomeUnavailable
	}
}

// mapSenderErr translates a sender package error into the orchestrator's
// public domain error taxonomy (spec §7).
func mapSenderErr(err error) error {
	switch {
	case errors.Is(err, sender.ErrRejected):
		return domain.ErrSenderRejected
	case errors.Is(err, sender.ErrIllegalArgument):
		return domain.ErrSenderIllegalArgument
	default:
		return domain.ErrSenderUnavailable
	}
}
