package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/observability"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// CreateSession implements spec §4.5 createSession: validates the phone
// number, enforces the session-creation limiters, and writes a fresh
// session record with no sender assigned yet.
func (s *Service) CreateSession(ctx context.Context, e164Long string, clientIP string) (*store.Record, error) {
	ctx, span := tracer.Start(ctx, "verify.create_session")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	phone, err := domain.NewPhoneNumber(e164Long)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create session: %w", domain.ErrInvalidPhoneNumber)
	}

	phoneHash := auth.HashPhone(phone.String())

	decision, err := s.limiters.AllowCreate(ctx, clientIP, phoneHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create session: rate limit check: %w", domain.ErrUnavailable)
	}
	if !decision.Allowed {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("step", "create_session")))
		span.SetStatus(codes.Error, "rate limited")
		return nil, fmt.Errorf("create session: %w", &domain.RateLimitError{RetryAfter: decision.RetryAfter})
	}

	now := s.clock.Now()
	rec := store.Record{
		SessionID:   domain.GenerateSessionID().String(),
		PhoneNumber: phone.String(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.defaultTTL),
	}

	if err := s.store.Create(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create session: %w", err)
	}

	sessionsCreatedTotal.Add(ctx, 1)
	logger.InfoContext(ctx, "verify.session_created",
		"session_id", rec.SessionID, "phone_hash", phoneHash)

	created, err := s.store.Get(ctx, rec.SessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create session: read back: %w", err)
	}
	return created, nil
}
