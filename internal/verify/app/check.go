package app

import (
	"context"
	"crypto/subtle"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/observability"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// CheckResult is the outcome of CheckCode: verified reflects the session's
// state even when the session itself could not be found (spec §4.5 step 1
// deliberately does not distinguish missing from unverified at this layer).
type CheckResult struct {
	Verified bool
	Record   *store.Record
}

// CheckCode implements spec §4.5 checkCode.
func (s *Service) CheckCode(ctx context.Context, sessionID, submittedCode, clientIP string) (CheckResult, error) {
	ctx, span := tracer.Start(ctx, "verify.check_code")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	logger := observability.WithTraceID(ctx, s.logger)

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if domain.IsNotFound(err) {
			return CheckResult{Verified: false}, nil
		}
		span.RecordError(err)
		return CheckResult{}, fmt.Errorf("check code: %w", err)
	}

	if rec.IsVerified() {
		verified := constantTimeEqual(rec.VerifiedCode, submittedCode)
		return CheckResult{Verified: verified, Record: rec}, nil
	}

	if !rec.HasCode() {
		span.SetStatus(codes.Error, "no code sent")
		return CheckResult{Verified: false, Record: rec}, fmt.Errorf("check code: %w", domain.ErrNoCodeSent)
	}

	phone, err := domain.NewPhoneNumber(rec.PhoneNumber)
	if err != nil {
		span.RecordError(err)
		return CheckResult{Verified: false, Record: rec}, fmt.Errorf("check code: %w", domain.ErrInvalidPhoneNumber)
	}
	phoneHash := auth.HashPhone(phone.String())

	decision, err := s.limiters.AllowCheck(ctx, sessionID, phoneHash)
	if err != nil {
		span.RecordError(err)
		return CheckResult{Verified: false, Record: rec}, fmt.Errorf("check code: rate limit check: %w", domain.ErrUnavailable)
	}
	if !decision.Allowed {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("step", "check_code")))
		span.SetStatus(codes.Error, "rate limited")
		return CheckResult{Verified: false, Record: rec}, fmt.Errorf("check code: %w", &domain.RateLimitError{RetryAfter: decision.RetryAfter})
	}

	adapter, ok := s.registry.Get(rec.SenderName)
	if !ok {
		span.SetStatus(codes.Error, "unknown sender")
		return CheckResult{Verified: false, Record: rec}, fmt.Errorf("check code: %w", domain.ErrUnknownSender)
	}

	checkErr := s.pool.Check(ctx, adapter, rec.SenderData, submittedCode)
	now := s.clock.Now()

	if checkErr != nil {
		outcome := store.OutcomeIncorrect
		updated, updErr := s.updateWithRetry(ctx, sessionID, func(r *store.Record) error {
			if r.IsVerified() {
				return domain.ErrSessionVerified
			}
			r.CheckAttempts = append(r.CheckAttempts, store.CheckAttempt{Timestamp: now, Outcome: outcome})
			return nil
		})
		if updErr != nil {
			logger.WarnContext(ctx, "verify.check_attempt_record_failed", "session_id", sessionID, "error", updErr)
			updated = rec
		}
		codesCheckedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("verified", false)))
		return CheckResult{Verified: false, Record: updated}, nil
	}

	updated, err := s.updateWithRetry(ctx, sessionID, func(r *store.Record) error {
		if r.IsVerified() {
			return nil
		}
		r.VerifiedCode = submittedCode
		r.CheckAttempts = append(r.CheckAttempts, store.CheckAttempt{Timestamp: now, Outcome: store.OutcomeVerified})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return CheckResult{}, fmt.Errorf("check code: %w", err)
	}

	codesCheckedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("verified", true)))
	logger.InfoContext(ctx, "verify.session_verified", "session_id", sessionID)

	if s.publisher != nil {
		s.bgWG.Add(1)
		go s.publishCompletion(updated.SessionID, updated.PhoneNumber)
	}

	return CheckResult{Verified: true, Record: updated}, nil
}

// publishCompletion fires the completion notification on its own
// background goroutine, outside the request path, tracked by bgWG so
// shutdown can drain it.
func (s *Service) publishCompletion(sessionID, phoneNumber string) {
	defer s.bgWG.Done()
	ctx, cancel := context.WithTimeout(context.Background(), domain.SenderCallTimeout)
	defer cancel()
	if err := s.publisher.PublishVerified(ctx, sessionID, phoneNumber); err != nil {
		s.logger.WarnContext(ctx, "verify.completion_publish_failed", "session_id", sessionID, "error", err)
	}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
