package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// GetSession implements spec §4.5 getSession: a pure read that returns
// domain.ErrNotFound if the session is absent or expired.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*store.Record, error) {
	ctx, span := tracer.Start(ctx, "verify.get_session")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}
