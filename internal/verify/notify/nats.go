// Package notify publishes completion records for terminal verification
// outcomes to a fire-and-forget NATS subject, for the out-of-scope
// analytics pipeline this service hands records off to.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("verify/notify")

// CompletionSubject is the fixed NATS subject every completion record is
// published to.
const CompletionSubject = "verify.completions"

// completionRecord is the wire shape published to CompletionSubject.
type completionRecord struct {
	SessionID   string    `json:"sessionId"`
	PhoneNumber string    `json:"phoneNumber"`
	VerifiedAt  time.Time `json:"verifiedAt"`
}

// natsPublisher is the subset of *nats.Conn this package depends on.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// Publisher publishes verification completions to NATS. It satisfies
// app.CompletionPublisher.
type Publisher struct {
	conn natsPublisher
	now  func() time.Time
}

// NewPublisher wraps an already-connected NATS connection. The caller owns
// the connection's lifecycle (Connect/Drain/Close).
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn, now: time.Now}
}

// NewPublisherForTest builds a Publisher against the narrow natsPublisher
// seam with an injectable clock, for tests that don't want a live NATS
// connection.
func NewPublisherForTest(conn natsPublisher, now func() time.Time) *Publisher {
	return &Publisher{conn: conn, now: now}
}

// PublishVerified publishes a completion record for sessionID. Publish is
// fire-and-forget: NATS core delivery has no acknowledgement and the record
// is published once, so delivery is at most once, matching the best-effort
// nature of this analytics side-channel.
func (p *Publisher) PublishVerified(ctx context.Context, sessionID, phoneNumber string) error {
	_, span := tracer.Start(ctx, "notify.publish_verified")
	defer span.End()

	rec := completionRecord{
		SessionID:   sessionID,
		PhoneNumber: phoneNumber,
		VerifiedAt:  p.now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: marshal completion record: %w", err)
	}
	if err := p.conn.Publish(CompletionSubject, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: publish completion record: %w", err)
	}
	return nil
}

var _ natsPublisher = (*nats.Conn)(nil)
