package sender

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/aelexs/phone-verify-service/internal/auth"
)

// snsPublisher is a narrow, consumer-defined interface for the subset of
// SNS operations the SMS adapter needs. The real *sns.Client satisfies it.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAdapter is a provided-code adapter: it generates the one-time code
// itself, delivers it over SNS SMS, and checks candidates locally. Its
// senderData is the raw generated code, nothing more — the session store
// treats it as opaque bytes regardless.
type SNSAdapter struct {
	client  snsPublisher
	sessTTL time.Duration
}

// NewSNSAdapter creates an SNSAdapter backed by the given SNS client.
func NewSNSAdapter(client snsPublisher, sessionTTL time.Duration) *SNSAdapter {
	return &SNSAdapter{client: client, sessTTL: sessionTTL}
}

// Name implements Adapter.
func (a *SNSAdapter) Name() string { return "sns" }

// SessionTTL implements Adapter.
func (a *SNSAdapter) SessionTTL() time.Duration { return a.sessTTL }

// Supports implements Adapter: SNS SMS delivers to any well-formed E.164
// number; voice delivery isn't implemented by this adapter. SNS messages
// aren't localized by this adapter, so language preferences and client
// type don't affect the answer.
func (a *SNSAdapter) Supports(_ string, transport Transport, _ []string, _ string) bool {
	return transport == TransportSMS
}

// Send implements Adapter. languageRanges and clientType are accepted for
// interface conformance; this adapter always sends the same English
// message regardless.
func (a *SNSAdapter) Send(ctx context.Context, phoneNumber string, transport Transport, languageRanges []string, clientType string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "sender.sns.send")
	defer span.End()

	if !a.Supports(phoneNumber, transport, languageRanges, clientType) {
		return nil, fmt.Errorf("sns: send: %w", ErrUnsupportedRoute)
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("sns: generate code: %w", err)
	}

	message := fmt.Sprintf("Your verification code is: %s", code)
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phoneNumber,
		Message:     &message,
	})
	if err != nil {
		return nil, fmt.Errorf("sns: publish: %w", ErrUnavailable)
	}

	return []byte(code), nil
}

// Check implements Adapter with a constant-time byte comparison, since the
// stored payload already is the expected code.
func (a *SNSAdapter) Check(_ context.Context, storedPayload []byte, candidateCode string) error {
	if len(storedPayload) == 0 {
		return fmt.Errorf("sns: check: %w", ErrIncorrectCode)
	}
	if subtle.ConstantTimeCompare(storedPayload, []byte(candidateCode)) != 1 {
		return ErrIncorrectCode
	}
	return nil
}

var _ Adapter = (*SNSAdapter)(nil)
