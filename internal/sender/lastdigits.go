package sender

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

// LastDigitsAdapter is the synthetic adapter used for local development and
// integration tests (spec §4.3): the "code" is just the last six digits of
// the destination number, so a test harness never needs to read a real SMS
// to drive checkCode. It never calls out to any provider.
type LastDigitsAdapter struct {
	sessTTL time.Duration
}

// NewLastDigitsAdapter creates a LastDigitsAdapter with the given session TTL.
func NewLastDigitsAdapter(sessionTTL time.Duration) *LastDigitsAdapter {
	return &LastDigitsAdapter{sessTTL: sessionTTL}
}

// Name implements Adapter.
func (a *LastDigitsAdapter) Name() string { return "last-digits" }

// SessionTTL implements Adapter.
func (a *LastDigitsAdapter) SessionTTL() time.Duration { return a.sessTTL }

// Supports implements Adapter: any number with at least six digits, over
// either transport, regardless of language preferences or client type.
func (a *LastDigitsAdapter) Supports(phoneNumber string, _ Transport, _ []string, _ string) bool {
	return len(digitsOnly(phoneNumber)) >= 6
}

// Send implements Adapter: no delivery occurs, the code is derived from the
// phone number itself. languageRanges and clientType are accepted for
// interface conformance and otherwise unused.
func (a *LastDigitsAdapter) Send(_ context.Context, phoneNumber string, transport Transport, _ []string, _ string) ([]byte, error) {
	digits := digitsOnly(phoneNumber)
	if len(digits) < 6 {
		return nil, fmt.Errorf("last-digits: send: %w", ErrUnsupportedRoute)
	}
	return []byte(digits[len(digits)-6:]), nil
}

// Check implements Adapter with a constant-time byte comparison.
func (a *LastDigitsAdapter) Check(_ context.Context, storedPayload []byte, candidateCode string) error {
	if len(storedPayload) == 0 {
		return fmt.Errorf("last-digits: check: %w", ErrIncorrectCode)
	}
	if subtle.ConstantTimeCompare(storedPayload, []byte(candidateCode)) != 1 {
		return ErrIncorrectCode
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ Adapter = (*LastDigitsAdapter)(nil)
