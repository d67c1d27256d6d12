package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/sender"
)

func TestCheckCode_HappyPathAndIdempotentReplay(t *testing.T) {
	adapter := &stubAdapter{name: "last-digits", sessionTTL: 10 * time.Minute, code: "550100"}
	publisher := newStubPublisher()
	clock := newFakeClockT(t)
	memStore := newMemStoreT(t, clock)
	svc := newTestServiceWithStore(t, memStore, clock, allowAllEngine{}, publisher, adapter)

	rec, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	require.NoError(t, err)
	_, err = svc.SendCode(context.Background(), rec.SessionID, sender.TransportSMS, nil, "", "203.0.113.5")
	require.NoError(t, err)

	result, err := svc.CheckCode(context.Background(), rec.SessionID, "550100", "203.0.113.5")
	require.NoError(t, err)
	assert.True(t, result.Verified)

	select {
	case sid := <-publisher.calls:
		assert.Equal(t, rec.SessionID, sid)
	case <-time.After(time.Second):
		t.Fatal("completion publisher was never called")
	}

	again, err := svc.CheckCode(context.Background(), rec.SessionID, "550100", "203.0.113.5")
	require.NoError(t, err)
	assert.True(t, again.Verified)

	select {
	case <-publisher.calls:
		t.Fatal("replaying an already-verified check must not re-publish or call upstream")
	default:
	}
}

func TestCheckCode_WrongCode(t *testing.T) {
	adapter := &stubAdapter{name: "last-digits", sessionTTL: 10 * time.Minute, code: "550100"}
	svc, _, _ := newTestService(t, allowAllEngine{}, adapter)

	rec, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	require.NoError(t, err)
	_, err = svc.SendCode(context.Background(), rec.SessionID, sender.TransportSMS, nil, "", "203.0.113.5")
	require.NoError(t, err)

	result, err := svc.CheckCode(context.Background(), rec.SessionID, "incorrect", "203.0.113.5")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	require.Len(t, result.Record.CheckAttempts, 1)
	assert.Equal(t, "incorrect", result.Record.CheckAttempts[0].Outcome)
}

func TestCheckCode_NoCodeSent(t *testing.T) {
	adapter := &stubAdapter{name: "last-digits", sessionTTL: 10 * time.Minute, code: "550100"}
	svc, _, _ := newTestService(t, allowAllEngine{}, adapter)

	rec, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	require.NoError(t, err)

	result, err := svc.CheckCode(context.Background(), rec.SessionID, "550100", "203.0.113.5")
	assert.ErrorIs(t, err, domain.ErrNoCodeSent)
	assert.False(t, result.Verified)
}

func TestCheckCode_UnknownSessionReturnsUnverifiedWithoutError(t *testing.T) {
	svc, _, _ := newTestService(t, allowAllEngine{})

	result, err := svc.CheckCode(context.Background(), "00000000-0000-0000-0000-000000000000", "550100", "203.0.113.5")
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestCheckCode_RateLimited(t *testing.T) {
	adapter := &stubAdapter{name: "last-digits", sessionTTL: 10 * time.Minute, code: "550100"}
	svc, clock, memStore := newTestService(t, allowAllEngine{}, adapter)
	rec, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	require.NoError(t, err)
	_, err = svc.SendCode(context.Background(), rec.SessionID, sender.TransportSMS, nil, "", "203.0.113.5")
	require.NoError(t, err)

	limited := newTestServiceWithStore(t, memStore, clock, denyRuleEngine{deny: "check-per-session", retryAfter: 15 * time.Second}, nil, adapter)
	_, err = limited.CheckCode(context.Background(), rec.SessionID, "550100", "203.0.113.5")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
