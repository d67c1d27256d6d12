package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

func TestCreateSession_Success(t *testing.T) {
	svc, _, _ := newTestService(t, allowAllEngine{})

	rec, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.SessionID)
	assert.Equal(t, "+15555550100", rec.PhoneNumber)
	assert.Empty(t, rec.SenderName)
	assert.False(t, rec.IsVerified())
}

func TestCreateSession_IllegalPhoneNumber(t *testing.T) {
	svc, _, _ := newTestService(t, allowAllEngine{})

	_, err := svc.CreateSession(context.Background(), "not-a-phone-number", "203.0.113.5")
	assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
}

func TestCreateSession_RateLimited(t *testing.T) {
	svc, _, _ := newTestService(t, denyRuleEngine{deny: "session-creation", retryAfter: 60 * time.Second})

	_, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCreateSession_RateLimiterFault(t *testing.T) {
	faultErr := errors.New("redis down")
	svc, _, _ := newTestService(t, faultyEngine{err: faultErr})

	_, err := svc.CreateSession(context.Background(), "+15555550100", "203.0.113.5")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
