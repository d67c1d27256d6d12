package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/domain/domaintest"
)

func newMemoryRecord(id string, createdAt time.Time, ttl time.Duration) Record {
	return Record{
		SessionID:   id,
		PhoneNumber: "+14155552671",
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(ttl),
		Version:     1,
	}
}

func TestMemoryStore_Create(t *testing.T) {
	clock := domaintest.NewFakeClock(fixedTime())
	s := NewMemoryStore(clock, time.Hour)
	defer s.Close()

	rec := newMemoryRecord("session-1", fixedTime(), 10*time.Minute)

	require.NoError(t, s.Create(context.Background(), rec))

	err := s.Create(context.Background(), rec)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestMemoryStore_Get(t *testing.T) {
	t.Run("returns stored record", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		rec := newMemoryRecord("session-1", fixedTime(), 10*time.Minute)
		require.NoError(t, s.Create(context.Background(), rec))

		got, err := s.Get(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Equal(t, rec.PhoneNumber, got.PhoneNumber)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("unknown id returns ErrNotFound", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		_, err := s.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("expired record returns ErrNotFound without waiting for sweep", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		rec := newMemoryRecord("session-1", fixedTime(), time.Minute)
		require.NoError(t, s.Create(context.Background(), rec))

		clock.Advance(2 * time.Minute)

		_, err := s.Get(context.Background(), "session-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryStore_Update(t *testing.T) {
	t.Run("success bumps version", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		rec := newMemoryRecord("session-1", fixedTime(), 10*time.Minute)
		require.NoError(t, s.Create(context.Background(), rec))

		updated, err := s.Update(context.Background(), "session-1", func(r *Record) error {
			r.VerifiedCode = "550100"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "550100", updated.VerifiedCode)

		got, err := s.Get(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("mutator error leaves stored record unchanged", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		rec := newMemoryRecord("session-1", fixedTime(), 10*time.Minute)
		require.NoError(t, s.Create(context.Background(), rec))

		_, err := s.Update(context.Background(), "session-1", func(r *Record) error {
			return domain.ErrSessionVerified
		})
		assert.ErrorIs(t, err, domain.ErrSessionVerified)

		got, getErr := s.Get(context.Background(), "session-1")
		require.NoError(t, getErr)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("unknown id returns ErrNotFound", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		_, err := s.Update(context.Background(), "nope", func(r *Record) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent updates serialize without lost writes", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime())
		s := NewMemoryStore(clock, time.Hour)
		defer s.Close()

		rec := newMemoryRecord("session-1", fixedTime(), 10*time.Minute)
		require.NoError(t, s.Create(context.Background(), rec))

		const n = 50
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				_, err := s.Update(context.Background(), "session-1", func(r *Record) error {
					r.SendAttempts = append(r.SendAttempts, SendAttempt{Outcome: OutcomeSent})
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Equal(t, int64(n+1), got.Version)
		assert.Len(t, got.SendAttempts, n)
	})
}

func TestMemoryStore_SweeperEvictsExpiredSessions(t *testing.T) {
	clock := domaintest.NewFakeClock(fixedTime())
	s := NewMemoryStore(clock, 10*time.Millisecond)
	defer s.Close()

	rec := newMemoryRecord("session-1", fixedTime(), time.Minute)
	require.NoError(t, s.Create(context.Background(), rec))

	clock.Advance(2 * time.Minute)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		_, exists := s.sessions["session-1"]
		s.mu.Unlock()
		return !exists
	}, time.Second, 5*time.Millisecond)
}
