package sender_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/phone-verify-service/internal/sender"
)

type flakyAdapter struct {
	fakeAdapter
	attempts  int32
	failUntil int32
	failWith  error
}

func (f *flakyAdapter) Send(ctx context.Context, phoneNumber string, transport sender.Transport, languageRanges []string, clientType string) ([]byte, error) {
	n := atomic.AddInt32(&f.attempts, 1)
	if n <= f.failUntil {
		return nil, f.failWith
	}
	return f.fakeAdapter.Send(ctx, phoneNumber, transport, languageRanges, clientType)
}

type blockingAdapter struct {
	fakeAdapter
	release chan struct{}
	started chan struct{}
}

func (b *blockingAdapter) Send(ctx context.Context, _ string, _ sender.Transport, _ []string, _ string) ([]byte, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []byte(b.code), nil
}

func TestPool_Send_RetriesTransientFailures(t *testing.T) {
	adapter := &flakyAdapter{
		fakeAdapter: fakeAdapter{name: "flaky", code: "123456"},
		failUntil:   2,
		failWith:    sender.ErrUnavailable,
	}
	pool := sender.NewPool(4)

	payload, err := pool.Send(context.Background(), adapter, "+14155552671", sender.TransportSMS, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "123456", string(payload))
	assert.Equal(t, int32(3), atomic.LoadInt32(&adapter.attempts))
}

func TestPool_Send_PermanentFailureIsNotRetried(t *testing.T) {
	adapter := &flakyAdapter{
		fakeAdapter: fakeAdapter{name: "flaky"},
		failUntil:   100,
		failWith:    sender.ErrRejected,
	}
	pool := sender.NewPool(4)

	_, err := pool.Send(context.Background(), adapter, "+14155552671", sender.TransportSMS, nil, "")
	assert.ErrorIs(t, err, sender.ErrRejected)
	assert.Equal(t, int32(1), atomic.LoadInt32(&adapter.attempts))
}

func TestPool_Check_PermanentFailureIsNotRetried(t *testing.T) {
	adapter := &fakeAdapter{name: "a", checkErr: sender.ErrIncorrectCode}
	pool := sender.NewPool(4)

	err := pool.Check(context.Background(), adapter, []byte("123456"), "000000")
	assert.ErrorIs(t, err, sender.ErrIncorrectCode)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := sender.NewPool(1)
	occupied := &blockingAdapter{
		fakeAdapter: fakeAdapter{name: "occupied", code: "123456"},
		release:     make(chan struct{}),
		started:     make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := pool.Send(context.Background(), occupied, "+14155552671", sender.TransportSMS, nil, "")
		done <- err
	}()

	select {
	case <-occupied.started:
	case <-time.After(time.Second):
		t.Fatal("occupied call never started")
	}

	waiterCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	waiter := &fakeAdapter{name: "waiter", code: "000000"}

	_, err := pool.Send(waiterCtx, waiter, "+14155552671", sender.TransportSMS, nil, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(occupied.release)
	require.NoError(t, <-done)
}
