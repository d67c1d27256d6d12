package sender

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/observability"
)

// Pool bounds concurrent adapter dispatches to a fixed number of in-flight
// calls, independent of the HTTP server's own per-request goroutines, so a
// slow upstream adapter never starves request handling (spec §9,
// "asynchronous adapter calls").
type Pool struct {
	sem chan struct{}
}

// NewPool creates a Pool with the given number of concurrent slots. A
// non-positive size falls back to domain.SenderWorkerPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = domain.SenderWorkerPoolSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Send acquires a pool slot and calls adapter.Send, retrying ErrUnavailable
// with jittered exponential backoff, up to MaxCASRetries retries after the
// first call;
// every other error returns immediately.
func (p *Pool) Send(ctx context.Context, adapter Adapter, phoneNumber string, transport Transport, languageRanges []string, clientType string) ([]byte, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	start := time.Now()
	var payload []byte
	op := func() error {
		var err error
		payload, err = adapter.Send(ctx, phoneNumber, transport, languageRanges, clientType)
		return classify(err)
	}

	err := backoff.Retry(op, retryPolicy(ctx))
	observeDispatch(adapter.Name(), "send", err, time.Since(start))
	if err != nil {
		return nil, unwrapPermanent(err)
	}
	return payload, nil
}

// Check acquires a pool slot and calls adapter.Check with the same retry
// policy as Send. ErrIncorrectCode is a definitive answer, never retried.
func (p *Pool) Check(ctx context.Context, adapter Adapter, storedPayload []byte, candidateCode string) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	start := time.Now()
	op := func() error {
		return classify(adapter.Check(ctx, storedPayload, candidateCode))
	}

	err := backoff.Retry(op, retryPolicy(ctx))
	observeDispatch(adapter.Name(), "check", err, time.Since(start))
	if err != nil {
		return unwrapPermanent(err)
	}
	return nil
}

// observeDispatch records dispatch latency to the Prometheus histogram,
// classifying the outcome by unwrapping a retry-exhausted permanent error
// down to the sentinel the adapter actually returned.
func observeDispatch(adapterName, operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = classifyOutcome(unwrapPermanent(err))
	}
	observability.SenderDispatchDuration.
		WithLabelValues(adapterName, operation, outcome).
		Observe(elapsed.Seconds())
}

func classifyOutcome(err error) string {
	switch {
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrIllegalArgument):
		return "illegal_argument"
	case errors.Is(err, ErrIncorrectCode):
		return "incorrect_code"
	case errors.Is(err, ErrUnsupportedRoute):
		return "unsupported_route"
	default:
		return "unavailable"
	}
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() { <-p.sem }

func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = domain.CASRetryBaseWait
	b.MaxInterval = domain.CASRetryMaxWait
	b.MaxElapsedTime = domain.SenderCallTimeout
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(domain.MaxCASRetries)), ctx)
}

// classify marks an adapter error retryable (ErrUnavailable) or permanent
// (everything else, including nil) for backoff.Retry.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
