package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// updateWithRetry calls s.store.Update, retrying domain.ErrConflict up to
// domain.MaxCASRetries times with jittered backoff. A losing writer in the
// session store's compare-and-swap is expected to retry (spec §4.1);
// exhausting retries surfaces as domain.ErrUnavailable since the caller
// has no better option than to treat it as transient.
func (s *Service) updateWithRetry(ctx context.Context, sessionID string, mutate store.Mutator) (*store.Record, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = domain.CASRetryBaseWait
	b.MaxInterval = domain.CASRetryMaxWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(domain.MaxCASRetries)), ctx)

	var result *store.Record
	op := func() error {
		rec, err := s.store.Update(ctx, sessionID, mutate)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = rec
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, fmt.Errorf("session update: exhausted CAS retries: %w", domain.ErrUnavailable)
	}
	return result, nil
}
