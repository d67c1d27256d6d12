package app_test

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/domain/domaintest"
	"github.com/aelexs/phone-verify-service/internal/ratelimit"
	"github.com/aelexs/phone-verify-service/internal/sender"
	"github.com/aelexs/phone-verify-service/internal/verify/app"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

// allowAllEngine lets every rule through; denyRuleEngine denies a configured
// rule name so tests can drive specific limiters without miniredis.
type allowAllEngine struct{}

func (allowAllEngine) Allow(_ context.Context, rule ratelimit.Rule, _ string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true, Remaining: rule.Limit}, nil
}

type denyRuleEngine struct {
	deny       string
	retryAfter time.Duration
}

func (d denyRuleEngine) Allow(_ context.Context, rule ratelimit.Rule, _ string) (ratelimit.Decision, error) {
	if rule.Name == d.deny {
		return ratelimit.Decision{Allowed: false, RetryAfter: d.retryAfter}, nil
	}
	return ratelimit.Decision{Allowed: true}, nil
}

type faultyEngine struct {
	err error
}

func (f faultyEngine) Allow(_ context.Context, _ ratelimit.Rule, _ string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, f.err
}

type stubAdapter struct {
	name       string
	sessionTTL time.Duration
	code       string
	sendErr    error
	checkErr   error
}

func (a *stubAdapter) Name() string             { return a.name }
func (a *stubAdapter) SessionTTL() time.Duration { return a.sessionTTL }
func (a *stubAdapter) Supports(_ string, _ sender.Transport, _ []string, _ string) bool {
	return true
}
func (a *stubAdapter) Send(_ context.Context, _ string, _ sender.Transport, _ []string, _ string) ([]byte, error) {
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	return []byte(a.code), nil
}
func (a *stubAdapter) Check(_ context.Context, stored []byte, candidate string) error {
	if a.checkErr != nil {
		return a.checkErr
	}
	if string(stored) != candidate {
		return sender.ErrIncorrectCode
	}
	return nil
}

type stubPublisher struct {
	calls chan string
	err   error
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{calls: make(chan string, 8)}
}

func (p *stubPublisher) PublishVerified(_ context.Context, sessionID, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.calls <- sessionID
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeClockT(t *testing.T) *domaintest.FakeClock {
	t.Helper()
	return domaintest.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
}

func newMemStoreT(t *testing.T, clock domain.Clock) *store.MemoryStore {
	t.Helper()
	memStore := store.NewMemoryStore(clock, time.Minute)
	t.Cleanup(memStore.Close)
	return memStore
}

func newTestService(t *testing.T, engine ratelimit.Engine, adapters ...sender.Adapter) (*app.Service, *domaintest.FakeClock, *store.MemoryStore) {
	t.Helper()
	clock := newFakeClockT(t)
	memStore := newMemStoreT(t, clock)

	svc := newTestServiceWithStore(t, memStore, clock, engine, nil, adapters...)
	return svc, clock, memStore
}

// newTestServiceWithStore builds a Service sharing an existing store and
// clock, so a test can point a second Service (e.g. with a denying rate
// limiter) at sessions a first Service already created.
func newTestServiceWithStore(t *testing.T, memStore store.Store, clock domain.Clock, engine ratelimit.Engine, publisher app.CompletionPublisher, adapters ...sender.Adapter) *app.Service {
	t.Helper()
	registry := sender.NewRegistry(adapters...)
	return app.NewService(app.ServiceConfig{
		Store:      memStore,
		Limiters:   ratelimit.NewLimiters(engine),
		Registry:   registry,
		Routing:    sender.RoutingTable{Default: firstName(adapters)},
		Pool:       sender.NewPool(4),
		Clock:      clock,
		Logger:     testLogger(),
		Publisher:  publisher,
		DefaultTTL: domain.DefaultSessionTTL,
	})
}

func firstName(adapters []sender.Adapter) string {
	if len(adapters) == 0 {
		return ""
	}
	return adapters[0].Name()
}
