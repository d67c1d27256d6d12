// Package app implements the verification orchestrator: the public
// createSession/sendCode/checkCode/getSession operations that drive the
// session state machine by composing the session store, rate limiters,
// selection strategy and sender adapters (spec §4.5).
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/ratelimit"
	"github.com/aelexs/phone-verify-service/internal/sender"
	"github.com/aelexs/phone-verify-service/internal/verify/store"
)

var tracer = otel.Tracer("verify/app")

var (
	sessionsCreatedTotal metric.Int64Counter
	codesSentTotal       metric.Int64Counter
	codesCheckedTotal    metric.Int64Counter
	rateLimitsTotal      metric.Int64Counter
	senderErrorsTotal    metric.Int64Counter
)

func init() {
	m := otel.Meter("verify/app")

	sessionsCreatedTotal, _ = m.Int64Counter("verify_sessions_created_total",
		metric.WithDescription("Total verification sessions created"))
	codesSentTotal, _ = m.Int64Counter("verify_codes_sent_total",
		metric.WithDescription("Total codes sent successfully, by adapter"))
	codesCheckedTotal, _ = m.Int64Counter("verify_codes_checked_total",
		metric.WithDescription("Total code check attempts, by outcome"))
	rateLimitsTotal, _ = m.Int64Counter("verify_rate_limits_total",
		metric.WithDescription("Total rate limit denials, by step"))
	senderErrorsTotal, _ = m.Int64Counter("verify_sender_errors_total",
		metric.WithDescription("Total sender adapter errors, by adapter and class"))
}

// CompletionPublisher publishes a fire-and-forget notification when a
// session reaches a terminal verified state. Optional: a nil publisher
// disables the fan-out entirely.
type CompletionPublisher interface {
	PublishVerified(ctx context.Context, sessionID, phoneNumber string) error
}

// ServiceConfig holds the dependencies for Service.
type ServiceConfig struct {
	Store      store.Store
	Limiters   *ratelimit.Limiters
	Registry   *sender.Registry
	Routing    sender.RoutingTable
	Pool       *sender.Pool
	Clock      domain.Clock
	Logger     *slog.Logger
	Publisher  CompletionPublisher
	DefaultTTL time.Duration
}

// Service implements the verification orchestrator.
type Service struct {
	store      store.Store
	limiters   *ratelimit.Limiters
	registry   *sender.Registry
	routing    sender.RoutingTable
	pool       *sender.Pool
	clock      domain.Clock
	logger     *slog.Logger
	publisher  CompletionPublisher
	defaultTTL time.Duration
	bgWG       sync.WaitGroup
}

// NewService creates a Service from cfg.
func NewService(cfg ServiceConfig) *Service {
	defaultTTL := cfg.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = domain.DefaultSessionTTL
	}
	return &Service{
		store:      cfg.Store,
		limiters:   cfg.Limiters,
		registry:   cfg.Registry,
		routing:    cfg.Routing,
		pool:       cfg.Pool,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		publisher:  cfg.Publisher,
		defaultTTL: defaultTTL,
	}
}

// Wait blocks until all background goroutines owned by this Service
// complete (the completion-record fan-out). The wiring layer must call
// this during graceful shutdown.
func (s *Service) Wait() {
	s.bgWG.Wait()
}
