// Package sender implements the pluggable delivery adapters the
// verification orchestrator dispatches send/check calls to, and the
// registry and selection strategy that pick one per session (spec §4.3,
// §4.4).
package sender

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sender")

// Sentinel errors an Adapter returns from Send/Check. The orchestrator maps
// these onto domain errors; adapters never import the domain package's
// session-lifecycle errors directly since an adapter doesn't know about
// sessions, only about one delivery attempt.
var (
	// ErrRejected means the upstream provider actively refused the send
	// (e.g. blocked destination, opted-out number).
	ErrRejected = errors.New("sender: delivery rejected")
	// ErrUnavailable means the upstream provider could not be reached or
	// returned a transient failure; the caller may retry with a different
	// adapter.
	ErrUnavailable = errors.New("sender: provider unavailable")
	// ErrIllegalArgument means the request itself was malformed in a way
	// the adapter's provider rejected (e.g. unsupported phone number
	// shape for that provider), distinct from a transient failure.
	ErrIllegalArgument = errors.New("sender: illegal argument")
	// ErrUnsupportedRoute means the phone number/transport this adapter
	// was asked to handle is outside what Supports reported.
	ErrUnsupportedRoute = errors.New("sender: unsupported route")
	// ErrIncorrectCode means Check ran successfully but the candidate code
	// did not match.
	ErrIncorrectCode = errors.New("sender: incorrect code")
)

// Transport names a delivery channel an Adapter may support.
type Transport string

const (
	TransportSMS   Transport = "sms"
	TransportVoice Transport = "voice"
)

// Adapter is the uniform contract every delivery mechanism implements,
// whether it generates and checks its own code locally (a provided-code
// adapter) or delegates both to an upstream verification service (a
// delegated adapter). The session store treats whatever an Adapter returns
// as opaque bytes; only the Adapter that produced it ever interprets it.
type Adapter interface {
	// Name identifies this adapter in Record.SenderName and in routing
	// tables. Stable across process restarts.
	Name() string

	// SessionTTL is the lifetime this adapter needs for a session it is
	// servicing, overriding domain.DefaultSessionTTL when non-zero.
	SessionTTL() time.Duration

	// Supports reports whether this adapter can serve the given phone
	// number over the given transport, for the caller's language
	// preferences and client type (spec §4.3). Most adapters ignore
	// languageRanges/clientType today; they're threaded through so an
	// adapter that only speaks a subset of languages, or that treats a
	// browser client differently from a native one, can act on them.
	Supports(phoneNumber string, transport Transport, languageRanges []string, clientType string) bool

	// Send dispatches a new code to phoneNumber and returns the opaque
	// payload to store as Record.SenderData. languageRanges and
	// clientType carry the caller's Accept-Language preferences and
	// declared client type through to providers that localize or brand
	// the outgoing message. Returns ErrRejected, ErrUnavailable, or
	// ErrIllegalArgument on failure.
	Send(ctx context.Context, phoneNumber string, transport Transport, languageRanges []string, clientType string) ([]byte, error)

	// Check validates candidateCode against the payload a prior Send
	// produced. Returns ErrIncorrectCode if the code doesn't match, or
	// ErrUnavailable if the check itself could not be performed (only
	// meaningful for delegated adapters that call out to verify).
	Check(ctx context.Context, storedPayload []byte, candidateCode string) error
}

// Registry is a fixed map from adapter name to Adapter. It has no mutation
// API: the set of adapters is assembled once at startup from configuration
// and never changes for the life of the process.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a Registry from the given adapters, keyed by Name().
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the named adapter, or (nil, false) if no such adapter was
// registered.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns every registered adapter, in no particular order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
