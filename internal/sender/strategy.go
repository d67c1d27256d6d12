package sender

import (
	"fmt"
	"sort"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// CountryTransportKey keys a RoutingTable entry by the destination's
// country calling code and the requested transport.
type CountryTransportKey struct {
	CountryCode int32
	Transport   Transport
}

// RoutingTable maps (country code, transport) to the adapter name that
// should handle first-time sends for that combination, with a configured
// fallback for combinations not explicitly listed.
type RoutingTable struct {
	Routes  map[CountryTransportKey]string
	Default string
}

// resolve returns the configured adapter name for key, falling back to the
// table's default when no specific route exists.
func (t RoutingTable) resolve(key CountryTransportKey) string {
	if name, ok := t.Routes[key]; ok {
		return name
	}
	return t.Default
}

// Select implements the §4.4 selection strategy as a pure function over its
// inputs: no adapter or registry state is mutated, and the same inputs
// always produce the same output. Inputs are transport, phone number,
// language preferences, client type, and the previously recorded sender
// name, if any.
//
// Rule 1: a session with a recorded sender name is pinned to that adapter,
// provided it still supports the request; otherwise selection fails.
// Rule 2: otherwise, among adapters that support the request, the routing
// table picks one deterministically by (country code, transport).
// Rule 3: if nothing supports the request, selection fails.
func Select(registry *Registry, table RoutingTable, priorSenderName string, transport Transport, phoneNumber domain.PhoneNumber, languageRanges []string, clientType string) (Adapter, error) {
	e164 := phoneNumber.String()

	if priorSenderName != "" {
		adapter, ok := registry.Get(priorSenderName)
		if !ok || !adapter.Supports(e164, transport, languageRanges, clientType) {
			return nil, fmt.Errorf("sender: select: pinned adapter %q: %w", priorSenderName, domain.ErrSenderUnavailable)
		}
		return adapter, nil
	}

	key := CountryTransportKey{CountryCode: phoneNumber.CountryCode(), Transport: transport}
	if preferred := table.resolve(key); preferred != "" {
		if adapter, ok := registry.Get(preferred); ok && adapter.Supports(e164, transport, languageRanges, clientType) {
			return adapter, nil
		}
	}

	candidates := registry.All()
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name() < candidates[j].Name() })
	for _, adapter := range candidates {
		if adapter.Supports(e164, transport, languageRanges, clientType) {
			return adapter, nil
		}
	}

	return nil, fmt.Errorf("sender: select: no adapter supports transport %s: %w", transport, domain.ErrSenderUnavailable)
}
