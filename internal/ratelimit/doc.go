// Package ratelimit implements the fixed-window rate limiting checks the
// verification orchestrator applies before creating sessions,
// sending codes, and checking codes (spec §4.2).
package ratelimit

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("ratelimit")
