package ratelimit

import (
	"context"
	"fmt"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/observability"
)

// The seven named limiters applied across the verification lifecycle
// (spec §4.2). Each pairs a rule name with the (Limit, Window) domain
// constants so the composite Redis key embeds the rule identity.
var (
	RuleSessionCreation     = Rule{Name: "session-creation", Limit: domain.SessionCreationLimit, Window: domain.SessionCreationWindow}
	RuleSendSMSPerNumber    = Rule{Name: "send-sms-per-number", Limit: domain.SendSMSPerNumberLimit, Window: domain.SendSMSPerNumberWindow}
	RuleSendVoicePerNumber  = Rule{Name: "send-voice-per-number", Limit: domain.SendVoicePerNumberLimit, Window: domain.SendVoicePerNumberWindow}
	RuleSendSMSPerSession   = Rule{Name: "send-sms-per-session", Limit: domain.SendSMSPerSessionLimit, Window: domain.SendSMSPerSessionWindow}
	RuleSendVoicePerSession = Rule{Name: "send-voice-per-session", Limit: domain.SendVoicePerSessionLimit, Window: domain.SendVoicePerSessionWindow}
	RuleCheckPerNumber      = Rule{Name: "check-per-number", Limit: domain.CheckPerNumberLimit, Window: domain.CheckPerNumberWindow}
	RuleCheckPerSession     = Rule{Name: "check-per-session", Limit: domain.CheckPerSessionLimit, Window: domain.CheckPerSessionWindow}
)

// Limiters bundles an Engine with the named rules the verification
// orchestrator evaluates at each lifecycle step. It is the seam app.Service
// depends on instead of reaching for Engine directly.
type Limiters struct {
	engine Engine
}

// NewLimiters wraps engine with the fixed rule table.
func NewLimiters(engine Engine) *Limiters {
	return &Limiters{engine: engine}
}

// AllowCreate enforces the single session-creation limiter, keyed on the
// composite (phone number, source tag) pair rather than two independently
// counted rules — a caller that fans a given number out across many source
// IPs, or a given IP across many numbers, is still bound by one shared
// budget for that pair.
func (l *Limiters) AllowCreate(ctx context.Context, sourceTag, phoneHash string) (Decision, error) {
	return l.firstDenied(ctx,
		ruleCheck{RuleSessionCreation, []string{phoneHash, sourceTag}},
	)
}

// AllowSend enforces the transport-scoped send limiters: per-number before
// per-session (spec §4.5 step 3), and keyed to the requested transport so
// an SMS-exhausted number is never wrongly blocked from sending by voice,
// or vice versa.
func (l *Limiters) AllowSend(ctx context.Context, sessionID, phoneHash, transport string) (Decision, error) {
	perNumber, perSession := sendRulesFor(transport)
	return l.firstDenied(ctx,
		ruleCheck{perNumber, []string{phoneHash}},
		ruleCheck{perSession, []string{sessionID}},
	)
}

// sendRulesFor returns the (per-number, per-session) rule pair for the
// requested transport, defaulting to the SMS pair for anything that isn't
// explicitly voice.
func sendRulesFor(transport string) (Rule, Rule) {
	if transport == "voice" {
		return RuleSendVoicePerNumber, RuleSendVoicePerSession
	}
	return RuleSendSMSPerNumber, RuleSendSMSPerSession
}

// AllowCheck enforces CheckPerNumber and CheckPerSession, number-scoped
// before session-scoped (spec §4.2's fixed evaluation order).
func (l *Limiters) AllowCheck(ctx context.Context, sessionID, phoneHash string) (Decision, error) {
	return l.firstDenied(ctx,
		ruleCheck{RuleCheckPerNumber, []string{phoneHash}},
		ruleCheck{RuleCheckPerSession, []string{sessionID}},
	)
}

type ruleCheck struct {
	rule Rule
	dims []string
}

// firstDenied evaluates checks in order and returns on the first denial or
// the first error, so a Redis fault on one rule never lets a later rule's
// success paper over it (fail-closed).
func (l *Limiters) firstDenied(ctx context.Context, checks ...ruleCheck) (Decision, error) {
	last := Decision{Allowed: true}
	for _, c := range checks {
		decision, err := l.engine.Allow(ctx, c.rule, Key(c.rule, c.dims...))
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit: rule %s: %w", c.rule.Name, err)
		}
		if !decision.Allowed {
			observability.RateLimitDenialsTotal.WithLabelValues(c.rule.Name).Inc()
			return decision, nil
		}
		last = decision
	}
	return last, nil
}
