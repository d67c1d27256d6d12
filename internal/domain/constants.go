package domain

import "time"

// Compiled defaults for the verification service. Overridable via configuration
// where a Config field exists (see internal/config).
const (
	// Session lifecycle
	DefaultSessionTTL = 10 * time.Minute // Session.ExpiresAt = CreatedAt + this, absent a sender override
	MinSessionTTL     = 1 * time.Minute
	MaxSessionTTL     = 30 * time.Minute

	// Rate limiting windows, one per named limiter (spec §4.2). Send
	// limiters are split per transport: an SMS-exhausted number must not
	// block a voice send for the same number, and vice versa.
	SessionCreationLimit      = 10
	SessionCreationWindow     = 24 * time.Hour
	SendSMSPerNumberLimit     = 5
	SendSMSPerNumberWindow    = 1 * time.Hour
	SendVoicePerNumberLimit   = 3
	SendVoicePerNumberWindow  = 1 * time.Hour
	SendSMSPerSessionLimit    = 3
	SendSMSPerSessionWindow   = 10 * time.Minute
	SendVoicePerSessionLimit  = 2
	SendVoicePerSessionWindow = 10 * time.Minute
	CheckPerNumberLimit       = 10
	CheckPerNumberWindow      = 1 * time.Hour
	CheckPerSessionLimit      = 5
	CheckPerSessionWindow     = 10 * time.Minute

	// Timeout contracts
	DynamoDBTimeout  = 5 * time.Second
	RedisTimeout     = 2 * time.Second
	SenderCallTimeout = 10 * time.Second

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 15 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second

	// CAS retry schedule for Session Store Update conflicts
	MaxCASRetries    = 3
	CASRetryBaseWait = 20 * time.Millisecond
	CASRetryMaxWait  = 200 * time.Millisecond

	// Sender dispatch worker pool
	SenderWorkerPoolSize = 16

	// Code shape
	VerificationCodeLength = 6

	// OTPCodeValidity bounds how long a provided-code adapter's locally
	// generated code remains acceptable, independent of the overall
	// session TTL.
	OTPCodeValidity = 5 * time.Minute
)
