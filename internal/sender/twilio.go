package sender

import (
	"context"
	"fmt"
	"strings"
	"time"

	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/domain"
)

// verifyClient is a narrow, consumer-defined interface for the Twilio
// Verify operations this adapter needs. *twilio.RestClient's VerifyV2
// field satisfies it.
type verifyClient interface {
	CreateVerification(serviceSid string, params *verifyv2.CreateVerificationParams) (*verifyv2.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *verifyv2.CreateVerificationCheckParams) (*verifyv2.VerifyV2VerificationCheck, error)
}

// handleMinter and handleParser are the narrow slices of auth.HandleMinter
// and auth.HandleValidator this adapter depends on.
type handleMinter interface {
	MintHandle(phoneHash, verificationSID string, expiresAt time.Time) (string, error)
}

type handleParser interface {
	ParseHandle(tokenString string) (*auth.HandleClaims, error)
}

// TwilioVerifyAdapter is a delegated adapter: Twilio Verify generates and
// checks the code, and the adapter's senderData is never the code itself
// but a signed handle binding the phone hash to the upstream verification
// SID. A corrupted or foreign handle is rejected locally before any
// round-trip to Twilio.
type TwilioVerifyAdapter struct {
	client     verifyClient
	serviceSID string
	minter     handleMinter
	validator  handleParser
	clock      domain.Clock
	sessTTL    time.Duration
}

// TwilioVerifyAdapterConfig holds the dependencies for a TwilioVerifyAdapter.
type TwilioVerifyAdapterConfig struct {
	Client     verifyClient
	ServiceSID string
	Minter     handleMinter
	Validator  handleParser
	Clock      domain.Clock
	SessionTTL time.Duration
}

// NewTwilioVerifyAdapter creates a TwilioVerifyAdapter from cfg.
func NewTwilioVerifyAdapter(cfg TwilioVerifyAdapterConfig) *TwilioVerifyAdapter {
	return &TwilioVerifyAdapter{
		client:     cfg.Client,
		serviceSID: cfg.ServiceSID,
		minter:     cfg.Minter,
		validator:  cfg.Validator,
		clock:      cfg.Clock,
		sessTTL:    cfg.SessionTTL,
	}
}

// Name implements Adapter.
func (a *TwilioVerifyAdapter) Name() string { return "twilio-verify" }

// SessionTTL implements Adapter.
func (a *TwilioVerifyAdapter) SessionTTL() time.Duration { return a.sessTTL }

// Supports implements Adapter: Twilio Verify serves both SMS and voice,
// for any language preference or client type.
func (a *TwilioVerifyAdapter) Supports(_ string, transport Transport, _ []string, _ string) bool {
	return transport == TransportSMS || transport == TransportVoice
}

func (a *TwilioVerifyAdapter) channel(transport Transport) string {
	if transport == TransportVoice {
		return "call"
	}
	return "sms"
}

// preferredLocale picks the first language range as the Twilio Verify
// locale hint, dropping any quality-value suffix (e.g. "fr;q=0.8" -> "fr").
// Twilio falls back to its own default when the locale is empty or
// unsupported, so an empty or malformed languageRanges is never an error
// here.
func preferredLocale(languageRanges []string) string {
	if len(languageRanges) == 0 {
		return ""
	}
	locale := strings.TrimSpace(languageRanges[0])
	if idx := strings.IndexByte(locale, ';'); idx >= 0 {
		locale = locale[:idx]
	}
	return strings.TrimSpace(locale)
}

// Send implements Adapter: starts a Twilio Verify verification and returns
// a signed handle binding the phone hash to the returned verification SID.
// clientType isn't consulted by Twilio Verify today; it's accepted for
// interface conformance.
func (a *TwilioVerifyAdapter) Send(ctx context.Context, phoneNumber string, transport Transport, languageRanges []string, clientType string) ([]byte, error) {
	_, span := tracer.Start(ctx, "sender.twilio.send")
	defer span.End()

	if !a.Supports(phoneNumber, transport, languageRanges, clientType) {
		return nil, fmt.Errorf("twilio-verify: send: %w", ErrUnsupportedRoute)
	}

	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(phoneNumber)
	params.SetChannel(a.channel(transport))
	if locale := preferredLocale(languageRanges); locale != "" {
		params.SetLocale(locale)
	}

	resp, err := a.client.CreateVerification(a.serviceSID, params)
	if err != nil {
		return nil, fmt.Errorf("twilio-verify: start verification: %w", ErrUnavailable)
	}
	if resp.Sid == nil {
		return nil, fmt.Errorf("twilio-verify: start verification: %w", ErrUnavailable)
	}

	phoneHash := auth.HashPhone(phoneNumber)
	expiresAt := a.clock.Now().Add(a.sessTTL)
	handle, err := a.minter.MintHandle(phoneHash, *resp.Sid, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("twilio-verify: mint handle: %w", err)
	}

	return []byte(handle), nil
}

// Check implements Adapter: validates the handle's signature and expiry,
// then asks Twilio to check the candidate code against the bound
// verification SID.
func (a *TwilioVerifyAdapter) Check(ctx context.Context, storedPayload []byte, candidateCode string) error {
	_, span := tracer.Start(ctx, "sender.twilio.check")
	defer span.End()

	claims, err := a.validator.ParseHandle(string(storedPayload))
	if err != nil {
		return fmt.Errorf("twilio-verify: check: %w", ErrIncorrectCode)
	}

	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetVerificationSid(claims.VerificationSID)
	params.SetCode(candidateCode)

	resp, err := a.client.CreateVerificationCheck(a.serviceSID, params)
	if err != nil {
		return fmt.Errorf("twilio-verify: check verification: %w", ErrUnavailable)
	}
	if resp.Status == nil || *resp.Status != "approved" {
		return ErrIncorrectCode
	}
	return nil
}

var _ Adapter = (*TwilioVerifyAdapter)(nil)
