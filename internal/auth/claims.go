package auth

import "github.com/golang-jwt/jwt/v5"

// HandleClaims is the payload embedded in a delegated sender adapter's
// opaque senderData: a signed, short-lived binding between a phone hash
// and the upstream provider's own verification handle. Subject carries
// the SHA-256 phone hash (auth.HashPhone): ValidateHandle rejects a handle
// presented for a different phone hash, while ParseHandle (used by
// TwilioVerifyAdapter.Check) does not check the subject.
type HandleClaims struct {
	jwt.RegisteredClaims
	VerificationSID string `json:"vsid"`
}
