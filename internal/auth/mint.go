package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// HandleMinter signs the opaque upstream handle a delegated sender adapter
// persists as senderData. Binding the handle to a phone hash and expiry in
// a signed token means a corrupted or foreign payload is rejected before
// any upstream round-trip is attempted.
type HandleMinter struct {
	keyStore KeyStore
	issuer   string
	clock    domain.Clock
}

// HandleMinterConfig holds configuration for creating a HandleMinter.
type HandleMinterConfig struct {
	KeyStore KeyStore
	Issuer   string
	Clock    domain.Clock
}

// NewHandleMinter creates a new HandleMinter.
func NewHandleMinter(cfg HandleMinterConfig) *HandleMinter {
	return &HandleMinter{keyStore: cfg.KeyStore, issuer: cfg.Issuer, clock: cfg.Clock}
}

// MintHandle signs a HandleClaims binding phoneHash to the upstream
// verificationSID, valid until expiresAt.
func (m *HandleMinter) MintHandle(phoneHash, verificationSID string, expiresAt time.Time) (string, error) {
	privateKey, keyID, err := m.keyStore.SigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	claims := HandleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phoneHash,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(m.clock.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		VerificationSID: verificationSID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("sign handle: %w", err)
	}
	return signed, nil
}
