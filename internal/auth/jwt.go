package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// ErrTokenExpired is returned when a validly signed handle has expired.
// Callers can use errors.Is to check for this condition without importing
// the JWT library directly.
var ErrTokenExpired = jwt.ErrTokenExpired

// HandleValidator validates signed delegated-adapter handles.
type HandleValidator struct {
	keyStore KeyStore
	issuer   string
	clock    domain.Clock
}

// HandleValidatorConfig holds configuration for creating a HandleValidator.
type HandleValidatorConfig struct {
	KeyStore KeyStore
	Issuer   string
	Clock    domain.Clock
}

// NewHandleValidator creates a new HandleValidator.
func NewHandleValidator(cfg HandleValidatorConfig) *HandleValidator {
	return &HandleValidator{keyStore: cfg.KeyStore, issuer: cfg.Issuer, clock: cfg.Clock}
}

// ValidateHandle parses and fully validates a signed handle, including
// that phoneHash matches the token's bound subject.
func (v *HandleValidator) ValidateHandle(tokenString, phoneHash string) (*HandleClaims, error) {
	return v.parse(tokenString, jwt.WithSubject(phoneHash))
}

// ParseHandle validates signature, issuer, method and expiry but does not
// check the bound subject, for call sites (e.g. a Check invocation) that
// don't have the phone number at hand. Integrity still rests on the RS256
// signature; this only drops the additional phone-binding check.
func (v *HandleValidator) ParseHandle(tokenString string) (*HandleClaims, error) {
	return v.parse(tokenString)
}

func (v *HandleValidator) parse(tokenString string, extra ...jwt.ParserOption) (*HandleClaims, error) {
	var claims HandleClaims

	opts := append([]jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}, extra...)

	_, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid sender handle: %w", err)
	}

	if claims.VerificationSID == "" {
		return nil, fmt.Errorf("missing verification SID claim: %w", domain.ErrSenderIllegalArgument)
	}

	return &claims, nil
}

func (v *HandleValidator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("missing or invalid kid in token header")
	}

	return v.keyStore.PublicKey(kid)
}
