package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/phone-verify-service/internal/auth"
	"github.com/aelexs/phone-verify-service/internal/domain/domaintest"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestMintHandle(t *testing.T) {
	key := generateTestKey(t)
	keyID := "test-key-001"
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := domaintest.NewFakeClock(start)

	minter := auth.NewHandleMinter(auth.HandleMinterConfig{
		KeyStore: auth.NewStaticKeyStore(key, keyID),
		Issuer:   "phone-verify-service",
		Clock:    clock,
	})

	phoneHash := auth.HashPhone("+14155552671")

	t.Run("produces valid signed JWT with expected claims", func(t *testing.T) {
		expiresAt := start.Add(10 * time.Minute)
		signed, err := minter.MintHandle(phoneHash, "VE123", expiresAt)
		require.NoError(t, err)
		assert.NotEmpty(t, signed)

		var claims auth.HandleClaims
		token, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithTimeFunc(clock.Now))
		require.NoError(t, err)
		assert.True(t, token.Valid)

		assert.Equal(t, phoneHash, claims.Subject)
		assert.Equal(t, "phone-verify-service", claims.Issuer)
		assert.Equal(t, "VE123", claims.VerificationSID)
		assert.Equal(t, start.Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())

		assert.Equal(t, keyID, token.Header["kid"])
		assert.Equal(t, "RS256", token.Header["alg"])
	})

	t.Run("token rejected with wrong key", func(t *testing.T) {
		signed, err := minter.MintHandle(phoneHash, "VE123", start.Add(10*time.Minute))
		require.NoError(t, err)

		otherKey := generateTestKey(t)
		_, err = jwt.Parse(signed, func(token *jwt.Token) (any, error) {
			return &otherKey.PublicKey, nil
		}, jwt.WithTimeFunc(clock.Now))
		assert.Error(t, err)
	})
}
