package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-access-secret-key-for-testing-purposes"
	testIssuer = "carenest-booking-test"
)

func signRaw(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestIssueAndVerify(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	userID := uuid.New()
	roles := []string{"guardian"}

	token, err := service.Issue(userID, roles)
	require.NoError(t, err)

	claims, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestVerify_Expired(t *testing.T) {
	service := NewService(testSecret, testIssuer, -time.Minute)

	token, err := service.Issue(uuid.New(), []string{"guardian"})
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Rejections(t *testing.T) {
	service := NewService(testSecret, testIssuer, time.Hour)
	userID := uuid.New()
	expiry := jwt.NewNumericDate(time.Now().Add(time.Hour))

	good, err := service.Issue(userID, []string{"admin"})
	require.NoError(t, err)

	foreign, err := NewService(testSecret, "someone-else", time.Hour).Issue(userID, []string{"admin"})
	require.NoError(t, err)

	forged, err := NewService("another-secret", testIssuer, time.Hour).Issue(userID, []string{"admin"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: userID, TokenType: AccessToken})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	refresh := signRaw(t, Claims{
		UserID:           userID,
		TokenType:        RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, ExpiresAt: expiry},
	}, testSecret)

	noExpiry := signRaw(t, Claims{
		UserID:           userID,
		TokenType:        AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer},
	}, testSecret)

	anonymous := signRaw(t, Claims{
		TokenType:        AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, ExpiresAt: expiry},
	}, testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"wrong issuer", foreign},
		{"wrong secret", forged},
		{"alg none", unsigned},
		{"tampered", good[:len(good)-2] + "xx"},
		{"refresh token", refresh},
		{"no expiry", noExpiry},
		{"no user", anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Verify(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}
