package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

func TestGenerateAndValidateToken(t *testing.T) {
	token, exp, err := GenerateToken("ops@example.com", RoleAdmin, "deposit_monitor", testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ValidateToken(token, testSecret, "deposit_monitor")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.True(t, claims.IsAdmin())
}

func TestValidateToken_Rejects(t *testing.T) {
	valid, _, err := GenerateToken("svc", "viewer", "deposit_monitor", testSecret, time.Hour)
	require.NoError(t, err)
	expired, _, err := GenerateToken("svc", RoleAdmin, "deposit_monitor", testSecret, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
		issuer string
	}{
		{"wrong secret", valid, "other-secret", ""},
		{"wrong issuer", valid, testSecret, "someone-else"},
		{"expired", expired, testSecret, ""},
		{"garbage", "not.a.jwt", testSecret, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, tt.secret, tt.issuer)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestClaims_IsAdmin(t *testing.T) {
	assert.True(t, (&Claims{Role: RoleSuperAdmin}).IsAdmin())
	assert.False(t, (&Claims{Role: "viewer"}).IsAdmin())
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	_, _, err := GenerateToken("svc", RoleAdmin, "", "", time.Hour)
	assert.Error(t, err)
}
