package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RoundTrip(t *testing.T) {
	svc := NewService("test-secret", "frolf-raffle")

	token, err := svc.GenerateToken("oracle-1", ScopeFulfill, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "oracle-1", claims.Subject)
	assert.Equal(t, ScopeFulfill, claims.Scope)
}

func TestService_ValidateToken_Errors(t *testing.T) {
	svc := NewService("test-secret", "frolf-raffle")

	expired, err := svc.GenerateToken("oracle-1", ScopeFulfill, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewService("other-secret", "frolf-raffle").GenerateToken("oracle-1", ScopeFulfill, time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewService("test-secret", "someone-else").GenerateToken("oracle-1", ScopeFulfill, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "wrong key", token: otherKey, wantErr: ErrInvalidSignature},
		{name: "wrong issuer", token: otherIssuer, wantErr: ErrInvalidToken},
		{name: "garbage", token: "not-a-token", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Authorize(t *testing.T) {
	svc := NewService("test-secret", "")

	upkeep, err := svc.GenerateToken("keeper", ScopeUpkeep, time.Minute)
	require.NoError(t, err)

	_, err = svc.Authorize(upkeep, ScopeFulfill)
	assert.ErrorIs(t, err, ErrMissingScope)

	claims, err := svc.Authorize(upkeep, ScopeUpkeep)
	require.NoError(t, err)
	assert.Equal(t, "keeper", claims.Subject)
}
