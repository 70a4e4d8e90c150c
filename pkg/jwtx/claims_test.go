package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/acctly/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "acctly-auth"

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "auth-service"},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("auth-service"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("shop-service"), jwtx.ErrIssuer)
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		exp     time.Time
		nbf     time.Time
		wantErr error
	}{
		{"valid", now.Add(time.Minute), now.Add(-time.Minute), nil},
		{"expired", now.Add(-time.Second), now.Add(-time.Minute), jwtx.ErrExpired},
		{"not yet valid", now.Add(time.Hour), now.Add(time.Minute), jwtx.ErrNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &jwtx.SessionClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(tt.exp),
					NotBefore: jwt.NewNumericDate(tt.nbf),
				},
			}
			err := c.ValidateExpiry(now)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewSessionClaims(t *testing.T) {
	now := time.Now().UTC()
	c := jwtx.NewSessionClaims("user-1", "user@example.com",
		[]string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA},
		jwtx.DefaultSessionTTL, exampleIssuer, now)

	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, exampleIssuer, c.Issuer)
	require.NotEmpty(t, c.ID)
	require.NotEmpty(t, c.SID)
	require.True(t, c.HasAMR(jwtx.AMRMFA))
	require.False(t, c.HasAMR(jwtx.AMREmail))
	require.WithinDuration(t, now.Add(jwtx.DefaultSessionTTL), c.ExpiresAt.Time, time.Second)
}
