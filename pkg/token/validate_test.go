package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
)

func TestValidate_RequiresSubject(t *testing.T) {
	now := time.Unix(1700000000, 0)

	for _, lifetime := range []bool{true, false} {
		verr := Validate(FromMap(map[string]any{"exp": float64(now.Unix() + 60)}), now, lifetime)
		require.NotNil(t, verr, "lifetime=%v", lifetime)
		assert.Equal(t, iderr.CodeMissingClaim, verr.Code)
	}
}

func TestValidate_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		exp      float64
		wantCode iderr.Code
	}{
		{"expired in the past", float64(now.Unix() - 1), iderr.CodeExpiredToken},
		{"expiring exactly now", float64(now.Unix()), iderr.CodeExpiredToken},
		{"expiring in the future", float64(now.Unix() + 1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := FromMap(map[string]any{"sub": "alice", "exp": tt.exp})
			verr := Validate(claims, now, true)
			if tt.wantCode == "" {
				assert.Nil(t, verr)
			} else {
				require.NotNil(t, verr)
				assert.Equal(t, tt.wantCode, verr.Code)
			}
		})
	}
}

func TestValidate_NotBefore(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("nbf in the future", func(t *testing.T) {
		claims := FromMap(map[string]any{"sub": "alice", "nbf": float64(now.Unix() + 30)})
		verr := Validate(claims, now, true)
		require.NotNil(t, verr)
		assert.Equal(t, iderr.CodeNotYetValid, verr.Code)
	})

	t.Run("nbf exactly now is valid", func(t *testing.T) {
		claims := FromMap(map[string]any{"sub": "alice", "nbf": float64(now.Unix())})
		assert.Nil(t, Validate(claims, now, true))
	})
}

func TestValidate_FarFutureTimeBounds(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("far-future exp is valid", func(t *testing.T) {
		claims := FromMap(map[string]any{"sub": "alice", "exp": float64(9999999999)})
		assert.Nil(t, Validate(claims, now, true))
	})

	t.Run("far-future nbf still rejects", func(t *testing.T) {
		claims := FromMap(map[string]any{"sub": "alice", "nbf": float64(9999999999)})
		verr := Validate(claims, now, true)
		require.NotNil(t, verr)
		assert.Equal(t, iderr.CodeNotYetValid, verr.Code)
	})
}

func TestValidate_LifetimeDisabledSkipsTimeBounds(t *testing.T) {
	now := time.Unix(1700000000, 0)
	claims := FromMap(map[string]any{
		"sub": "alice",
		"exp": float64(now.Unix() - 3600),
		"nbf": float64(now.Unix() + 3600),
	})

	assert.Nil(t, Validate(claims, now, false),
		"expired and not-yet-valid tokens pass when lifetime validation is off")
}

func TestValidate_NoTimeBoundsIsValid(t *testing.T) {
	claims := FromMap(map[string]any{"sub": "alice"})
	assert.Nil(t, Validate(claims, time.Unix(1700000000, 0), true))
}
