package jwt

import (
	"testing"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 42, Username: "alice"}

	token, err := NewToken(user, "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseTokenRejects(t *testing.T) {
	user := &models.User{ID: 1, Username: "bob"}

	expired, err := NewToken(user, "secret", -time.Minute)
	require.NoError(t, err)
	valid, err := NewToken(user, "secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"expired", expired, "secret"},
		{"wrong secret", valid, "other"},
		{"garbage", "not.a.token", "secret"},
		{"empty", "", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
