package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignToken(t *testing.T) {
	key := []byte("test-signing-key")
	app := &ChatApp{signingKey: key}

	t.Run("round trip", func(t *testing.T) {
		token, err := SignToken(key, "buyer-1", "buyer", time.Hour)
		assert.NoError(t, err, "expected no error minting token")

		session, err := app.extractSessionFromToken(token)
		assert.NoError(t, err, "expected no error extracting session")
		assert.Equal(t, "buyer-1", session.UserId)
		assert.Equal(t, "buyer", session.Username)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := SignToken(key, "buyer-1", "buyer", -time.Minute)
		assert.NoError(t, err)

		_, err = app.extractSessionFromToken(token)
		assert.Error(t, err, "expected an expired token to be rejected")
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		token, err := SignToken([]byte("some-other-key"), "buyer-1", "buyer", time.Hour)
		assert.NoError(t, err)

		_, err = app.extractSessionFromToken(token)
		assert.Error(t, err, "expected a token signed with another key to be rejected")
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := app.extractSessionFromToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestUserSession(t *testing.T) {
	ctx := WithSession(context.Background(), Session{UserId: "buyer-1", Username: "buyer"})

	session, ok := UserSession(ctx)
	assert.True(t, ok, "expected a session on the context")
	assert.Equal(t, "buyer-1", session.UserId)

	_, ok = UserSession(context.Background())
	assert.False(t, ok, "expected no session on a bare context")
}
