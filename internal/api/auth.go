package api

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// The session/identity provider is external to this core: it issues the
// token, we only extract the verified user identity from it.

const (
	tokenCookieKey = "token"

	userIdClaim   = "user-id"
	usernameClaim = "username"
	expClaim      = "exp"
)

type contextKey string

const sessionKey contextKey = "session"

type Session struct {
	UserId   string
	Username string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func UserSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// SignToken mints a session token for the given identity. Exported for the
// identity provider's use and for tests.
func SignToken(signingKey []byte, userId, username string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   userId,
		usernameClaim: username,
		expClaim:      time.Now().Add(ttl).Unix(),
	})

	return token.SignedString(signingKey)
}

func (s *ChatApp) extractSessionFromToken(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return Session{}, fmt.Errorf("invalid user id claim")
	}

	username, _ := claims[usernameClaim].(string)

	return Session{UserId: userId, Username: username}, nil
}
