package auth

import (
	"context"

	"github.com/tomyedwab/sibilus/sessions"
)

// CheckSession verifies token and confirms its session is still live. It
// returns the session id.
func CheckSession(ctx context.Context, deps Deps, token string) (string, error) {
	claims, err := parseToken(deps, token)
	if err != nil {
		return "", err
	}
	exists, err := deps.Sessions.SessionExists(ctx, claims.SessionID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", sessions.ErrSessionNotFound
	}
	return claims.SessionID, nil
}
