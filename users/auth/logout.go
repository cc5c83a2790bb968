package auth

import (
	"context"
	"fmt"

	"github.com/tomyedwab/sibilus/users/util"
)

func parseToken(deps Deps, token string) (*util.SessionClaims, error) {
	claims, err := util.ParseSessionToken(token, deps.SecretKey, deps.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Logout ends the session named by token.
func Logout(ctx context.Context, deps Deps, token string) error {
	claims, err := parseToken(deps, token)
	if err != nil {
		return err
	}
	if err := deps.Sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		return err
	}
	deps.logger().Info("Logged out", "userID", claims.UserID)
	return nil
}
