package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomyedwab/sibilus/users"
	"github.com/tomyedwab/sibilus/users/util"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login checks the credentials, opens a session and returns a signed token
// that is valid for as long as the session is.
func Login(ctx context.Context, deps Deps, req LoginRequest) (*LoginResponse, error) {
	logger := deps.logger()

	client, err := deps.Sessions.Client(ctx)
	if err != nil {
		return nil, err
	}

	userID, err := users.Authenticate(ctx, client, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) && deps.Audit != nil {
			if auditErr := deps.Audit.LogLoginFailed(ctx, "invalid credentials"); auditErr != nil {
				logger.Warn("Failed to record failed login in audit log", "error", auditErr)
			}
		}
		logger.Info("Login failed", "error", err)
		return nil, err
	}

	session, err := deps.Sessions.CreateSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	expiresAt := session.ValidUntil(deps.Sessions.Lifespan())
	token, err := util.SignSessionToken(util.SessionClaims{
		SessionID: session.ID,
		UserID:    userID,
		IssuedAt:  deps.now().UTC().Unix(),
		Expiry:    expiresAt.Unix(),
	}, deps.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	logger.Info("Login succeeded", "userID", userID)
	return &LoginResponse{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: expiresAt,
	}, nil
}
