package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tomyedwab/sibilus/audit"
	"github.com/tomyedwab/sibilus/sessions"
)

var ErrInvalidToken = errors.New("invalid session token")

// Deps bundles what the login flow needs.
type Deps struct {
	Sessions  *sessions.Manager
	Audit     *audit.Logger // Optional
	SecretKey []byte
	Logger    *slog.Logger     // Optional, defaults to slog.Default()
	Now       func() time.Time // Optional, defaults to time.Now
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default().With("component", "auth")
	}
	return d.Logger.With("component", "auth")
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
