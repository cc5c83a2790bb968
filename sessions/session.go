package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

const sessionIDBytes = 32

// Session is one row of the sessions table. Expires is the Unix time in
// seconds the session was issued; the session stays valid until Expires plus
// the manager's lifespan.
type Session struct {
	ID      string
	UserID  int64
	Expires int64
}

// ValidUntil returns the instant after which the session is stale.
func (s *Session) ValidUntil(lifespan time.Duration) time.Time {
	return time.Unix(s.Expires, 0).UTC().Add(lifespan)
}

// generateRandomID generates a cryptographically secure random string encoded in base64.
func generateRandomID(length int) (string, error) {
	if length <= 0 {
		length = 16
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var sessionColumns = []string{"id", "userId", "expires"}

func scanSession(row database.Row) (*Session, error) {
	id, ok := row.String(0)
	if !ok {
		return nil, fmt.Errorf("unexpected session id value %v", row[0])
	}
	userID, ok := row.Int64(1)
	if !ok {
		return nil, fmt.Errorf("unexpected session userId value %v", row[1])
	}
	expires, ok := row.Int64(2)
	if !ok {
		return nil, fmt.Errorf("unexpected session expires value %v", row[2])
	}
	return &Session{ID: id, UserID: userID, Expires: expires}, nil
}

// CreateSession stores a new session for userID stamped with the current time.
func (m *Manager) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	client, err := m.Client(ctx)
	if err != nil {
		return nil, err
	}

	id, err := generateRandomID(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	session := &Session{
		ID:      id,
		UserID:  userID,
		Expires: m.now().UTC().Unix(),
	}

	if _, err := client.Write(ctx, schema.Sessions,
		database.Set("id", session.ID),
		database.Set("userId", session.UserID),
		database.Set("expires", session.Expires),
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Info("Created session", "userID", userID)

	if auditor := m.getAuditor(); auditor != nil {
		if err := auditor.LogSessionCreated(ctx, userID, session.ID); err != nil {
			m.logger.Warn("Failed to record session creation in audit log", "error", err)
		}
	}
	return session, nil
}

// GetSession looks up a session by id. A stale session is deleted on sight
// and reported as ErrSessionExpired.
func (m *Manager) GetSession(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrSessionNotFound
	}
	client, err := m.Client(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.Sessions,
		Columns:    sessionColumns,
		MaxRows:    1,
		Conditions: []database.Condition{database.Eq("id", id)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	found, err := database.Collect(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrSessionNotFound
	}

	session, err := scanSession(found[0])
	if err != nil {
		return nil, err
	}
	if session.Expires < m.cutoff() {
		if _, err := client.Delete(ctx, schema.Sessions, database.Eq("id", id)); err != nil {
			m.logger.Warn("Failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}
	return session, nil
}

// SessionExists reports whether id names a session that has not gone stale.
// A blank id never exists.
func (m *Manager) SessionExists(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	client, err := m.Client(ctx)
	if err != nil {
		return false, err
	}

	rows, err := client.Read(ctx, database.ReadQuery{
		Table:   schema.Sessions,
		Columns: []string{"id"},
		MaxRows: 1,
		Conditions: []database.Condition{
			database.Eq("id", id),
			database.Ge("expires", m.cutoff()),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	found, err := database.Collect(rows)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return len(found) > 0, nil
}

// DeleteSession removes a single session. Deleting an unknown id returns
// ErrSessionNotFound.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrSessionNotFound
	}
	client, err := m.Client(ctx)
	if err != nil {
		return err
	}

	removed, err := client.Delete(ctx, schema.Sessions, database.Eq("id", id))
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return ErrSessionNotFound
	}
	m.logger.Info("Deleted session")

	if auditor := m.getAuditor(); auditor != nil {
		if err := auditor.LogSessionDeleted(ctx, id); err != nil {
			m.logger.Warn("Failed to record session deletion in audit log", "error", err)
		}
	}
	return nil
}

// DeleteSessionsForUser removes every session belonging to userID and
// returns how many were removed.
func (m *Manager) DeleteSessionsForUser(ctx context.Context, userID int64) (int64, error) {
	client, err := m.Client(ctx)
	if err != nil {
		return 0, err
	}
	removed, err := client.Delete(ctx, schema.Sessions, database.Eq("userId", userID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions for user %d: %w", userID, err)
	}
	m.logger.Info("Deleted sessions for user", "userID", userID, "removed", removed)
	return removed, nil
}
