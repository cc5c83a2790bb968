package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

// EventType represents the type of audit event
type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventSessionDeleted EventType = "session_deleted"
	EventSessionsSwept  EventType = "sessions_swept"
	EventLoginFailed    EventType = "login_failed"
	EventUserRegistered EventType = "user_registered"
)

var eventColumns = []string{"id", "eventType", "timestamp", "userId", "sessionFingerprint", "detail"}

// Event represents an audit log entry in the database
type Event struct {
	ID                 string
	EventType          EventType
	Timestamp          int64
	UserID             *int64 // Nullable for events without user context
	SessionFingerprint string
	Detail             string
}

// ClientSource hands out the shared database client. The session manager
// satisfies it, so the audit log shares the manager's lazily opened store.
type ClientSource interface {
	Client(ctx context.Context) (*database.Client, error)
}

// Logger records session and account events in the audit_events table
type Logger struct {
	source ClientSource
	now    func() time.Time
}

// NewLogger creates a new audit logger instance
func NewLogger(source ClientSource) *Logger {
	return &Logger{
		source: source,
		now:    time.Now,
	}
}

// sessionFingerprint creates a SHA-256 hash of a session ID so events can be
// correlated without storing the ID itself.
func sessionFingerprint(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(hash[:])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (l *Logger) insertEvent(ctx context.Context, event *Event) error {
	client, err := l.source.Client(ctx)
	if err != nil {
		return err
	}
	var userID any
	if event.UserID != nil {
		userID = *event.UserID
	}
	_, err = client.Write(ctx, schema.AuditEvents,
		database.Set("id", event.ID),
		database.Set("eventType", string(event.EventType)),
		database.Set("timestamp", event.Timestamp),
		database.Set("userId", userID),
		database.Set("sessionFingerprint", nullable(event.SessionFingerprint)),
		database.Set("detail", nullable(event.Detail)),
	)
	return err
}

func (l *Logger) newEvent(eventType EventType) *Event {
	return &Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: l.now().UTC().Unix(),
	}
}

// LogSessionCreated logs a login that produced a new session
func (l *Logger) LogSessionCreated(ctx context.Context, userID int64, sessionID string) error {
	event := l.newEvent(EventSessionCreated)
	event.UserID = &userID
	event.SessionFingerprint = sessionFingerprint(sessionID)
	return l.insertEvent(ctx, event)
}

// LogSessionDeleted logs an explicit logout
func (l *Logger) LogSessionDeleted(ctx context.Context, sessionID string) error {
	event := l.newEvent(EventSessionDeleted)
	event.SessionFingerprint = sessionFingerprint(sessionID)
	return l.insertEvent(ctx, event)
}

// LogSessionsSwept logs one run of the expired-session sweep
func (l *Logger) LogSessionsSwept(ctx context.Context, removed int64) error {
	event := l.newEvent(EventSessionsSwept)
	event.Detail = strconv.FormatInt(removed, 10)
	return l.insertEvent(ctx, event)
}

// LogLoginFailed logs a rejected login attempt
func (l *Logger) LogLoginFailed(ctx context.Context, reason string) error {
	event := l.newEvent(EventLoginFailed)
	event.Detail = reason
	return l.insertEvent(ctx, event)
}

// LogUserRegistered logs a new account
func (l *Logger) LogUserRegistered(ctx context.Context, userID int64) error {
	event := l.newEvent(EventUserRegistered)
	event.UserID = &userID
	return l.insertEvent(ctx, event)
}

func (l *Logger) readEvents(ctx context.Context, limit int, conds ...database.Condition) ([]Event, error) {
	client, err := l.source.Client(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:      schema.AuditEvents,
		Columns:    eventColumns,
		MaxRows:    limit,
		Conditions: conds,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows.Row())
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(row database.Row) (Event, error) {
	var event Event
	var ok bool
	if event.ID, ok = row.String(0); !ok {
		return event, fmt.Errorf("audit event has no id: %v", row)
	}
	eventType, _ := row.String(1)
	event.EventType = EventType(eventType)
	event.Timestamp, _ = row.Int64(2)
	if userID, ok := row.Int64(3); ok {
		event.UserID = &userID
	}
	event.SessionFingerprint, _ = row.String(4)
	event.Detail, _ = row.String(5)
	return event, nil
}

// EventsByUser retrieves audit events for a specific user
func (l *Logger) EventsByUser(ctx context.Context, userID int64, limit int) ([]Event, error) {
	return l.readEvents(ctx, limit, database.Eq("userId", userID))
}

// EventsByType retrieves audit events of a specific type
func (l *Logger) EventsByType(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	return l.readEvents(ctx, limit, database.Eq("eventType", string(eventType)))
}

// DeleteOldEvents deletes audit events older than the specified duration
func (l *Logger) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	client, err := l.source.Client(ctx)
	if err != nil {
		return 0, err
	}
	threshold := l.now().UTC().Add(-olderThan).Unix()
	return client.Delete(ctx, schema.AuditEvents, database.Lt("timestamp", threshold))
}
