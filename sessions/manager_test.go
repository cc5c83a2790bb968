package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestManager creates a manager backed by a fresh store in a temp dir.
func setupTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	config := Config{
		Path:            filepath.Join(t.TempDir(), "sessions.db"),
		SweepInterval:   time.Hour,
		SessionLifespan: time.Hour,
		Logger:          testLogger(),
		Now:             func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&config)
	}
	m := NewManager(config)
	t.Cleanup(func() { m.Stop() })
	return m
}

func insertSession(t *testing.T, m *Manager, id string, userID int64, expires time.Time) {
	t.Helper()
	ctx := context.Background()
	client, err := m.Client(ctx)
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	if _, err := client.Write(ctx, schema.Sessions,
		database.Set("id", id),
		database.Set("userId", userID),
		database.Set("expires", expires.Unix()),
	); err != nil {
		t.Fatalf("Failed to insert session %s: %v", id, err)
	}
}

func sessionIDs(t *testing.T, m *Manager) []string {
	t.Helper()
	ctx := context.Background()
	client, err := m.Client(ctx)
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	rows, err := client.Read(ctx, database.ReadQuery{
		Table:   schema.Sessions,
		Columns: []string{"id"},
		MaxRows: 100,
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var ids []string
	for row, err := range rows.All() {
		if err != nil {
			t.Fatalf("Iteration failed: %v", err)
		}
		id, _ := row.String(0)
		ids = append(ids, id)
	}
	return ids
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(Config{})
	defer m.Stop()

	if m.driver != database.DefaultDriver {
		t.Errorf("Expected driver %s, got %s", database.DefaultDriver, m.driver)
	}
	if m.path != database.DefaultPath {
		t.Errorf("Expected path %s, got %s", database.DefaultPath, m.path)
	}
	if m.sweepInterval != DefaultSweepInterval {
		t.Errorf("Expected sweep interval %v, got %v", DefaultSweepInterval, m.sweepInterval)
	}
	if m.Lifespan() != DefaultSessionLifespan {
		t.Errorf("Expected lifespan %v, got %v", DefaultSessionLifespan, m.Lifespan())
	}
	if m.State() != StateUninitialized {
		t.Errorf("Expected state %v, got %v", StateUninitialized, m.State())
	}
}

func TestInitCreatesCatalogTables(t *testing.T) {
	m := setupTestManager(t, nil)
	ctx := context.Background()

	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("Expected state ready, got %v", m.State())
	}

	client, _ := m.Client(ctx)
	for _, table := range schema.Catalog().Tables() {
		exists, err := client.TableExists(ctx, table.Name)
		if err != nil {
			t.Fatalf("TableExists(%s) failed: %v", table.Name, err)
		}
		if !exists {
			t.Errorf("Expected table %s to exist", table.Name)
		}
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, err := database.Open(ctx, database.DefaultDriver, filepath.Join(t.TempDir(), "schema.db"), database.Options{
		Catalog: schema.Catalog(),
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer client.Close()

	created, err := EnsureSchema(ctx, client, schema.Catalog())
	if err != nil {
		t.Fatalf("First reconciliation failed: %v", err)
	}
	expected := []string{schema.Posts, schema.PostReactions, schema.Users, schema.Sessions, schema.AuditEvents}
	if diff := cmp.Diff(expected, created); diff != "" {
		t.Errorf("Unexpected created tables (-want +got):\n%s", diff)
	}

	created, err = EnsureSchema(ctx, client, schema.Catalog())
	if err != nil {
		t.Fatalf("Second reconciliation failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("Expected no tables created on second run, got %v", created)
	}
}

func TestReopenExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	first := NewManager(Config{Path: path, Logger: testLogger()})
	if err := first.Init(ctx); err != nil {
		t.Fatalf("First Init failed: %v", err)
	}
	if err := first.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	second := NewManager(Config{Path: path, Logger: testLogger()})
	defer second.Stop()
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Second Init failed on an existing store: %v", err)
	}
}

func TestConcurrentClientCallsShareOneClient(t *testing.T) {
	m := setupTestManager(t, nil)
	ctx := context.Background()

	const callers = 16
	clients := make([]*database.Client, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], errs[i] = m.Client(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errs[i])
		}
		if clients[i] != clients[0] {
			t.Fatalf("Caller %d received a different client", i)
		}
	}
}

func TestInitFailureIsTerminal(t *testing.T) {
	m := setupTestManager(t, func(c *Config) {
		c.Path = filepath.Join(t.TempDir(), "missing", "dir", "store.db")
	})
	ctx := context.Background()

	_, err := m.Client(ctx)
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("Expected ErrInitFailed, got %v", err)
	}
	if m.State() != StateFailed {
		t.Errorf("Expected state failed, got %v", m.State())
	}

	_, again := m.Client(ctx)
	if again != err {
		t.Errorf("Expected the same error on retry, got %v", again)
	}
	if _, err := m.Sweep(ctx); !errors.Is(err, ErrInitFailed) {
		t.Errorf("Expected Sweep to report ErrInitFailed, got %v", err)
	}
}

func TestCancelledFirstCallDoesNotFailManager(t *testing.T) {
	m := setupTestManager(t, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Client(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if m.State() != StateUninitialized {
		t.Errorf("Expected state uninitialized after a cancelled call, got %v", m.State())
	}

	client, err := m.Client(context.Background())
	if err != nil {
		t.Fatalf("Client with a live context failed: %v", err)
	}
	if client == nil || m.State() != StateReady {
		t.Errorf("Expected a ready client, got %v in state %v", client, m.State())
	}
}

func TestExpiredDeadlineDoesNotFailManager(t *testing.T) {
	m := setupTestManager(t, nil)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if err := m.Init(expired); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init with a live context failed: %v", err)
	}
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	m := setupTestManager(t, nil)
	ctx := context.Background()

	insertSession(t, m, "A", 1, testNow.Add(-2*time.Hour))
	insertSession(t, m, "B", 2, testNow.Add(-10*time.Minute))
	insertSession(t, m, "C", 3, testNow.Add(-3*time.Hour))

	removed, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 sessions removed, got %d", removed)
	}
	if diff := cmp.Diff([]string{"B"}, sessionIDs(t, m)); diff != "" {
		t.Errorf("Unexpected remaining sessions (-want +got):\n%s", diff)
	}

	removed, err = m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected second sweep to remove nothing, got %d", removed)
	}
	if m.State() != StateReady {
		t.Errorf("Expected state ready after sweep, got %v", m.State())
	}
}

func TestSweepBoundary(t *testing.T) {
	m := setupTestManager(t, nil)
	ctx := context.Background()

	// Exactly at the lifespan boundary the session is still valid.
	insertSession(t, m, "edge", 1, testNow.Add(-time.Hour))
	insertSession(t, m, "past", 1, testNow.Add(-time.Hour-time.Second))

	removed, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}
	if diff := cmp.Diff([]string{"edge"}, sessionIDs(t, m)); diff != "" {
		t.Errorf("Unexpected remaining sessions (-want +got):\n%s", diff)
	}
}

func TestSweepLoopRunsOnInterval(t *testing.T) {
	m := setupTestManager(t, func(c *Config) {
		c.SweepInterval = 10 * time.Millisecond
	})
	insertSession(t, m, "stale", 1, testNow.Add(-48*time.Hour))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sessionIDs(t, m)) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Expected the sweep loop to remove the stale session")
}

func TestStopIsIdempotent(t *testing.T) {
	m := setupTestManager(t, nil)
	ctx := context.Background()

	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	client, _ := m.Client(ctx)

	if err := m.Stop(); err != nil {
		t.Fatalf("First Stop failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if m.State() != StateStopped {
		t.Errorf("Expected state stopped, got %v", m.State())
	}
	if _, err := m.Client(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after Stop, got %v", err)
	}
	if _, err := m.Sweep(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected Sweep to fail with ErrStopped, got %v", err)
	}
	if client.TestConnection(ctx) {
		t.Error("Expected the store to be closed after Stop")
	}
}

func TestStopBeforeInit(t *testing.T) {
	m := NewManager(Config{Path: filepath.Join(t.TempDir(), "never.db"), Logger: testLogger()})
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, err := m.Client(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateUninitialized: "uninitialized",
		StateInitializing:  "initializing",
		StateReady:         "ready",
		StateSweeping:      "sweeping",
		StateShuttingDown:  "shutting_down",
		StateStopped:       "stopped",
		StateFailed:        "failed",
		State(99):          "unknown",
	}
	for state, expected := range tests {
		if got := state.String(); got != expected {
			t.Errorf("State(%d).String() = %s, expected %s", int(state), got, expected)
		}
	}
}
