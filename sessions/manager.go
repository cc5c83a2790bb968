package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

const (
	DefaultSweepInterval   = 5 * time.Minute
	DefaultSessionLifespan = 24 * time.Hour
)

var (
	ErrInitFailed      = errors.New("store initialization failed")
	ErrStopped         = errors.New("session manager stopped")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Auditor receives session lifecycle events. Implementations must not call
// back into a Rows-holding path of the manager.
type Auditor interface {
	LogSessionCreated(ctx context.Context, userID int64, sessionID string) error
	LogSessionDeleted(ctx context.Context, sessionID string) error
	LogSessionsSwept(ctx context.Context, removed int64) error
}

// Config holds configuration options for the Manager.
type Config struct {
	Driver          string            // Optional, defaults to database.DefaultDriver
	Path            string            // Optional, defaults to database.DefaultPath
	Catalog         *database.Catalog // Optional, defaults to schema.Catalog()
	SweepInterval   time.Duration     // Optional, defaults to 5m
	SessionLifespan time.Duration     // Optional, defaults to 24h
	Logger          *slog.Logger      // Optional, defaults to slog.Default()
	Now             func() time.Time  // Optional, defaults to time.Now
}

// Manager owns the store client. It opens the store on first use, makes sure
// every catalog table exists, and then purges stale session rows on a fixed
// interval until Stop is called.
type Manager struct {
	mu       sync.Mutex
	state    State
	client   *database.Client
	initDone bool
	initErr  error
	sweeping int

	driver        string
	path          string
	catalog       *database.Catalog
	sweepInterval time.Duration
	lifespan      time.Duration
	logger        *slog.Logger
	dbLogger      *slog.Logger
	now           func() time.Time

	auditMu sync.RWMutex
	auditor Auditor

	// ctx is cancelled by Stop; it bounds the sweep loop and any sweep in
	// flight.
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	closeErr error
}

// NewManager creates a Manager. No I/O happens until the first call that
// needs the store.
func NewManager(config Config) *Manager {
	driver := config.Driver
	if driver == "" {
		driver = database.DefaultDriver
	}
	path := config.Path
	if path == "" {
		path = database.DefaultPath
	}
	catalog := config.Catalog
	if catalog == nil {
		catalog = schema.Catalog()
	}
	interval := config.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	lifespan := config.SessionLifespan
	if lifespan <= 0 {
		lifespan = DefaultSessionLifespan
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateUninitialized,
		driver:        driver,
		path:          path,
		catalog:       catalog,
		sweepInterval: interval,
		lifespan:      lifespan,
		logger:        logger.With("component", "SessionManager"),
		dbLogger:      logger,
		now:           now,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetAuditor registers an optional audit sink. It may be called at any time.
func (m *Manager) SetAuditor(auditor Auditor) {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	m.auditor = auditor
}

func (m *Manager) getAuditor() Auditor {
	m.auditMu.RLock()
	defer m.auditMu.RUnlock()
	return m.auditor
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Lifespan is how long a session stays valid after its expires stamp.
func (m *Manager) Lifespan() time.Duration {
	return m.lifespan
}

// Init opens the store if it has not been opened yet. It is equivalent to
// calling Client and discarding the result.
func (m *Manager) Init(ctx context.Context) error {
	_, err := m.Client(ctx)
	return err
}

// Client returns the shared store client, initializing it on the first call.
// Concurrent first callers block until one of them has finished; exactly one
// client is ever created. A failed initialization is terminal and every later
// call returns the same error. A caller whose context is already done gets
// ctx.Err() and leaves the manager uninitialized.
func (m *Manager) Client(ctx context.Context) (*database.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateShuttingDown || m.state == StateStopped {
		return nil, ErrStopped
	}
	if m.initDone {
		return m.client, m.initErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.state = StateInitializing
	m.logger.Info("Initializing store", "driver", m.driver, "path", m.path)

	// The store is shared by every caller, so one caller giving up must not
	// fail it for the rest of the process.
	client, err := m.initialize(context.WithoutCancel(ctx))
	m.initDone = true
	if err != nil {
		m.state = StateFailed
		m.initErr = fmt.Errorf("%w: %w", ErrInitFailed, err)
		m.logger.Error("Store initialization failed", "error", err)
		return nil, m.initErr
	}

	m.client = client
	m.state = StateReady
	m.wg.Add(1)
	go m.sweepLoop()

	m.logger.Info("Store ready", "sweepInterval", m.sweepInterval, "sessionLifespan", m.lifespan)
	return client, nil
}

func (m *Manager) initialize(ctx context.Context) (*database.Client, error) {
	client, err := database.Open(ctx, m.driver, m.path, database.Options{
		Catalog: m.catalog,
		Logger:  m.dbLogger,
	})
	if err != nil {
		return nil, err
	}

	if !client.TestConnection(ctx) {
		client.Close()
		return nil, errors.New("connection test failed")
	}

	created, err := EnsureSchema(ctx, client, m.catalog)
	if err != nil {
		client.Close()
		return nil, err
	}
	if len(created) > 0 {
		m.logger.Info("Created missing tables", "tables", created)
	}
	return client, nil
}

// EnsureSchema creates every catalog table that does not exist yet and
// returns the names of the tables it created. Reconciliation is not atomic:
// a failure part way through leaves the tables created so far in place.
func EnsureSchema(ctx context.Context, client *database.Client, catalog *database.Catalog) ([]string, error) {
	var created []string
	for _, table := range catalog.Tables() {
		exists, err := client.TableExists(ctx, table.Name)
		if err != nil {
			return created, fmt.Errorf("failed to check table %s: %w", table.Name, err)
		}
		if exists {
			continue
		}
		if err := client.CreateTable(ctx, table.Name, table.Columns); err != nil {
			return created, fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
		created = append(created, table.Name)
	}
	return created, nil
}

// sweepLoop runs Sweep on every tick until the manager is stopped.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	m.logger.Info("Sweep loop started.")

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Sweep loop stopping.")
			return
		case <-ticker.C:
			if _, err := m.Sweep(m.ctx); err != nil {
				if m.ctx.Err() != nil {
					return
				}
				// The next tick tries again.
				m.logger.Error("Session sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes every session whose expires stamp plus the session lifespan
// lies in the past, and returns how many rows were removed.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	client, err := m.Client(ctx)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	if m.state == StateShuttingDown || m.state == StateStopped {
		m.mu.Unlock()
		return 0, ErrStopped
	}
	m.sweeping++
	m.state = StateSweeping
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.sweeping--
		if m.sweeping == 0 && m.state == StateSweeping {
			m.state = StateReady
		}
		m.mu.Unlock()
	}()

	cutoff := m.cutoff()
	removed, err := client.Delete(ctx, schema.Sessions, database.Lt("expires", cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	m.logger.Info("Swept expired sessions", "removed", removed, "cutoff", cutoff)

	if auditor := m.getAuditor(); auditor != nil {
		if err := auditor.LogSessionsSwept(ctx, removed); err != nil {
			m.logger.Warn("Failed to record sweep in audit log", "error", err)
		}
	}
	return removed, nil
}

// cutoff is the oldest expires stamp that is still valid, in Unix seconds.
func (m *Manager) cutoff() int64 {
	return m.now().UTC().Add(-m.lifespan).Unix()
}

// Stop halts the sweep loop, waits for it to exit and closes the store.
// It is safe to call more than once and from any goroutine.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping SessionManager...")
		m.mu.Lock()
		m.state = StateShuttingDown
		client := m.client
		m.mu.Unlock()

		m.cancel()
		m.wg.Wait()

		if client != nil {
			m.closeErr = client.Close()
		}

		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		m.logger.Info("SessionManager stopped.")
	})
	return m.closeErr
}
