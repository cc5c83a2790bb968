package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

const (
	// DefaultDriver is the cgo SQLite driver registered by mattn/go-sqlite3.
	DefaultDriver = "sqlite3"
	// DefaultPath is the store file used when none is configured. SQLite
	// creates it on first open.
	DefaultPath = "server.db"
)

// Options configures a Client.
type Options struct {
	// Catalog restricts table and column names to those it declares. When
	// nil, names are only checked to be plain identifiers.
	Catalog *Catalog
	Logger  *slog.Logger // Optional, defaults to slog.Default()
}

// Field is one column/value pair of an inserted row.
type Field struct {
	Column string
	Value  any
}

// Set is shorthand for building a Field.
func Set(column string, value any) Field {
	return Field{Column: column, Value: value}
}

// ReadQuery describes a streaming read.
type ReadQuery struct {
	Table      string
	Columns    []string
	MaxRows    int
	Conditions []Condition // joined with AND; empty means no WHERE clause
	Unique     bool        // SELECT DISTINCT
}

// Client owns a single connection to a SQLite store and serialises every
// statement over it.
type Client struct {
	db      *sqlx.DB
	catalog *Catalog
	logger  *slog.Logger

	// sem is a single-slot semaphore guarding the connection. A streaming
	// Rows holds the slot until it is closed.
	sem chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open connects to the store at path using the named database/sql driver and
// verifies the connection with a ping.
func Open(ctx context.Context, driverName, path string, opts Options) (*Client, error) {
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		db:      db,
		catalog: opts.Catalog,
		logger:  logger.With("component", "database", "path", path),
		sem:     make(chan struct{}, 1),
	}, nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.closed.Load() {
		c.release()
		return ErrClosed
	}
	return nil
}

func (c *Client) release() {
	<-c.sem
}

func (c *Client) checkTable(table string) error {
	if !validIdentifier(table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}
	if c.catalog != nil && !c.catalog.HasTable(table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

func (c *Client) checkColumns(table string, columns []string) error {
	for _, column := range columns {
		if !validIdentifier(column) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, column)
		}
		if c.catalog != nil && !c.catalog.HasColumn(table, column) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
		}
	}
	return nil
}

func (c *Client) checkConditions(table string, conds []Condition) error {
	for _, cond := range conds {
		if err := c.checkColumns(table, cond.columns); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates table with the given columns. It fails if the table
// already exists.
func (c *Client) CreateTable(ctx context.Context, table string, columns []Column) error {
	if err := c.checkTable(table); err != nil {
		return err
	}
	stmt, err := createTableSQL(table, columns)
	if err != nil {
		return err
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.logger.Debug("Creating table", "table", table, "sql", stmt)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return &StatementError{Op: "create table", Table: table, Err: err}
	}
	return nil
}

// TableExists reports whether the store's catalog contains a table with
// exactly this name. A missing table is not an error.
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	if !validIdentifier(table) {
		return false, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	var name string
	err := c.db.GetContext(ctx, &name, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StatementError{Op: "table lookup", Table: table, Err: err}
	}
	return name != "", nil
}

// Write inserts one row built from fields and returns the number of rows
// affected.
func (c *Client) Write(ctx context.Context, table string, fields ...Field) (int64, error) {
	result, err := c.insert(ctx, table, fields)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Insert is Write for tables keyed by an INTEGER PRIMARY KEY. It returns the
// rowid the store assigned to the new row.
func (c *Client) Insert(ctx context.Context, table string, fields ...Field) (int64, error) {
	result, err := c.insert(ctx, table, fields)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (c *Client) insert(ctx context.Context, table string, fields []Field) (sql.Result, error) {
	if len(fields) == 0 {
		return nil, ErrNoColumns
	}
	if err := c.checkTable(table); err != nil {
		return nil, err
	}
	columns := make([]string, len(fields))
	quoted := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		columns[i] = field.Column
		quoted[i] = quoteIdent(field.Column)
		placeholders[i] = "?"
		args[i] = field.Value
	}
	if err := c.checkColumns(table, columns); err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	result, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, &StatementError{Op: "insert", Table: table, Err: err}
	}
	return result, nil
}

// Read runs a SELECT and returns its rows as a lazy, forward-only sequence.
// The connection stays busy until the returned Rows is exhausted or closed.
// A MaxRows of zero or less yields an empty sequence without touching the
// store.
func (c *Client) Read(ctx context.Context, q ReadQuery) (*Rows, error) {
	if len(q.Columns) == 0 {
		return nil, ErrNoColumns
	}
	if err := c.checkTable(q.Table); err != nil {
		return nil, err
	}
	if err := c.checkColumns(q.Table, q.Columns); err != nil {
		return nil, err
	}
	if err := c.checkConditions(q.Table, q.Conditions); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if q.MaxRows <= 0 {
		return emptyRows(), nil
	}

	quoted := make([]string, len(q.Columns))
	for i, column := range q.Columns {
		quoted[i] = quoteIdent(column)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Unique {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(q.Table))

	var args []any
	where := And(q.Conditions...)
	if where.Expr != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where.Expr)
		args = append(args, where.Args...)
	}
	b.WriteString(" LIMIT ?")
	args = append(args, q.MaxRows)

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryxContext(ctx, b.String(), args...)
	if err != nil {
		c.release()
		return nil, &StatementError{Op: "select", Table: q.Table, Err: err}
	}
	return &Rows{client: c, rows: rows}, nil
}

// Delete removes the rows matching cond and returns how many were removed.
// An empty condition is rejected rather than clearing the table.
func (c *Client) Delete(ctx context.Context, table string, cond Condition) (int64, error) {
	if cond.Expr == "" {
		return 0, ErrEmptyCondition
	}
	if err := c.checkTable(table); err != nil {
		return 0, err
	}
	if err := c.checkConditions(table, []Condition{cond}); err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), cond.Expr)

	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.release()

	result, err := c.db.ExecContext(ctx, stmt, cond.Args...)
	if err != nil {
		return 0, &StatementError{Op: "delete", Table: table, Err: err}
	}
	return result.RowsAffected()
}

// TestConnection runs a trivial version query. Any failure, including a
// closed client, is reported as false rather than as an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	if err := c.acquire(ctx); err != nil {
		c.logger.Debug("Connection test could not acquire connection", "error", err)
		return false
	}
	defer c.release()

	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT sqlite_version()"); err != nil {
		c.logger.Warn("Connection test failed", "error", err)
		return false
	}
	return version != ""
}

// Close releases the connection. It is safe to call more than once; later
// calls return the result of the first. Outstanding Rows stop yielding and
// report ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.db.Close()
		c.logger.Info("Database closed")
	})
	return c.closeErr
}
