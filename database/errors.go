package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var (
	ErrClosed            = errors.New("database client is closed")
	ErrNoColumns         = errors.New("no columns given")
	ErrEmptyCondition    = errors.New("empty condition")
	ErrUnknownTable      = errors.New("unknown table")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// StatementError is returned when the store rejects a statement. It unwraps
// to the driver error.
type StatementError struct {
	Op    string
	Table string
	Err   error
}

func (e *StatementError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation reports whether err was caused by a UNIQUE, PRIMARY
// KEY, NOT NULL or similar constraint failing.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	// modernc reports extended result codes; the low byte is the primary code.
	var moderncErr *sqlite.Error
	if errors.As(err, &moderncErr) {
		return moderncErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
	}
	return false
}
