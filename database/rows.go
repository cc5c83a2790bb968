package database

import (
	"iter"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Row holds one result row, with values in the order the columns were
// requested. Values are int64, float64, string, []byte or nil.
type Row []any

// Int64 returns the value at i as an int64.
func (r Row) Int64(i int) (int64, bool) {
	if i < 0 || i >= len(r) {
		return 0, false
	}
	switch v := r[i].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns the value at i as a string. BLOB values are converted.
func (r Row) String(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	switch v := r[i].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// IsNull reports whether the value at i is NULL.
func (r Row) IsNull(i int) bool {
	return i >= 0 && i < len(r) && r[i] == nil
}

// Rows is a forward-only, single-pass stream of query results. Rows are
// fetched from the store one at a time as Next is called. Once exhausted or
// closed it yields nothing further; reading again requires a new Read.
type Rows struct {
	client *Client
	rows   *sqlx.Rows
	row    Row
	err    error
	done   bool

	releaseOnce sync.Once
}

func emptyRows() *Rows {
	return &Rows{done: true}
}

// Next advances to the next row. It returns false when the rows are
// exhausted, an error occurred, or the client has been closed.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if r.client.closed.Load() {
		r.err = ErrClosed
		r.finish()
		return false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		r.finish()
		return false
	}
	values, err := r.rows.SliceScan()
	if err != nil {
		r.err = err
		r.finish()
		return false
	}
	r.row = Row(values)
	return true
}

// Row returns the current row. It is only valid after Next returned true.
func (r *Rows) Row() Row {
	return r.row
}

// Err returns the error, if any, that ended iteration.
func (r *Rows) Err() error {
	return r.err
}

// Close stops iteration early and hands the connection back to the client.
// It is safe to call more than once.
func (r *Rows) Close() error {
	r.finish()
	return nil
}

// All adapts the rows to a range-over-func sequence. Breaking out of the loop
// closes the rows. A terminal error is yielded once, with a nil Row.
func (r *Rows) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.Row(), nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *Rows) finish() {
	r.done = true
	r.row = nil
	r.releaseOnce.Do(func() {
		if r.rows != nil {
			r.rows.Close()
		}
		if r.client != nil {
			r.client.release()
		}
	})
}

// Collect drains rows into a slice and closes them.
func Collect(rows *Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		out = append(out, rows.Row())
	}
	return out, rows.Err()
}
