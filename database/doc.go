// Package database provides a small schema-driven client over a single SQLite
// connection.
//
// Tables are described by Column descriptors collected in a Catalog. The
// Client creates those tables, inserts and deletes rows, and streams query
// results through Rows. Values always travel as bound arguments, and table
// and column names are checked against the Catalog before any statement is
// built.
//
// A Client owns exactly one connection. Every operation takes that
// connection for its duration; an open Rows keeps it until the rows are
// exhausted or closed, so callers must close a Rows before issuing another
// statement from the same goroutine.
package database
