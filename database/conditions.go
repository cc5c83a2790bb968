package database

import "strings"

// Condition is a boolean SQL fragment with its bound arguments. Values never
// appear in Expr; they are passed to the driver through Args.
type Condition struct {
	Expr string
	Args []any

	// columns referenced by helper-built conditions, checked against the
	// catalog before the statement runs.
	columns []string
}

// Where builds a condition from a raw fragment using ? placeholders. The
// fragment is trusted; only args carry caller data.
func Where(expr string, args ...any) Condition {
	return Condition{Expr: expr, Args: args}
}

func compare(column, op string, value any) Condition {
	return Condition{
		Expr:    quoteIdent(column) + " " + op + " ?",
		Args:    []any{value},
		columns: []string{column},
	}
}

func Eq(column string, value any) Condition { return compare(column, "=", value) }
func Ne(column string, value any) Condition { return compare(column, "<>", value) }
func Lt(column string, value any) Condition { return compare(column, "<", value) }
func Le(column string, value any) Condition { return compare(column, "<=", value) }
func Gt(column string, value any) Condition { return compare(column, ">", value) }
func Ge(column string, value any) Condition { return compare(column, ">=", value) }

// IsNull matches rows where column is NULL.
func IsNull(column string) Condition {
	return Condition{Expr: quoteIdent(column) + " IS NULL", columns: []string{column}}
}

// And joins conditions into a single conjunction. Empty conditions are
// skipped.
func And(conds ...Condition) Condition {
	var out Condition
	var exprs []string
	for _, cond := range conds {
		if cond.Expr == "" {
			continue
		}
		exprs = append(exprs, "("+cond.Expr+")")
		out.Args = append(out.Args, cond.Args...)
		out.columns = append(out.columns, cond.columns...)
	}
	out.Expr = strings.Join(exprs, " AND ")
	return out
}
