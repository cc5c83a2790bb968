package database

import (
	"fmt"
	"regexp"
	"strings"
)

// Datatype is the declared storage class of a column.
type Datatype int

const (
	Integer Datatype = iota
	Real
	Text
	Blob
)

func (d Datatype) String() string {
	switch d {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	default:
		return fmt.Sprintf("Datatype(%d)", int(d))
	}
}

func (d Datatype) valid() bool {
	return d >= Integer && d <= Blob
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// Column describes a single table column. Columns are values: the builder
// methods return modified copies and never change the receiver.
type Column struct {
	name       string
	datatype   Datatype
	def        string
	hasDefault bool
	primary    bool
	nullable   bool
	unique     bool
}

// NewColumn returns a nullable, non-primary column with no default.
func NewColumn(name string, datatype Datatype) Column {
	return Column{
		name:     name,
		datatype: datatype,
		nullable: true,
	}
}

// AsPrimary marks the column as (part of) the table's primary key.
func (c Column) AsPrimary() Column {
	c.primary = true
	return c
}

// NotNull forbids NULL values in the column.
func (c Column) NotNull() Column {
	c.nullable = false
	return c
}

// AsUnique adds a UNIQUE constraint to the column.
func (c Column) AsUnique() Column {
	c.unique = true
	return c
}

// WithDefault sets the literal used when an insert omits the column.
func (c Column) WithDefault(value string) Column {
	c.def = value
	c.hasDefault = true
	return c
}

func (c Column) Name() string       { return c.name }
func (c Column) Datatype() Datatype { return c.datatype }
func (c Column) IsPrimary() bool    { return c.primary }
func (c Column) IsNullable() bool   { return c.nullable }
func (c Column) IsUnique() bool     { return c.unique }

// Default returns the column's default literal, if one was set.
func (c Column) Default() (string, bool) {
	return c.def, c.hasDefault
}

// Definition renders the column-definition fragment used by CREATE TABLE.
// The PRIMARY KEY marker is only emitted for primary columns and only when
// inlinePrimary is set; composite keys are declared separately.
func (c Column) Definition(inlinePrimary bool) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.name))
	b.WriteString(" ")
	b.WriteString(c.datatype.String())
	if c.primary && inlinePrimary {
		b.WriteString(" PRIMARY KEY")
	}
	if !c.nullable {
		b.WriteString(" NOT NULL")
	}
	if c.unique {
		b.WriteString(" UNIQUE")
	}
	if c.hasDefault {
		b.WriteString(" DEFAULT('")
		b.WriteString(strings.ReplaceAll(c.def, "'", "''"))
		b.WriteString("')")
	}
	return b.String()
}

func (c Column) String() string {
	return c.Definition(true)
}

func (c Column) validate() error {
	if !validIdentifier(c.name) {
		return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c.name)
	}
	if !c.datatype.valid() {
		return fmt.Errorf("column %s has invalid datatype %s", c.name, c.datatype)
	}
	return nil
}

// createTableSQL builds the CREATE TABLE statement for the given columns.
// When more than one column is primary, the key is rendered as a trailing
// PRIMARY KEY(...) clause listing the primary columns in declaration order.
func createTableSQL(table string, columns []Column) (string, error) {
	if len(columns) == 0 {
		return "", ErrNoColumns
	}
	if !validIdentifier(table) {
		return "", fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	seen := make(map[string]bool, len(columns))
	var primaries []string
	for _, col := range columns {
		if err := col.validate(); err != nil {
			return "", err
		}
		if seen[col.name] {
			return "", fmt.Errorf("duplicate column %s in table %s", col.name, table)
		}
		seen[col.name] = true
		if col.primary {
			primaries = append(primaries, quoteIdent(col.name))
		}
	}

	composite := len(primaries) > 1
	definitions := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		definitions = append(definitions, col.Definition(!composite))
	}
	if composite {
		definitions = append(definitions, "PRIMARY KEY("+strings.Join(primaries, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(definitions, ", ")), nil
}
