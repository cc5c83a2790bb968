package database

import "fmt"

// Table pairs a table name with its ordered column descriptors.
type Table struct {
	Name    string
	Columns []Column
}

// Catalog is a fixed, ordered set of table definitions. It is built once and
// never mutated afterwards, so it is safe to share between goroutines.
type Catalog struct {
	order  []string
	tables map[string][]Column
}

// NewCatalog validates the given tables and returns a catalog that preserves
// their declaration order.
func NewCatalog(tables ...Table) (*Catalog, error) {
	c := &Catalog{
		order:  make([]string, 0, len(tables)),
		tables: make(map[string][]Column, len(tables)),
	}
	for _, table := range tables {
		if _, exists := c.tables[table.Name]; exists {
			return nil, fmt.Errorf("duplicate table %s in catalog", table.Name)
		}
		// Rendering the statement runs every per-column check.
		if _, err := createTableSQL(table.Name, table.Columns); err != nil {
			return nil, fmt.Errorf("invalid table %s: %w", table.Name, err)
		}
		columns := make([]Column, len(table.Columns))
		copy(columns, table.Columns)
		c.order = append(c.order, table.Name)
		c.tables[table.Name] = columns
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on an invalid definition. It is
// intended for package-level catalogs declared at startup.
func MustCatalog(tables ...Table) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

// Tables returns a copy of every table in declaration order.
func (c *Catalog) Tables() []Table {
	tables := make([]Table, 0, len(c.order))
	for _, name := range c.order {
		columns, _ := c.Columns(name)
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	return tables
}

// Columns returns a copy of the named table's columns.
func (c *Catalog) Columns(table string) ([]Column, bool) {
	columns, ok := c.tables[table]
	if !ok {
		return nil, false
	}
	out := make([]Column, len(columns))
	copy(out, columns)
	return out, true
}

func (c *Catalog) HasTable(table string) bool {
	_, ok := c.tables[table]
	return ok
}

func (c *Catalog) HasColumn(table, column string) bool {
	for _, col := range c.tables[table] {
		if col.name == column {
			return true
		}
	}
	return false
}
