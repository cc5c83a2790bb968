package database

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestColumnDefinition(t *testing.T) {
	tests := []struct {
		name     string
		column   Column
		inline   bool
		expected string
	}{
		{
			name:     "nullable text",
			column:   NewColumn("tags", Text),
			inline:   true,
			expected: `"tags" TEXT`,
		},
		{
			name:     "inline primary",
			column:   NewColumn("id", Integer).AsPrimary().NotNull(),
			inline:   true,
			expected: `"id" INTEGER PRIMARY KEY NOT NULL`,
		},
		{
			name:     "primary suppressed",
			column:   NewColumn("id", Integer).AsPrimary().NotNull(),
			inline:   false,
			expected: `"id" INTEGER NOT NULL`,
		},
		{
			name:     "default is quoted",
			column:   NewColumn("bio", Text).WithDefault("It's empty"),
			inline:   true,
			expected: `"bio" TEXT DEFAULT('It''s empty')`,
		},
		{
			name:     "unique not null",
			column:   NewColumn("emailHash", Text).NotNull().AsUnique(),
			inline:   true,
			expected: `"emailHash" TEXT NOT NULL UNIQUE`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.column.Definition(tt.inline); got != tt.expected {
				t.Errorf("Definition(%v) = %s, expected %s", tt.inline, got, tt.expected)
			}
		})
	}
}

func TestColumnBuildersDoNotMutate(t *testing.T) {
	base := NewColumn("id", Integer)
	_ = base.AsPrimary().NotNull().WithDefault("1")

	if base.IsPrimary() || !base.IsNullable() {
		t.Fatal("builder methods changed the original column")
	}
	if _, ok := base.Default(); ok {
		t.Fatal("builder methods set a default on the original column")
	}
}

func TestCreateTableSQLSinglePrimary(t *testing.T) {
	stmt, err := createTableSQL("posts", []Column{
		NewColumn("id", Integer).AsPrimary().NotNull(),
		NewColumn("content", Text).NotNull().WithDefault("[EMPTY POST]"),
	})
	if err != nil {
		t.Fatalf("createTableSQL returned error: %v", err)
	}
	expected := `CREATE TABLE "posts" ("id" INTEGER PRIMARY KEY NOT NULL, "content" TEXT NOT NULL DEFAULT('[EMPTY POST]'))`
	if diff := cmp.Diff(expected, stmt); diff != "" {
		t.Errorf("unexpected statement (-want +got):\n%s", diff)
	}
}

func TestCreateTableSQLCompositePrimary(t *testing.T) {
	stmt, err := createTableSQL("postreactions", []Column{
		NewColumn("reaction", Text).AsPrimary().NotNull(),
		NewColumn("byUserId", Integer).AsPrimary().NotNull().WithDefault("-1"),
		NewColumn("postId", Integer).NotNull(),
	})
	if err != nil {
		t.Fatalf("createTableSQL returned error: %v", err)
	}
	expected := `CREATE TABLE "postreactions" (` +
		`"reaction" TEXT NOT NULL, ` +
		`"byUserId" INTEGER NOT NULL DEFAULT('-1'), ` +
		`"postId" INTEGER NOT NULL, ` +
		`PRIMARY KEY("reaction", "byUserId"))`
	if diff := cmp.Diff(expected, stmt); diff != "" {
		t.Errorf("unexpected statement (-want +got):\n%s", diff)
	}
}

func TestCreateTableSQLValidation(t *testing.T) {
	if _, err := createTableSQL("posts", nil); !errors.Is(err, ErrNoColumns) {
		t.Errorf("expected ErrNoColumns, got %v", err)
	}
	if _, err := createTableSQL("posts; DROP", []Column{NewColumn("id", Integer)}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier for table name, got %v", err)
	}
	if _, err := createTableSQL("posts", []Column{NewColumn("bad name", Integer)}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier for column name, got %v", err)
	}
	if _, err := createTableSQL("posts", []Column{NewColumn("id", Integer), NewColumn("id", Text)}); err == nil {
		t.Error("expected an error for duplicate columns")
	}
	if _, err := createTableSQL("posts", []Column{NewColumn("id", Datatype(9))}); err == nil {
		t.Error("expected an error for an invalid datatype")
	}
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog(
		Table{Name: "b", Columns: []Column{NewColumn("id", Integer)}},
		Table{Name: "a", Columns: []Column{NewColumn("id", Integer), NewColumn("name", Text)}},
	)
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}

	var names []string
	for _, table := range catalog.Tables() {
		names = append(names, table.Name)
	}
	if diff := cmp.Diff([]string{"b", "a"}, names); diff != "" {
		t.Errorf("tables not in declaration order (-want +got):\n%s", diff)
	}

	if !catalog.HasTable("a") || catalog.HasTable("c") {
		t.Error("HasTable returned the wrong answer")
	}
	if !catalog.HasColumn("a", "name") || catalog.HasColumn("b", "name") {
		t.Error("HasColumn returned the wrong answer")
	}

	columns, ok := catalog.Columns("a")
	if !ok || len(columns) != 2 {
		t.Fatalf("Columns(a) = %v, %v", columns, ok)
	}
	columns[0] = NewColumn("mutated", Blob)
	again, _ := catalog.Columns("a")
	if again[0].Name() != "id" {
		t.Error("Columns returned a slice aliasing the catalog")
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(
		Table{Name: "a", Columns: []Column{NewColumn("id", Integer)}},
		Table{Name: "a", Columns: []Column{NewColumn("id", Integer)}},
	)
	if err == nil {
		t.Fatal("expected an error for a duplicate table")
	}
}
