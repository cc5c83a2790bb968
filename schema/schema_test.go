package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCatalogTables(t *testing.T) {
	var names []string
	for _, table := range Catalog().Tables() {
		names = append(names, table.Name)
	}
	expected := []string{Posts, PostReactions, Users, Sessions, AuditEvents}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("unexpected tables (-want +got):\n%s", diff)
	}
}

func TestPostReactionsCompositeKey(t *testing.T) {
	columns, ok := Catalog().Columns(PostReactions)
	if !ok {
		t.Fatal("postreactions missing from catalog")
	}
	var primaries []string
	for _, col := range columns {
		if col.IsPrimary() {
			primaries = append(primaries, col.Name())
		}
	}
	if diff := cmp.Diff([]string{"reaction", "byUserId"}, primaries); diff != "" {
		t.Errorf("unexpected primary columns (-want +got):\n%s", diff)
	}
}

func TestSessionsColumns(t *testing.T) {
	for _, column := range []string{"id", "userId", "expires"} {
		if !Catalog().HasColumn(Sessions, column) {
			t.Errorf("sessions is missing column %s", column)
		}
	}
}
