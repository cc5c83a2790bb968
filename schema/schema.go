// Package schema declares the tables of the sibilus store. The table and
// column layout here is the on-disk contract the page handlers depend on.
package schema

import (
	"github.com/tomyedwab/sibilus/database"
)

const (
	Posts         = "posts"
	PostReactions = "postreactions"
	Users         = "users"
	Sessions      = "sessions"
	AuditEvents   = "audit_events"
)

var catalog = database.MustCatalog(
	database.Table{Name: Posts, Columns: []database.Column{
		database.NewColumn("id", database.Integer).AsPrimary().NotNull(),
		database.NewColumn("content", database.Text).NotNull().WithDefault("[EMPTY POST]"),
		database.NewColumn("authorId", database.Integer).NotNull().WithDefault("-1"),
		database.NewColumn("createdAt", database.Integer).NotNull().WithDefault("0"),
		database.NewColumn("tags", database.Text),
	}},
	database.Table{Name: PostReactions, Columns: []database.Column{
		database.NewColumn("reaction", database.Text).AsPrimary().NotNull(),
		database.NewColumn("byUserId", database.Integer).AsPrimary().NotNull().WithDefault("-1"),
		database.NewColumn("postId", database.Integer).NotNull(),
	}},
	database.Table{Name: Users, Columns: []database.Column{
		database.NewColumn("id", database.Integer).AsPrimary().NotNull(),
		database.NewColumn("emailHash", database.Text).NotNull().AsUnique(),
		database.NewColumn("passwordHash", database.Text).NotNull(),
		database.NewColumn("username", database.Text).NotNull(),
		database.NewColumn("displayname", database.Text).NotNull(),
		database.NewColumn("bio", database.Text).WithDefault("No information given."),
		database.NewColumn("createdAt", database.Integer).NotNull().WithDefault("0"),
	}},
	// expires holds the Unix time (seconds) the session was issued; a session
	// is stale once expires + lifespan has passed.
	database.Table{Name: Sessions, Columns: []database.Column{
		database.NewColumn("id", database.Text).AsPrimary().NotNull(),
		database.NewColumn("userId", database.Integer).NotNull(),
		database.NewColumn("expires", database.Integer).NotNull(),
	}},
	database.Table{Name: AuditEvents, Columns: []database.Column{
		database.NewColumn("id", database.Text).AsPrimary().NotNull(),
		database.NewColumn("eventType", database.Text).NotNull(),
		database.NewColumn("timestamp", database.Integer).NotNull(),
		database.NewColumn("userId", database.Integer),
		database.NewColumn("sessionFingerprint", database.Text),
		database.NewColumn("detail", database.Text),
	}},
)

// Catalog returns the store's table catalog. It is shared and read-only.
func Catalog() *database.Catalog {
	return catalog
}
