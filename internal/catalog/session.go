package catalog

import "github.com/relaxdb/engine/internal/rowstore"

// SessionContext is the slice of session state Table needs to complete
// an insert/update/delete: schema addressing, transaction-journal
// hooks, and the global change timestamp. internal/session.Session
// implements this.
type SessionContext interface {
	CurrentSchema() string
	SetSchema(name string)

	AddInsertAction(tableName string, row *rowstore.Row)
	AddDeleteAction(tableName string, row *rowstore.Row)

	GlobalChangeTimestamp() int64

	// ReferentialIntegrity reports whether foreign-key checks and
	// trigger firing are active for this session; DDL replay and some
	// bulk-load paths turn it off. NOT NULL, CHECK and length limits are
	// enforced either way.
	ReferentialIntegrity() bool
}
