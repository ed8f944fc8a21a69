// Package statement implements a per-database prepared-statement cache:
// SQL text is compiled once per schema and interned by id, reused across
// sessions, and transparently recompiled when the schema it was
// compiled under has since changed.
package statement

// Statement is a compiled unit of SQL, opaque to the cache beyond the
// bookkeeping fields it needs to decide validity and recompile scope.
type Statement struct {
	ID                   int64
	SQLText              string
	SchemaName           string
	CompileTimestamp     int64
	ResultProperties     any
	GeneratedColumnInfo  any
	Executable           any
}

// IsValidAt reports whether s can still be executed without recompiling,
// given the database's current schema-change timestamp.
func (s *Statement) IsValidAt(schemaChangeTimestamp int64) bool {
	return s.CompileTimestamp >= schemaChangeTimestamp
}
