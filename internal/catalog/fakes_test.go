package catalog

import "github.com/relaxdb/engine/internal/rowstore"

// fakeRegistry is an in-memory catalog.Registry used across catalog
// package tests, standing in for internal/engine.Database.
type fakeRegistry struct {
	tables map[string]*Table
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tables: make(map[string]*Table)}
}

func (r *fakeRegistry) add(t *Table) {
	t.Registry = r
	r.tables[t.Name] = t
}

func (r *fakeRegistry) Table(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

func (r *fakeRegistry) AllTables() []*Table {
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// fakeSession is a minimal SessionContext for tests: no real journal
// semantics beyond recording what was added, always referential.
type fakeSession struct {
	schema       string
	inserts      []*rowstore.Row
	deletes      []*rowstore.Row
	refIntegrity bool
	globalTS     int64
}

func newFakeSession() *fakeSession {
	return &fakeSession{schema: "PUBLIC", refIntegrity: true}
}

func (s *fakeSession) CurrentSchema() string   { return s.schema }
func (s *fakeSession) SetSchema(name string)   { s.schema = name }
func (s *fakeSession) GlobalChangeTimestamp() int64 { return s.globalTS }
func (s *fakeSession) ReferentialIntegrity() bool   { return s.refIntegrity }

func (s *fakeSession) AddInsertAction(tableName string, row *rowstore.Row) {
	s.inserts = append(s.inserts, row)
}

func (s *fakeSession) AddDeleteAction(tableName string, row *rowstore.Row) {
	s.deletes = append(s.deletes, row)
}
