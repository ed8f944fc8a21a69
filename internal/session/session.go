// Package session implements the session-side half of the storage
// engine's callback surface: schema addressing, the transaction
// journal, and the two monotonic timestamps that gate statement-cache
// and index validity. internal/catalog and internal/statement only see
// this package through the narrow SessionContext/Compiler interfaces
// they each declare.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/relaxdb/engine/internal/catalog"
	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/rowstore"
	"github.com/relaxdb/engine/internal/statement"
	"github.com/relaxdb/engine/internal/wal"
)

// Environment holds the per-database singletons every Session shares:
// the two change timestamps, the statement cache, and the logical log.
// It is created once at database open and reset once at close.
type Environment struct {
	GlobalChangeTS *atomic.Int64
	SchemaChangeTS *atomic.Int64
	Statements     *statement.Cache
	Log            *wal.LogicalLog
	Registry       catalog.Registry
}

func NewEnvironment(registry catalog.Registry, log *wal.LogicalLog) *Environment {
	return &Environment{
		GlobalChangeTS: atomic.NewInt64(0),
		SchemaChangeTS: atomic.NewInt64(0),
		Statements:     statement.NewCache(),
		Log:            log,
		Registry:       registry,
	}
}

// Reset clears every per-database singleton, used at database close so
// a reopened database starts from a clean slate.
func (e *Environment) Reset() {
	e.GlobalChangeTS.Store(0)
	e.SchemaChangeTS.Store(0)
	e.Statements.Reset()
}

// BumpSchemaChange records that a DDL statement committed, invalidating
// every statement compiled before now.
func (e *Environment) BumpSchemaChange() int64 {
	e.GlobalChangeTS.Inc()
	return e.SchemaChangeTS.Inc()
}

// BumpCommit records that a DML statement committed.
func (e *Environment) BumpCommit() int64 {
	return e.GlobalChangeTS.Inc()
}

type insertAction struct {
	table string
	row   *rowstore.Row
}

type deleteAction struct {
	table string
	row   *rowstore.Row
}

// CompileFunc is the actual SQL-to-plan compiler, supplied by whatever
// sits above the storage engine; the engine itself only knows how to
// invoke it and cache the result.
type CompileFunc func(sql string, resultProperties any) (*statement.Statement, error)

// Session is one client connection's state: current schema, pending
// transaction journal, and autocommit mode.
type Session struct {
	ID  uuid.UUID
	env *Environment

	mu                   sync.Mutex
	schema               string
	autocommit           bool
	referentialIntegrity bool
	journal              []any // insertAction | deleteAction

	Compile CompileFunc
}

func New(env *Environment, defaultSchema string, compile CompileFunc) *Session {
	return &Session{
		ID:                   uuid.New(),
		env:                  env,
		schema:               defaultSchema,
		autocommit:           true,
		referentialIntegrity: true,
		Compile:              compile,
	}
}

func (s *Session) CurrentSchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

func (s *Session) SetSchema(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = name
}

func (s *Session) SetAutocommit(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autocommit = v
}

func (s *Session) Autocommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autocommit
}

func (s *Session) SetReferentialIntegrity(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referentialIntegrity = v
}

func (s *Session) ReferentialIntegrity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.referentialIntegrity
}

func (s *Session) GlobalChangeTimestamp() int64 {
	return s.env.GlobalChangeTS.Load()
}

func (s *Session) SchemaChangeTimestamp() int64 {
	return s.env.SchemaChangeTS.Load()
}

// AddInsertAction and AddDeleteAction only journal the action and emit
// its log record; they never call back into Commit synchronously. Both
// run while the owning Table still holds its write lock (InsertRow/
// DeleteNoCheck call them internally), and Commit's ApplyDelete needs
// that same lock — calling it here would deadlock. The statement
// executor is responsible for calling Commit once the whole statement
// (and its Table calls) has returned, honoring autocommit itself.
func (s *Session) AddInsertAction(tableName string, row *rowstore.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, insertAction{table: tableName, row: row})

	if tbl, ok := s.env.Registry.Table(tableName); ok && tbl.Logged && s.env.Log != nil {
		if payload, err := rowstore.EncodeRow(row.Data, tbl.Schema.Specs()); err == nil {
			_, _ = s.env.Log.AppendInsert(tableName, payload)
		}
	}
}

func (s *Session) AddDeleteAction(tableName string, row *rowstore.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, deleteAction{table: tableName, row: row})

	if tbl, ok := s.env.Registry.Table(tableName); ok && tbl.Logged && s.env.Log != nil {
		if payload, err := rowstore.EncodeRow(row.Data, tbl.Schema.Specs()); err == nil {
			_, _ = s.env.Log.AppendDelete(tableName, payload)
		}
	}
}

// Commit applies every pending delete (unlinking the row from its
// indexes) and clears the journal. Pending inserts need no further
// action: their rows are already fully linked by Table.indexRow. The
// caller must not be holding any Table's lock when it calls Commit.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.journal {
		if d, ok := a.(deleteAction); ok {
			tbl, ok := s.env.Registry.Table(d.table)
			if !ok {
				return dberr.New(dberr.KindInvalidArgument, d.table, "table not found during commit")
			}
			if err := tbl.ApplyDelete(d.row); err != nil {
				return err
			}
		}
	}
	s.journal = nil
	s.env.BumpCommit()
	return nil
}

// Rollback undoes every pending insert (removing the row it added from
// every index) and un-marks every pending delete's cascadeDeleted flag,
// then clears the journal.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.journal) - 1; i >= 0; i-- {
		switch a := s.journal[i].(type) {
		case insertAction:
			tbl, ok := s.env.Registry.Table(a.table)
			if !ok {
				continue
			}
			_ = tbl.ApplyDelete(a.row)
		case deleteAction:
			a.row.CascadeDeleted = false
		}
	}
	s.journal = nil
	return nil
}

// CompileStatement implements statement.Compiler by delegating to the
// externally supplied compile callback, then filling in the bookkeeping
// the cache and Table layer expect.
func (s *Session) CompileStatement(sql string, resultProperties any) (*statement.Statement, error) {
	if s.Compile == nil {
		return nil, fmt.Errorf("session: no compiler configured")
	}
	return s.Compile(sql, resultProperties)
}

// PrepareAndCache is the session-facing entry point matching
// StatementCache.compile in the callback surface: it returns a valid,
// possibly-cached Statement for sql under the session's current schema.
// generatedColumnInfo carries the caller's request-specified
// generated-column metadata through to a freshly compiled Statement;
// pass nil when the caller has none.
func (s *Session) PrepareAndCache(sql string, resultProperties, generatedColumnInfo any) (*statement.Statement, error) {
	return s.env.Statements.Compile(s, sql, resultProperties, generatedColumnInfo)
}

func (s *Session) GetStatement(id int64) (*statement.Statement, error) {
	return s.env.Statements.GetStatement(s, id)
}
