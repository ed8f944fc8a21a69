package statement

import (
	"sync"

	"github.com/relaxdb/engine/internal/dberr"
)

// Compiler is the slice of session behavior the cache needs to produce
// and re-produce a Statement: schema addressing, the actual SQL
// compilation callback, and the database's global change timestamp.
// internal/session.Session implements this.
type Compiler interface {
	CurrentSchema() string
	SetSchema(name string)
	CompileStatement(sql string, resultProperties any) (*Statement, error)
	GlobalChangeTimestamp() int64
	SchemaChangeTimestamp() int64
}

// Cache is the per-database compiled-statement registry. It has no
// capacity limit and no LRU eviction: a statement stays resident until
// schema change invalidates it and a subsequent use fails to recompile,
// or the whole cache is Reset.
type Cache struct {
	mu sync.Mutex

	bySchema      map[string]map[string]int64
	idToSQL       map[int64]string
	idToStatement map[int64]*Statement
	nextID        int64
}

func NewCache() *Cache {
	return &Cache{
		bySchema:      make(map[string]map[string]int64),
		idToSQL:       make(map[int64]string),
		idToStatement: make(map[int64]*Statement),
		nextID:        1,
	}
}

// Compile returns a valid Statement for sql under the session's current
// schema, reusing a cached compile when one exists and is still valid,
// else compiling fresh and registering the result. generatedColumnInfo,
// when non-nil, is the caller's request-specified generated-column
// metadata (e.g. which columns an INSERT should report back after
// identity/default generation) and is attached to the freshly compiled
// Statement before it is returned; a cache hit already carries whatever
// metadata its original compile attached and generatedColumnInfo is
// ignored for it, matching how re-preparing the same SQL text under an
// unrelated request does not change what a live cached plan reports.
func (c *Cache) Compile(session Compiler, sql string, resultProperties, generatedColumnInfo any) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	schema := session.CurrentSchema()
	if bySQL, ok := c.bySchema[schema]; ok {
		if id, ok := bySQL[sql]; ok {
			if stmt, ok := c.idToStatement[id]; ok && stmt.IsValidAt(session.SchemaChangeTimestamp()) {
				return stmt, nil
			}
		}
	}

	// The lock stays held across CompileStatement itself, matching the
	// original's synchronized compile(Session, Result): releasing it
	// here would let two concurrent misses for the same (schema, sql)
	// both compile and both register under distinct ids, orphaning the
	// loser in idToStatement with no bySchema entry ever pointing at it.
	stmt, err := session.CompileStatement(sql, resultProperties)
	if err != nil {
		return nil, err
	}
	stmt.SchemaName = schema
	stmt.GeneratedColumnInfo = generatedColumnInfo
	c.registerStatementLocked(-1, stmt, session.GlobalChangeTimestamp())
	return stmt, nil
}

// GetStatement returns the statement registered under id, transparently
// recompiling it under its original schema if the schema has changed
// since it was compiled. A recompile failure frees the entry and
// returns dberr.ErrStatementNotFound.
func (c *Cache) GetStatement(session Compiler, id int64) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, ok := c.idToStatement[id]
	sql, sqlOK := c.idToSQL[id]
	if !ok || !sqlOK {
		return nil, dberr.ErrStatementNotFound
	}

	if stmt.IsValidAt(session.SchemaChangeTimestamp()) {
		return stmt, nil
	}

	origSchema := session.CurrentSchema()
	session.SetSchema(stmt.SchemaName)
	defer session.SetSchema(origSchema)

	genColInfo := stmt.GeneratedColumnInfo
	props := stmt.ResultProperties

	recompiled, err := session.CompileStatement(sql, props)
	if err != nil {
		c.freeStatement(id)
		return nil, dberr.ErrStatementNotFound
	}
	recompiled.SchemaName = stmt.SchemaName
	recompiled.GeneratedColumnInfo = genColInfo
	c.registerStatementLocked(id, recompiled, session.GlobalChangeTimestamp())
	return recompiled, nil
}

// registerStatementLocked assigns id (or a fresh one when id < 0),
// interns stmt under its schema/SQL pair, and stamps its compile
// timestamp. Callers must already hold c.mu.
func (c *Cache) registerStatementLocked(id int64, stmt *Statement, timestamp int64) int64 {
	if id < 0 {
		id = c.nextID
		c.nextID++
	}
	bySQL, ok := c.bySchema[stmt.SchemaName]
	if !ok {
		bySQL = make(map[string]int64)
		c.bySchema[stmt.SchemaName] = bySQL
	}
	bySQL[stmt.SQLText] = id
	c.idToSQL[id] = stmt.SQLText

	stmt.ID = id
	stmt.CompileTimestamp = timestamp
	c.idToStatement[id] = stmt
	return id
}

// RegisterStatement interns stmt under id (or a freshly assigned id when
// id < 0), stamping its compile timestamp from session's current global
// change timestamp. Calling it twice with the same id is idempotent.
func (c *Cache) RegisterStatement(session Compiler, id int64, stmt *Statement) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerStatementLocked(id, stmt, session.GlobalChangeTimestamp())
}

// FreeStatement removes id from every index. id == -1 is a no-op.
func (c *Cache) FreeStatement(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freeStatement(id)
}

func (c *Cache) freeStatement(id int64) {
	if id < 0 {
		return
	}
	stmt, ok := c.idToStatement[id]
	if !ok {
		return
	}
	if bySQL, ok := c.bySchema[stmt.SchemaName]; ok {
		delete(bySQL, stmt.SQLText)
	}
	delete(c.idToStatement, id)
	delete(c.idToSQL, id)
}

// Reset discards every cached statement, used at database close/reopen.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySchema = make(map[string]map[string]int64)
	c.idToSQL = make(map[int64]string)
	c.idToStatement = make(map[int64]*Statement)
	c.nextID = 1
}

// Len reports the number of currently resident statements, for tests
// and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idToStatement)
}
