// Package engine wires the storage, catalog, statement-cache, and
// session layers into one database handle.
package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"

	"github.com/relaxdb/engine/internal/bufferpool"
	"github.com/relaxdb/engine/internal/catalog"
	"github.com/relaxdb/engine/internal/config"
	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/rowstore"
	"github.com/relaxdb/engine/internal/session"
	"github.com/relaxdb/engine/internal/statement"
	"github.com/relaxdb/engine/internal/storage"
	"github.com/relaxdb/engine/internal/wal"
)

var ErrDatabaseClosed = errors.New("relaxdb: database is closed")

// Database is the top-level handle a process opens once: it owns the
// shared storage manager, buffer pool, table-space manager, and
// statement cache, and hands out sessions and tables.
type Database struct {
	cfg config.Config

	sm    *storage.StorageManager
	pool  *bufferpool.GlobalPool
	space *storage.GlobalDataSpaceManager
	wal   *wal.Manager
	log   *wal.LogicalLog

	env *session.Environment

	mu     sync.RWMutex
	tables map[string]*catalog.Table
	closed bool
}

var _ catalog.Registry = (*Database)(nil)

// Open creates or reopens a database rooted at cfg.DataDir, reloading
// every persisted table meta file.
func Open(cfg config.Config) (*Database, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	sm := storage.NewStorageManager()
	pool := bufferpool.NewGlobalPool(sm, cfg.BufferPool.CapacityPages)

	spaceFS := storage.LocalFileSet{Dir: cfg.DataDir, Base: "relaxdb"}
	space := storage.NewGlobalDataSpaceManager(sm, spaceFS, cfg.Allocator.FreeIndexCapacity)

	walDir := filepath.Join(cfg.DataDir, "wal")
	physWAL, err := wal.Open(walDir)
	if err != nil {
		return nil, err
	}
	if err := physWAL.Recover(storage.NewWALWriter(sm)); err != nil {
		return nil, err
	}
	logicalWAL, err := wal.OpenLogicalLog(walDir)
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg:    cfg,
		sm:     sm,
		pool:   pool,
		space:  space,
		wal:    physWAL,
		log:    logicalWAL,
		tables: make(map[string]*catalog.Table),
	}
	db.env = session.NewEnvironment(db, logicalWAL)

	if err := db.loadTables(); err != nil {
		return nil, err
	}

	slog.Info("database opened", "data_dir", cfg.DataDir, "tables", len(db.tables))
	return db, nil
}

func (db *Database) tableDir() string { return filepath.Join(db.cfg.DataDir, "tables") }

func (db *Database) tableMetaPath(name string) string {
	return filepath.Join(db.tableDir(), name+".meta.json")
}

func (db *Database) tableFileSet(name string) storage.FileSet {
	return storage.LocalFileSet{Dir: db.tableDir(), Base: name}
}

func (db *Database) loadTables() error {
	entries, err := os.ReadDir(db.tableDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".meta.json"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		tableName := name[:len(name)-len(suffix)]
		if _, err := db.openTable(tableName); err != nil {
			slog.Warn("reopen table failed", "table", tableName, "err", err)
		}
	}
	return nil
}

// CreateTable defines a new logged, cached table and persists its meta.
func (db *Database) CreateTable(name string, schema *catalog.Schema, indexDefs []catalog.IndexDef, identityColumn int) (*catalog.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if _, exists := db.tables[name]; exists {
		return nil, dberr.ErrTableExists
	}

	store := db.newCachedStore(name, schema, len(indexDefs))

	t, err := catalog.NewTable(name, schema, store, indexDefs)
	if err != nil {
		return nil, err
	}
	t.IdentityColumn = identityColumn
	t.Registry = db

	db.tables[name] = t

	meta := t.ToMeta(name)
	if err := db.writeTableMeta(&meta); err != nil {
		delete(db.tables, name)
		return nil, err
	}
	db.env.BumpSchemaChange()
	return t, nil
}

func (db *Database) newCachedStore(name string, schema *catalog.Schema, numIndex int) rowstore.Store {
	fs := db.tableFileSet(name)
	view := db.pool.View(fs)

	alloc := storage.NewTableSpaceAllocator(db.space, storage.TableSpaceAllocatorConfig{
		SpaceID:            hashSpaceID(name),
		Scale:              int64(db.cfg.Allocator.Scale),
		MainBlockSize:      int64(db.cfg.Allocator.MainBlockSize),
		FixedBlockSizeUnit: int64(db.cfg.Allocator.FixedBlockSizeUnit),
		Capacity:           db.cfg.Allocator.FreeIndexCapacity,
	})

	return rowstore.NewCachedStore(alloc, view, int64(db.cfg.Allocator.Scale), schema.Specs(), numIndex)
}

func hashSpaceID(name string) int32 {
	var h int32 = 5381
	for _, c := range name {
		h = h*33 + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

func (db *Database) openTable(name string) (*catalog.Table, error) {
	meta, err := db.readTableMeta(name)
	if err != nil {
		return nil, err
	}

	cols := make([]catalog.Column, len(meta.Columns))
	for i, c := range meta.Columns {
		cols[i] = catalog.Column{Name: c.Name, Type: rowstore.ColumnType(c.Type), MaxLength: c.MaxLength, NotNull: c.NotNull}
	}
	schema := catalog.NewSchema(cols)

	indexDefs := make([]catalog.IndexDef, len(meta.Indexes))
	for i, im := range meta.Indexes {
		indexDefs[i] = catalog.IndexDef{Name: im.Name, Columns: im.Columns, Unique: im.Unique, NullsDistinct: im.NullsDistinct}
	}

	store := db.newCachedStore(name, schema, len(indexDefs))
	t, err := catalog.NewTable(name, schema, store, indexDefs)
	if err != nil {
		return nil, err
	}
	t.Logged = meta.Logged
	t.IdentityColumn = meta.IdentityCol
	t.Identity = catalog.NewIdentity(meta.IdentityNext)
	t.Registry = db

	for _, cm := range meta.Constraints {
		t.Constraints = append(t.Constraints, &catalog.Constraint{
			Name: cm.Name, Kind: catalog.ConstraintKind(cm.Kind), Columns: cm.Columns,
			RefTable: cm.RefTable, RefColumns: cm.RefColumns,
			OnDelete: catalog.ReferentialAction(cm.OnDelete), OnUpdate: catalog.ReferentialAction(cm.OnUpdate),
		})
	}

	db.tables[name] = t
	return t, nil
}

// Table implements catalog.Registry.
func (db *Database) Table(name string) (*catalog.Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	return t, ok
}

// AllTables implements catalog.Registry.
func (db *Database) AllTables() []*catalog.Table {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*catalog.Table, 0, len(db.tables))
	for _, t := range db.tables {
		out = append(out, t)
	}
	return out
}

// DropTable removes a table's catalog entry, releases its store, and
// deletes its meta file. Existing FK constraints referencing it are not
// automatically dropped — callers must clear those first.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return dberr.ErrTableNotFound
	}
	for _, other := range db.tables {
		for _, c := range other.Constraints {
			if c.Kind == catalog.ConstraintForeignKey && c.RefTable == name {
				return dberr.New(dberr.KindConstraintViolation, name, "table is referenced by a foreign key")
			}
		}
	}

	_ = t.Store.Release()
	delete(db.tables, name)
	_ = os.Remove(db.tableMetaPath(name))
	db.env.BumpSchemaChange()
	return nil
}

// NewSession creates a client session bound to this database's shared
// environment.
func (db *Database) NewSession(defaultSchema string, compile session.CompileFunc) *session.Session {
	return session.New(db.env, defaultSchema, compile)
}

// StatementCache exposes the shared cache for direct inspection/tests.
func (db *Database) StatementCache() *statement.Cache { return db.env.Statements }

func (db *Database) writeTableMeta(meta *catalog.TableMeta) error {
	if err := os.MkdirAll(db.tableDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.tableMetaPath(meta.Name), data, 0o644)
}

func (db *Database) readTableMeta(name string) (*catalog.TableMeta, error) {
	data, err := os.ReadFile(db.tableMetaPath(name))
	if err != nil {
		return nil, err
	}
	var meta catalog.TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SyncTableMeta re-persists t's current shape, used after DDL rebinds
// t to a new *catalog.Table.
func (db *Database) SyncTableMeta(t *catalog.Table) error {
	meta := t.ToMeta(t.Name)
	return db.writeTableMeta(&meta)
}

// Close flushes every dirty page and closes the WAL files. The database
// handle must not be used afterward.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	err := multierr.Combine(
		db.pool.FlushAll(),
		db.wal.Close(),
		db.log.Close(),
	)
	db.env.Reset()
	return err
}
