package catalog

// TableMeta is the on-disk description of a table, persisted alongside
// its data segments so a database can be reopened without replaying
// every CREATE TABLE/INDEX statement that ever ran against it.
type TableMeta struct {
	Name        string          `json:"name"`
	FileBase    string          `json:"file_base"`
	Logged      bool            `json:"logged"`
	Columns     []ColumnMeta    `json:"columns"`
	Indexes     []IndexMeta     `json:"indexes"`
	Constraints []ConstraintMeta `json:"constraints"`
	IdentityCol int             `json:"identity_col"`
	IdentityNext int64          `json:"identity_next"`
}

type ColumnMeta struct {
	Name      string `json:"name"`
	Type      int    `json:"type"`
	MaxLength int    `json:"max_length"`
	NotNull   bool   `json:"not_null"`
}

type IndexMeta struct {
	Name          string   `json:"name"`
	Columns       []string `json:"columns"`
	Unique        bool     `json:"unique"`
	NullsDistinct bool     `json:"nulls_distinct"`
	RootPositions []int64  `json:"root_positions"`
}

type ConstraintMeta struct {
	Name       string   `json:"name"`
	Kind       int      `json:"kind"`
	Columns    []string `json:"columns"`
	RefTable   string   `json:"ref_table,omitempty"`
	RefColumns []string `json:"ref_columns,omitempty"`
	OnDelete   int      `json:"on_delete,omitempty"`
	OnUpdate   int      `json:"on_update,omitempty"`
}

// ToMeta captures t's current schema/index/constraint shape for
// persistence. It leaves IndexMeta.RootPositions empty, since Table has
// no file-position notion of its own.
func (t *Table) ToMeta(fileBase string) TableMeta {
	cols := make([]ColumnMeta, len(t.Schema.Columns))
	for i, c := range t.Schema.Columns {
		cols[i] = ColumnMeta{Name: c.Name, Type: int(c.Type), MaxLength: c.MaxLength, NotNull: c.NotNull}
	}

	idxs := make([]IndexMeta, len(t.Indexes))
	for i, tree := range t.Indexes {
		names := make([]string, len(t.IndexColumns[i]))
		for j, ord := range t.IndexColumns[i] {
			names[j] = t.Schema.Columns[ord].Name
		}
		idxs[i] = IndexMeta{
			Name:          tree.Name,
			Columns:       names,
			Unique:        tree.Unique,
			NullsDistinct: tree.NullsDistinct,
		}
	}

	cons := make([]ConstraintMeta, len(t.Constraints))
	for i, c := range t.Constraints {
		cons[i] = ConstraintMeta{
			Name: c.Name, Kind: int(c.Kind), Columns: c.Columns,
			RefTable: c.RefTable, RefColumns: c.RefColumns,
			OnDelete: int(c.OnDelete), OnUpdate: int(c.OnUpdate),
		}
	}

	return TableMeta{
		Name: t.Name, FileBase: fileBase, Logged: t.Logged,
		Columns: cols, Indexes: idxs, Constraints: cons,
		IdentityCol: t.IdentityColumn, IdentityNext: t.Identity.Peek(),
	}
}
