package catalog

import (
	"fmt"

	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/rowstore"
)

// referencingConstraint pairs a foreign key with the table that owns it,
// for a single hop of the referencing-table search.
type referencingConstraint struct {
	table *Table
	c     *Constraint
}

// referencingConstraints finds every FOREIGN KEY constraint in the
// registry whose RefTable is t.Name.
func (t *Table) referencingConstraints() []referencingConstraint {
	if t.Registry == nil {
		return nil
	}
	var out []referencingConstraint
	for _, other := range t.Registry.AllTables() {
		for _, c := range other.Constraints {
			if c.Kind == ConstraintForeignKey && c.RefTable == t.Name {
				out = append(out, referencingConstraint{table: other, c: c})
			}
		}
	}
	return out
}

// cascadeStep is one row queued for a referential action, discovered
// while walking the transitive closure of a delete.
type cascadeStep struct {
	table  *Table
	row    *rowstore.Row
	action ReferentialAction
	fk     *Constraint
}

// CascadeDelete computes and applies the full transitive closure of
// referential actions triggered by deleting row from t: CASCADE removes
// referencing rows (recursively), SET NULL/SET DEFAULT rewrites their FK
// columns in place. The closure is computed before any of it is applied,
// matching the "no interleaved replay" ordering rule. Discovery uses its
// own visited set (keyed by row identity) rather than row.CascadeDeleted,
// since that flag is what deleteNoCheck itself sets on apply — setting it
// early would make deleteNoCheck treat the row as already handled and
// skip journaling it.
func (t *Table) CascadeDelete(session SessionContext, row *rowstore.Row) error {
	var steps []cascadeStep
	visited := map[*rowstore.Row]bool{row: true}
	if err := t.walkCascade(row, visited, &steps); err != nil {
		return err
	}

	for _, s := range steps {
		switch s.action {
		case ActionCascade:
			if err := s.table.DeleteNoCheck(session, s.row); err != nil {
				return err
			}
		case ActionSetNull, ActionSetDefault:
			ords := s.fk.Path
			if ords == nil {
				var err error
				ords, err = s.table.Schema.resolveOrdinals(s.fk.Columns)
				if err != nil {
					return err
				}
			}
			newData := append([]any(nil), s.row.Data...)
			for i, ord := range ords {
				if s.action == ActionSetNull {
					newData[ord] = nil
				} else if i < len(s.fk.DefaultValues) {
					newData[ord] = s.fk.DefaultValues[i]
				}
			}
			if _, err := s.table.Update(session, []UpdatePair{{Row: s.row, NewData: newData}}); err != nil {
				return err
			}
		case ActionRestrict, ActionNoAction:
			return dberr.New(dberr.KindConstraintViolation, s.fk.Name, "referencing rows exist")
		}
	}
	return nil
}

// walkCascade appends every row (across the whole reachable table graph)
// that a delete of row from t would need a referential action for. visited
// guards discovery against cyclic FK graphs; it is scoped to this walk and
// never touches row.CascadeDeleted, which deleteNoCheck owns exclusively.
func (t *Table) walkCascade(row *rowstore.Row, visited map[*rowstore.Row]bool, steps *[]cascadeStep) error {
	for _, rc := range t.referencingConstraints() {
		refOrds, err := t.Schema.resolveOrdinals(rc.c.RefColumns)
		if err != nil {
			return err
		}
		key := make([]any, len(refOrds))
		for i, ord := range refOrds {
			key[i] = row.Data[ord]
		}
		if allNullValues(key) {
			continue
		}

		localOrds := rc.c.Path
		if localOrds == nil {
			var err error
			localOrds, err = rc.table.Schema.resolveOrdinals(rc.c.Columns)
			if err != nil {
				return err
			}
		}
		matches := rc.table.scanMatching(localOrds, key)

		action := rc.c.OnDelete
		for _, m := range matches {
			if visited[m] || m.CascadeDeleted {
				continue
			}
			visited[m] = true
			*steps = append(*steps, cascadeStep{table: rc.table, row: m, action: action, fk: rc.c})
			if action == ActionCascade {
				if err := rc.table.walkCascade(m, visited, steps); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// scanMatching returns every row of t whose values at ordinals equal key,
// using the table's own store scan when available and falling back to
// its indexes otherwise. Cascade lookups favor correctness over index
// use since the referencing side rarely has a matching secondary index.
func (t *Table) scanMatching(ordinals []int, key []any) []*rowstore.Row {
	var out []*rowstore.Row
	if scanner, ok := t.Store.(rowstore.Scanner); ok {
		scanner.Scan(func(r *rowstore.Row) bool {
			if valuesEqual(r.Data, ordinals, key) {
				out = append(out, r)
			}
			return true
		})
		return out
	}

	if tree := t.indexForColumns(ordinals); tree != nil {
		it := tree.FindFirstRowIterator(key)
		for it.Valid() {
			r, ok := it.Row().(*rowstore.Row)
			if !ok || tree.CompareRowNonUnique(key, r) != 0 {
				break
			}
			out = append(out, r)
			it.Next()
		}
	}
	return out
}

func valuesEqual(data []any, ordinals []int, key []any) bool {
	for i, ord := range ordinals {
		if fmt.Sprint(data[ord]) != fmt.Sprint(key[i]) {
			return false
		}
	}
	return true
}

func allNullValues(vs []any) bool {
	for _, v := range vs {
		if v != nil {
			return false
		}
	}
	return true
}
