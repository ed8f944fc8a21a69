package catalog

import (
	"bytes"

	"github.com/relaxdb/engine/internal/rowstore"
)

// compareValue orders two column values of the same rowstore.ColumnType.
// nil sorts before any non-null value, matching SQL's NULLS FIRST
// ordering used internally for index placement (query-level NULLS
// LAST/FIRST is a planner concern, out of scope here).
func compareValue(a, b any, t rowstore.ColumnType) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch t {
	case rowstore.TypeInt64, rowstore.TypeTimestamp:
		x, y := a.(int64), b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case rowstore.TypeFloat64:
		x, y := a.(float64), b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case rowstore.TypeBool:
		x, y := a.(bool), b.(bool)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	case rowstore.TypeString:
		x, y := a.(string), b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case rowstore.TypeBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	default:
		return 0
	}
}

// compareRows lexicographically compares two rows' values at ordinals,
// using each column's declared type for collation, matching the static
// IndexTree.compareRows contract.
func compareRows(a, b []any, ordinals []int, types []rowstore.ColumnType) int {
	for i, ord := range ordinals {
		c := compareValue(a[ord], b[ord], types[i])
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareRowNonUnique compares an external key tuple (already projected
// to the index's column order) against a full row's values at ordinals.
func compareRowNonUnique(key []any, ordinals []int, types []rowstore.ColumnType, rowData []any) int {
	for i, ord := range ordinals {
		c := compareValue(key[i], rowData[ord], types[i])
		if c != 0 {
			return c
		}
	}
	return 0
}

func allNull(data []any, ordinals []int) bool {
	for _, ord := range ordinals {
		if data[ord] != nil {
			return false
		}
	}
	return true
}
