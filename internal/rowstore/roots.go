package rowstore

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeRoots serializes one file position per index (or -1 for an
// empty index) as a whitespace-separated string, the index-roots format
// for cached/text tables. Nothing in this module persists that string
// or seeds IndexTree roots from it.
func EncodeRoots(positions []int64) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.FormatInt(p, 10)
	}
	return strings.Join(parts, " ")
}

// DecodeRoots is the inverse of EncodeRoots.
func DecodeRoots(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rowstore: decode roots: field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
