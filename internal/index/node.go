// Package index implements the balanced ordered index used by
// internal/catalog.Table for primary keys, unique constraints, and
// secondary indexes.
//
// Unlike a page-based B+Tree, rows here live in memory (or are pinned
// through internal/rowstore) and the tree threads through them via
// per-index Node pointers, mirroring how a table row carries one node
// per index it participates in. The balancing discipline (rotate on
// insert/delete to keep height logarithmic) follows the same rotate/
// re-balance shape as a page B+Tree's split/merge/borrow, just applied
// to single-key nodes instead of page-sized key runs.
package index

// RowHandle is an opaque reference to a table row. The index package
// never inspects it directly; comparisons and null checks are supplied
// by the owning Table via Comparator/IsNull callbacks.
type RowHandle interface{}

// Node is one entry of an IndexTree, referenced from the owning row so
// that deletion can name the exact entry to unlink even among equal
// keys; Delete still descends from the root to reach it.
type Node struct {
	Row    RowHandle
	Left   *Node
	Right  *Node
	Parent *Node
	height int
}

func (n *Node) leftHeight() int {
	if n == nil || n.Left == nil {
		return 0
	}
	return n.Left.height
}

func (n *Node) rightHeight() int {
	if n == nil || n.Right == nil {
		return 0
	}
	return n.Right.height
}

func (n *Node) balance() int {
	if n == nil {
		return 0
	}
	return n.leftHeight() - n.rightHeight()
}

func (n *Node) recompute() {
	lh, rh := n.leftHeight(), n.rightHeight()
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}
