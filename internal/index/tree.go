package index

import (
	"sync"

	"github.com/relaxdb/engine/internal/dberr"
)

// Comparator orders two rows by this index's column list. It returns
// <0, 0, >0 the way sort comparators do.
type Comparator func(a, b RowHandle) int

// IsNullFunc reports whether a row's indexed key is entirely null,
// used to implement the unique-index null-slack rule.
type IsNullFunc func(row RowHandle) bool

// KeyCompare compares an external key tuple, already projected to this
// index's own column order, against one of the tree's own rows. It is
// the mapped-search counterpart to Comparator for callers - foreign-key
// and cascade probes - that only have a raw key tuple lifted from a row
// belonging to a different table layout, not a row shaped like this
// index's own table.
type KeyCompare func(key []any, row RowHandle) int

// ShadowFunc reports whether row has already been logically deleted
// (DeleteNoCheck marked it) but is still physically linked pending
// commit. Insert's uniqueness check treats a shadowed match as no match
// at all, so a delete-then-insert Update can reuse a unique key that is
// still, for the moment, occupied by the row it is replacing.
type ShadowFunc func(row RowHandle) bool

// Tree is a balanced (AVL) ordered index over a fixed column tuple of a
// table. Root is nil for an empty index.
type Tree struct {
	mu   sync.Mutex
	root *Node

	Name   string
	Unique bool

	// NullsDistinct, when true (the default), lets a unique index hold
	// any number of rows whose key is entirely null - SQL's classic
	// "NULL is never equal to NULL" carve-out. When false, at most one
	// all-null row is permitted, matching a strict candidate key.
	NullsDistinct bool

	cmp    Comparator
	isNull IsNullFunc
	keyCmp KeyCompare
	shadow ShadowFunc

	// Relink is invoked whenever a row's payload is physically moved to
	// a different Node during deletion (BST successor splicing), so the
	// owner can update that row's stored back-pointer (row.Nodes[i]).
	// May be nil, in which case callers must not rely on node identity
	// surviving a Delete of an unrelated node.
	Relink func(row RowHandle, node *Node)

	count int
}

func NewTree(name string, unique bool, cmp Comparator, isNull IsNullFunc) *Tree {
	return &Tree{
		Name:          name,
		Unique:        unique,
		NullsDistinct: true,
		cmp:           cmp,
		isNull:        isNull,
	}
}

// SetKeyCompare installs the callback FindFirstRowIterator/
// CompareRowNonUnique use to compare an external key tuple against this
// tree's own rows. internal/catalog.Table.AddIndex installs one for
// every index it builds; a tree with no callback set cannot serve those
// two methods and they panic.
func (t *Tree) SetKeyCompare(fn KeyCompare) {
	t.keyCmp = fn
}

// SetShadow installs the callback Insert's uniqueness check uses to look
// past a row that is present in the tree only because its delete hasn't
// committed yet. internal/catalog.Table.AddIndex installs one for every
// index it builds, keyed off rowstore.Row.CascadeDeleted.
func (t *Tree) SetShadow(fn ShadowFunc) {
	t.shadow = fn
}

// CompareRowNonUnique compares an external key tuple, already projected
// to this index's own column order, against row's indexed key. It is
// the mapped-search primitive foreign-key and cascade probes use in
// place of building a synthetic full-width row shaped like this index's
// own table just to drive Comparator.
func (t *Tree) CompareRowNonUnique(key []any, row RowHandle) int {
	return t.keyCmp(key, row)
}

// CompareRows compares two of this tree's own rows under its key
// ordering, exposing the same Comparator Insert/Delete already use
// internally.
func (t *Tree) CompareRows(a, b RowHandle) int {
	return t.cmp(a, b)
}

// FindFirstRowIterator searches for the leftmost row whose indexed key
// equals key, an external tuple already projected to this index's own
// column order. It is FindFirstRow's mapped-search counterpart: use it
// when the caller has a raw key tuple lifted from a row in a different
// table's layout (a foreign-key or cascade probe) rather than a row
// shaped like this index's own table.
func (t *Tree) FindFirstRowIterator(key []any) *Iterator {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.root
	var candidate *Node
	for cur != nil {
		c := t.keyCmp(key, cur.Row)
		switch {
		case c == 0:
			candidate = cur
			cur = cur.Left // keep looking left for the first match
		case c < 0:
			cur = cur.Left
		default:
			cur = cur.Right
		}
	}
	return newIterator(candidate)
}

func (t *Tree) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Tree) Root() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// Insert places row into the tree, returning the new Node. If the tree
// is unique and an equal key already exists (and the null-slack rule
// does not excuse it), it returns dberr.ErrDuplicateKey.
func (t *Tree) Insert(row RowHandle) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	allNull := t.isNull != nil && t.isNull(row)

	if t.Unique && !(allNull && t.NullsDistinct) {
		if existing := t.search(row); existing != nil && !t.isShadowed(existing.Row) {
			return nil, dberr.New(dberr.KindConstraintViolation, t.Name,
				"duplicate key value violates unique index")
		}
	}

	n := &Node{Row: row, height: 1}
	t.root = t.insertNode(t.root, nil, n)
	t.count++
	return n, nil
}

// FindEqual returns some node whose key compares equal to row under the
// tree's own comparator, or nil if none exists. For a non-unique index
// this need not be the first such node in key order; use FindFirstRow
// with an explicit comparator when leftmost matters.
func (t *Tree) FindEqual(row RowHandle) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.search(row)
}

func (t *Tree) isShadowed(row RowHandle) bool {
	return t.shadow != nil && t.shadow(row)
}

func (t *Tree) search(row RowHandle) *Node {
	cur := t.root
	for cur != nil {
		c := t.cmp(row, cur.Row)
		switch {
		case c == 0:
			return cur
		case c < 0:
			cur = cur.Left
		default:
			cur = cur.Right
		}
	}
	return nil
}

func (t *Tree) insertNode(root, parent *Node, n *Node) *Node {
	if root == nil {
		n.Parent = parent
		return n
	}
	if t.cmp(n.Row, root.Row) < 0 {
		root.Left = t.insertNode(root.Left, root, n)
	} else {
		root.Right = t.insertNode(root.Right, root, n)
	}
	root.recompute()
	return t.rebalance(root)
}

func (t *Tree) rotateLeft(x *Node) *Node {
	y := x.Right
	x.Right = y.Left
	if y.Left != nil {
		y.Left.Parent = x
	}
	y.Parent = x.Parent
	y.Left = x
	x.Parent = y
	x.recompute()
	y.recompute()
	return y
}

func (t *Tree) rotateRight(x *Node) *Node {
	y := x.Left
	x.Left = y.Right
	if y.Right != nil {
		y.Right.Parent = x
	}
	y.Parent = x.Parent
	y.Right = x
	x.Parent = y
	x.recompute()
	y.recompute()
	return y
}

func (t *Tree) rebalance(n *Node) *Node {
	bf := n.balance()
	if bf > 1 {
		if n.Left.balance() < 0 {
			n.Left = t.rotateLeft(n.Left)
		}
		return t.rotateRight(n)
	}
	if bf < -1 {
		if n.Right.balance() > 0 {
			n.Right = t.rotateRight(n.Right)
		}
		return t.rotateLeft(n)
	}
	return n
}

// Delete unlinks node from the tree. It is a no-op if node is nil.
func (t *Tree) Delete(node *Node) {
	if node == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = t.deleteNode(t.root, node)
	t.count--
}

// deleteNode removes the node with the same Row identity as target,
// rebalancing on the way back up.
func (t *Tree) deleteNode(root, target *Node) *Node {
	if root == nil {
		return nil
	}

	if root == target {
		return t.spliceOut(root)
	}

	c := t.cmp(target.Row, root.Row)
	switch {
	case c < 0:
		root.Left = t.deleteNode(root.Left, target)
		if root.Left != nil {
			root.Left.Parent = root
		}
	case c > 0:
		root.Right = t.deleteNode(root.Right, target)
		if root.Right != nil {
			root.Right.Parent = root
		}
	default:
		// Equal keys but not the same node identity (non-unique index):
		// walk both subtrees since we cannot tell which side holds it.
		if found := t.locate(root.Left, target); found {
			root.Left = t.deleteNode(root.Left, target)
			if root.Left != nil {
				root.Left.Parent = root
			}
		} else {
			root.Right = t.deleteNode(root.Right, target)
			if root.Right != nil {
				root.Right.Parent = root
			}
		}
	}
	root.recompute()
	return t.rebalance(root)
}

func (t *Tree) locate(root, target *Node) bool {
	if root == nil {
		return false
	}
	if root == target {
		return true
	}
	return t.locate(root.Left, target) || t.locate(root.Right, target)
}

func (t *Tree) spliceOut(n *Node) *Node {
	switch {
	case n.Left == nil && n.Right == nil:
		return nil
	case n.Left == nil:
		n.Right.Parent = n.Parent
		return n.Right
	case n.Right == nil:
		n.Left.Parent = n.Parent
		return n.Left
	default:
		succParent := n
		succ := n.Right
		for succ.Left != nil {
			succParent = succ
			succ = succ.Left
		}
		// Move successor's row identity into n's slot rather than
		// physically relinking, since Node pointers are held elsewhere
		// (rowstore.Row.Nodes[i]); swap payload, then delete the
		// successor node from its original spot.
		n.Row, succ.Row = succ.Row, n.Row
		if t.Relink != nil {
			t.Relink(n.Row, n)
		}

		if succParent == n {
			n.Right = t.deleteNode(n.Right, succ)
			if n.Right != nil {
				n.Right.Parent = n
			}
		} else {
			succParent.Left = t.deleteNode(succParent.Left, succ)
			if succParent.Left != nil {
				succParent.Left.Parent = succParent
			}
		}
		n.recompute()
		return t.rebalance(n)
	}
}
