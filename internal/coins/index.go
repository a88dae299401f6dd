package coins

// Denominations is the fixed set of coin values the machine can dispense,
// in cents.
var Denominations = []int{5, 10, 20, 50, 100}

// node is a binary search tree node holding one denomination.
type node struct {
	left  *node
	right *node
	val   int
}

func (n *node) insert(val int) {
	if n.val == val {
		return
	}

	if val < n.val {
		if n.left != nil {
			n.left.insert(val)
			return
		}
		n.left = &node{val: val}
		return
	}

	if n.right != nil {
		n.right.insert(val)
		return
	}
	n.right = &node{val: val}
}

// greatestLTE returns the greatest value in the subtree that is less than or
// equal to val. The descent keeps the best candidate seen so far: nodes within
// the bound narrow the search to their right subtree, nodes above it to their
// left, so the result is independent of the shape the insertion order produced.
func (n *node) greatestLTE(val int) (int, bool) {
	best := 0
	found := false
	for n != nil {
		switch {
		case n.val == val:
			return n.val, true
		case n.val < val:
			best, found = n.val, true
			n = n.right
		default:
			n = n.left
		}
	}
	return best, found
}

// Index is an ordered set of coin denominations. It is built once at startup
// and never mutated afterwards, so concurrent reads need no synchronization.
type Index struct {
	root *node
}

// NewIndex builds an index from the given denominations. Values must be
// positive; duplicates are ignored.
func NewIndex(values ...int) *Index {
	idx := &Index{}
	for _, v := range values {
		idx.insert(v)
	}
	return idx
}

// NewDefaultIndex builds an index over the machine's fixed denomination set.
func NewDefaultIndex() *Index {
	return NewIndex(Denominations...)
}

func (idx *Index) insert(val int) {
	if idx.root == nil {
		idx.root = &node{val: val}
		return
	}
	idx.root.insert(val)
}

// GreatestLTE returns the largest stored denomination that is less than or
// equal to val, or false when val is below every stored denomination.
func (idx *Index) GreatestLTE(val int) (int, bool) {
	if idx.root == nil {
		return 0, false
	}
	return idx.root.greatestLTE(val)
}

// Contains reports whether val is exactly one of the stored denominations.
func (idx *Index) Contains(val int) bool {
	coin, ok := idx.GreatestLTE(val)
	return ok && coin == val
}
