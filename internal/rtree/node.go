package rtree

// leafEntry is one data payload stored in a leaf node: a box, the payload
// itself, and the two-phase removal flag TentativeRetain/RestoreRemoved
// operate on (§4.2, §9 "Tentative removal across threads").
type leafEntry[P any] struct {
	id      ID
	box     Box
	payload P
	removed bool
}

// node is either an internal node (children) or a leaf node (entries).
// box is the node's own minimum bounding rectangle, kept up to date on
// every insert and split.
type node[P any] struct {
	leaf     bool
	box      Box
	children []*node[P]
	entries  []*leafEntry[P]
}

func newLeaf[P any]() *node[P] {
	return &node[P]{leaf: true}
}

func newInternal[P any]() *node[P] {
	return &node[P]{leaf: false}
}

// recomputeBox rebuilds n's own MBR from its children/entries.
func (n *node[P]) recomputeBox() {
	if n.leaf {
		var box Box
		first := true
		for _, e := range n.entries {
			if e.removed {
				continue
			}
			if first {
				box = e.box.clone()
				first = false
				continue
			}
			box = box.Envelope(e.box)
		}
		n.box = box
		return
	}

	var box Box
	first := true
	for _, c := range n.children {
		if first {
			box = c.box.clone()
			first = false
			continue
		}
		box = box.Envelope(c.box)
	}
	n.box = box
}

// liveCount reports the number of non-removed entries in a leaf.
func (n *node[P]) liveCount() int {
	if !n.leaf {
		return len(n.children)
	}
	count := 0
	for _, e := range n.entries {
		if !e.removed {
			count++
		}
	}
	return count
}
