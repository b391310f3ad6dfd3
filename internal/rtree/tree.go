package rtree

import "sync"

// Tree is a bounding-box R-tree over Dims() dimensions carrying payload
// type P, with branching parameters (MinFanout, MaxFanout). The repository
// uses Dims=1 for each body's local index and Dims=4 for the global index
// (§4.2). A single RWMutex guards the whole payload space: readers (Search,
// Payload) may run concurrently with each other, but never with a writer
// (Insert, TentativeRetain, RestoreRemoved, Rebuild) — this is what lets
// context replication (§4.4) prepare a replicated index while the live
// context's render loop keeps reading the source.
type Tree[P any] struct {
	mu sync.RWMutex

	dims       int
	minFanout  int
	maxFanout  int
	root       *node[P]
	byID       map[ID]*leafEntry[P]
	nextID     ID
	removedIDs map[ID]struct{}
}

// New constructs an empty tree of the given dimensionality and branching
// parameters. The repository uses (2, 5) for both the local (D=1) and
// global (D=4) indices.
func New[P any](dims, minFanout, maxFanout int) *Tree[P] {
	return &Tree[P]{
		dims:       dims,
		minFanout:  minFanout,
		maxFanout:  maxFanout,
		root:       newLeaf[P](),
		byID:       make(map[ID]*leafEntry[P]),
		removedIDs: make(map[ID]struct{}),
	}
}

// Dims reports the tree's dimensionality.
func (t *Tree[P]) Dims() int { return t.dims }

// Len reports the number of live entries: neither tentatively removed nor
// deleted by Remove.
func (t *Tree[P]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.byID {
		if !e.removed {
			n++
		}
	}
	return n
}

// Insert adds (box, payload) to the tree and returns a stable ID for it.
func (t *Tree[P]) Insert(box Box, payload P) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	entry := &leafEntry[P]{id: id, box: box.clone(), payload: payload}
	t.byID[id] = entry

	leaf := t.chooseLeaf(t.root, box)
	leaf.entries = append(leaf.entries, entry)
	t.adjustAncestors(t.root, leaf, box)

	if len(leaf.entries) > t.maxFanout {
		t.splitLeaf(leaf)
	}

	return id
}

// chooseLeaf descends from n picking, at each internal level, the child
// whose MBR needs the least enlargement to contain box (ties broken by
// smaller resulting area), classic Guttman ChooseLeaf.
func (t *Tree[P]) chooseLeaf(n *node[P], box Box) *node[P] {
	for !n.leaf {
		if len(n.children) == 0 {
			// Degenerate: shouldn't happen outside of a freshly split
			// root, but guard against it rather than panic.
			child := newLeaf[P]()
			n.children = append(n.children, child)
			return child
		}

		best := n.children[0]
		bestEnlargement := enlargement(best.box, box)
		bestArea := best.box.Area()

		for _, c := range n.children[1:] {
			enl := enlargement(c.box, box)
			area := c.box.Area()
			if enl < bestEnlargement || (enl == bestEnlargement && area < bestArea) {
				best = c
				bestEnlargement = enl
				bestArea = area
			}
		}
		n = best
	}
	return n
}

func enlargement(box, with Box) float64 {
	if len(box.Min) == 0 {
		return 0
	}
	return box.Envelope(with).Area() - box.Area()
}

// adjustAncestors grows every ancestor of leaf on the path from root so
// that it still covers box, after an insert.
func (t *Tree[P]) adjustAncestors(n, target *node[P], box Box) bool {
	if n == target {
		if len(n.box.Min) == 0 {
			n.box = box.clone()
		} else {
			n.box = n.box.Envelope(box)
		}
		return true
	}
	if n.leaf {
		return false
	}
	for _, c := range n.children {
		if t.adjustAncestors(c, target, box) {
			if len(n.box.Min) == 0 {
				n.box = c.box.clone()
			} else {
				n.box = n.box.Envelope(c.box)
			}
			return true
		}
	}
	return false
}

// Search visits every live payload whose box overlaps query (P3).
func (t *Tree[P]) Search(query Box, visit func(ID, P)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.search(t.root, query, visit)
}

func (t *Tree[P]) search(n *node[P], query Box, visit func(ID, P)) {
	if n == nil {
		return
	}
	if len(n.box.Min) != 0 && !n.box.Overlaps(query) {
		return
	}

	if n.leaf {
		for _, e := range n.entries {
			if e.removed {
				continue
			}
			if e.box.Overlaps(query) {
				visit(e.id, e.payload)
			}
		}
		return
	}

	for _, c := range n.children {
		t.search(c, query, visit)
	}
}

// Payload reads the payload for id under the shared lock.
func (t *Tree[P]) Payload(id ID) (payload P, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, exists := t.byID[id]
	if !exists || e.removed {
		return payload, false
	}
	return e.payload, true
}

// MutatePayload applies fn to the payload stored at id under the
// exclusive lock, bracketing the mutation against concurrent readers.
func (t *Tree[P]) MutatePayload(id ID, fn func(*P)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.byID[id]
	if !exists || e.removed {
		return false
	}
	fn(&e.payload)
	return true
}

// Remove permanently deletes id from the tree. Unlike TentativeRetain, a
// removal here is never recorded in removedIDs, so a later RestoreRemoved
// (which only undoes an in-flight tentative pass) cannot resurrect it. The
// collision resolver uses this for cancelling a body's downstream segments
// outright (§4.6), as opposed to context replication's two-phase
// mark-then-commit discipline (§4.4, §9).
func (t *Tree[P]) Remove(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.byID[id]
	if !exists || e.removed {
		return false
	}
	e.removed = true
	return true
}

// Box returns the box currently associated with id (needed by the
// collision detector to inspect a segment's time interval, §4.5).
func (t *Tree[P]) Box(id ID) (Box, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, exists := t.byID[id]
	if !exists || e.removed {
		return Box{}, false
	}
	return e.box, true
}
