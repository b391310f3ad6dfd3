package rtree

import "sort"

// Rebuild repacks the tree from its current live entries using a
// Sort-Tile-Recursive-style bulk load with the given packing factor (the
// repository uses 0.45): leaves are filled to packingFactor*maxFanout
// entries instead of being grown one insert at a time, improving query
// locality after a burst of inserts (§4.4 rehydration; §4.2).
func (t *Tree[P]) Rebuild(packingFactor float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type item struct {
		e *leafEntry[P]
	}
	items := make([]item, 0, len(t.byID))
	for _, e := range t.byID {
		if e.removed {
			continue
		}
		items = append(items, item{e})
	}

	if len(items) == 0 {
		t.root = newLeaf[P]()
		return
	}

	// Sort by the centre of dimension 0 (time, in both the local and
	// global indices) — a one-dimensional STR tiling is sufficient here
	// because every query in this system starts from a time slab.
	sort.Slice(items, func(i, j int) bool {
		ci := (items[i].e.box.Min[0] + items[i].e.box.Max[0]) / 2
		cj := (items[j].e.box.Min[0] + items[j].e.box.Max[0]) / 2
		return ci < cj
	})

	leafSize := int(float64(t.maxFanout) * packingFactor)
	if leafSize < t.minFanout {
		leafSize = t.minFanout
	}
	if leafSize < 1 {
		leafSize = 1
	}

	var leaves []*node[P]
	for i := 0; i < len(items); i += leafSize {
		end := i + leafSize
		if end > len(items) {
			end = len(items)
		}
		leaf := newLeaf[P]()
		for _, it := range items[i:end] {
			leaf.entries = append(leaf.entries, it.e)
		}
		leaf.recomputeBox()
		leaves = append(leaves, leaf)
	}

	t.root = t.packLevel(leaves, leafSize)
}

// packLevel recursively groups nodes into parents of at most leafSize
// children until a single root remains.
func (t *Tree[P]) packLevel(level []*node[P], groupSize int) *node[P] {
	if len(level) == 1 {
		return level[0]
	}

	var parents []*node[P]
	for i := 0; i < len(level); i += groupSize {
		end := i + groupSize
		if end > len(level) {
			end = len(level)
		}
		parent := newInternal[P]()
		parent.children = append(parent.children, level[i:end]...)
		parent.recomputeBox()
		parents = append(parents, parent)
	}

	return t.packLevel(parents, groupSize)
}

// BulkLoad constructs a new tree directly from a batch of (box, payload)
// pairs using the same packing discipline as Rebuild, skipping the
// one-at-a-time Insert/split path entirely. Context rehydration does not
// use it: it inserts segments one at a time and then calls Rebuild.
func BulkLoad[P any](dims, minFanout, maxFanout int, packingFactor float64, boxes []Box, payloads []P) *Tree[P] {
	t := New[P](dims, minFanout, maxFanout)
	for i := range boxes {
		id := t.nextID
		t.nextID++
		e := &leafEntry[P]{id: id, box: boxes[i].clone(), payload: payloads[i]}
		t.byID[id] = e
	}
	t.Rebuild(packingFactor)
	return t
}
