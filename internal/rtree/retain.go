package rtree

// TentativeRetain traverses every live entry whose box overlaps region and
// calls keep(t, id) for each; entries for which keep returns false are
// marked removed, but not yet dropped from the tree (§4.2, §9). This lets
// a writer prepare a replicated index (via a later CloneShrink) without
// losing anything: Search on this tree skips the marked entries, but they
// stay in place and RestoreRemoved brings them back. keep is called
// without the tree's lock held, so it may read the tree (e.g. Box).
func (t *Tree[P]) TentativeRetain(region Box, keep func(*Tree[P], ID) bool) {
	t.mu.RLock()
	var ids []ID
	t.collectOverlapping(t.root, region, &ids)
	t.mu.RUnlock()

	var drop []ID
	for _, id := range ids {
		if !keep(t, id) {
			drop = append(drop, id)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range drop {
		e, ok := t.byID[id]
		if !ok || e.removed {
			continue
		}
		e.removed = true
		t.removedIDs[id] = struct{}{}
	}
}

func (t *Tree[P]) collectOverlapping(n *node[P], region Box, out *[]ID) {
	if n == nil || (len(n.box.Min) != 0 && !n.box.Overlaps(region)) {
		return
	}
	if n.leaf {
		for _, e := range n.entries {
			if !e.removed && e.box.Overlaps(region) {
				*out = append(*out, e.id)
			}
		}
		return
	}
	for _, c := range n.children {
		t.collectOverlapping(c, region, out)
	}
}

// RestoreRemoved clears every tentative removal mark, undoing any
// in-progress TentativeRetain pass (used when a replication attempt is
// abandoned, e.g. superseded by a newer scrub before it completes).
func (t *Tree[P]) RestoreRemoved() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.removedIDs {
		if e, ok := t.byID[id]; ok {
			e.removed = false
		}
	}
	t.removedIDs = make(map[ID]struct{})
}

// CloneShrink materialises a brand-new tree containing exactly the
// non-removed entries of t — the committed form of a TentativeRetain pass
// — along with a mapping from each surviving entry's old ID to the new
// one Insert assigned it in the clone. Insert always renumbers
// sequentially, so any cross-reference keyed on the old ID (e.g. another
// index's payload pointing at one of these entries) must be rewritten
// through this map to stay valid against the clone. t itself (including
// its removed marks) is left untouched: its marked entries stay hidden
// from Search on t, and remain recoverable there through RestoreRemoved.
func (t *Tree[P]) CloneShrink() (*Tree[P], map[ID]ID) {
	t.mu.RLock()
	type item struct {
		oldID   ID
		box     Box
		payload P
	}
	items := make([]item, 0, len(t.byID))
	for id, e := range t.byID {
		if e.removed {
			continue
		}
		items = append(items, item{oldID: id, box: e.box.clone(), payload: e.payload})
	}
	t.mu.RUnlock()

	out := New[P](t.dims, t.minFanout, t.maxFanout)
	remap := make(map[ID]ID, len(items))
	for _, it := range items {
		remap[it.oldID] = out.Insert(it.box, it.payload)
	}
	return out, remap
}
