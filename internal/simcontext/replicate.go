package simcontext

import (
	"github.com/banshee-data/apriori/internal/rtree"
)

// Replicate implements §4.4's replicate(new_session, new_layer,
// new_window), selecting one of the three branches:
//
//  1. Different session/layer: a fresh empty context. All bodies must be
//     rehydrated.
//  2. Same session/layer and new_window.Start falls inside the current
//     window: tentatively retain (in both the global and every local
//     index) only segments ending at or after new_window.Start, then
//     clone-shrink each local sequence and rebuild the global index from
//     the survivors (a clone-shrunk tree renumbers its IDs, so a global
//     index cloned independently would reference stale local-segment
//     IDs — see replicateBySliding). The source's removed-marks are
//     left untouched — Replicate never calls RestoreRemoved on c, so a
//     concurrent reader of c that needs the full history can still
//     recover it for as long as c itself survives.
//  3. Otherwise: carry forward only body metadata; every segment in the
//     new window must be rehydrated.
func (c *Context) Replicate(newSession SessionID, newLayer LayerID, newWindow Window) *Context {
	c.mu.RLock()
	sameSessionLayer := newSession == c.Session && newLayer == c.Layer
	c.mu.RUnlock()

	if !sameSessionLayer {
		return New(newSession, newLayer, newWindow, c.cfg)
	}

	c.mu.RLock()
	startInsideCurrent := c.Window.Contains(newWindow.Start)
	c.mu.RUnlock()

	if startInsideCurrent {
		return c.replicateBySliding(newSession, newLayer, newWindow)
	}

	return c.replicateMetadataOnly(newSession, newLayer, newWindow)
}

// replicateBySliding is branch 2: tentative-retain-then-clone-shrink
// across the global index and every body's local sequence.
//
// The global retain pass must scan the whole time/space range, not just
// [newWindow.Start, newWindow.End]: TentativeRetain only visits entries
// whose box overlaps the region it's given, so a box bounded above by
// newWindow.End would never even visit (let alone mark for removal) a
// segment ending before newWindow.Start, leaving it to survive into the
// clone. The local per-body retain below has always scanned the whole
// span for the same reason; this mirrors it.
func (c *Context) replicateBySliding(newSession SessionID, newLayer LayerID, newWindow Window) *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.global.TentativeRetain(hugeGlobalBox, func(tr *rtree.Tree[GlobalEntry], id rtree.ID) bool {
		box, ok := tr.Box(id)
		if !ok {
			return false
		}
		return box.Max[0] >= newWindow.Start
	})

	out := New(newSession, newLayer, newWindow, c.cfg)

	// Local sequences are shrunk first because CloneShrink renumbers
	// every surviving segment's ID; the global index's GlobalEntry
	// payloads reference those same IDs; and a global tree (or plain
	// CloneShrink) doesn't track any link from a payload back to the
	// local sequence it references, so new global entries have to be
	// rebuilt here from each body's remap rather than blind-copied off
	// the old global tree.
	remapByBody := make(map[BodyID]map[rtree.ID]rtree.ID, len(c.sequences))
	for id, body := range c.bodies {
		out.bodies[id] = body

		seq, ok := c.sequences[id]
		if !ok {
			continue
		}
		seq.TentativeRetain(func(box rtree.Box) bool { return box.Max[0] >= newWindow.Start })
		newSeq, remap := seq.CloneShrink()
		out.sequences[id] = newSeq
		remapByBody[id] = remap
	}

	c.global.Search(hugeGlobalBox, func(gid rtree.ID, entry GlobalEntry) {
		remap, ok := remapByBody[entry.Body]
		if !ok {
			return
		}
		newSeg, ok := remap[entry.SegmentID]
		if !ok {
			// Tentatively removed on this pass (or already gone);
			// its global entry doesn't survive either.
			return
		}
		box, ok := c.global.Box(gid)
		if !ok {
			return
		}
		out.global.Insert(box, GlobalEntry{Body: entry.Body, SegmentID: newSeg})
	})

	return out
}

// replicateMetadataOnly is branch 3: body metadata carries forward, no
// segments do.
func (c *Context) replicateMetadataOnly(newSession SessionID, newLayer LayerID, newWindow Window) *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := New(newSession, newLayer, newWindow, c.cfg)
	for id, body := range c.bodies {
		out.bodies[id] = body
	}
	return out
}

// hugeSpatial bounds the spatial extent of a tentative-retain query over
// the global index; every real trajectory's coordinates stay far inside
// this range.
const hugeSpatial = 1e18
