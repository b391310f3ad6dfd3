package simcontext

import (
	"sync"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/trajectory"
)

// GlobalEntry is the payload of the global 4-D index: a reference to the
// owning body and the id of the segment within that body's own local
// sequence (§3 "Global index").
type GlobalEntry struct {
	Body      BodyID
	SegmentID rtree.ID
}

// LocationStatus classifies the outcome of a location query for one body
// at a given instant (§4.4 "Location query").
type LocationStatus int

const (
	// StatusLive means the queried instant falls inside a segment of
	// the body's sequence; Position/Velocity are interpolated.
	StatusLive LocationStatus = iota
	// StatusNotYetAppeared means the body's earliest segment starts
	// after the queried instant.
	StatusNotYetAppeared
	// StatusLastKnown means the body's latest segment ends before the
	// queried instant; Position/Velocity are its last known values.
	StatusLastKnown
)

// LocationResult is one entry of a context's location-query response.
type LocationResult struct {
	Body     BodyID
	Status   LocationStatus
	Position kernel.Vector
	Velocity kernel.Vector
}

// Context is a working window over one session/layer: the set of bodies
// alive at any instant within it, each body's local trajectory sequence,
// and the global index spanning all of them (§4.4).
type Context struct {
	mu sync.RWMutex

	Session SessionID
	Layer   LayerID
	Window  Window

	cfg *config.TuningConfig

	bodies    map[BodyID]*Body
	sequences map[BodyID]*trajectory.Sequence
	global    *rtree.Tree[GlobalEntry]
}

// New constructs an empty context over the given key, with freshly built
// (empty) local and global indices — the "fresh empty context" case of
// replicate() (§4.4), and the starting point rehydration fills in.
func New(session SessionID, layer LayerID, window Window, cfg *config.TuningConfig) *Context {
	return &Context{
		Session:   session,
		Layer:     layer,
		Window:    window,
		cfg:       cfg,
		bodies:    make(map[BodyID]*Body),
		sequences: make(map[BodyID]*trajectory.Sequence),
		global:    rtree.New[GlobalEntry](4, cfg.GetRTreeMinFanout(), cfg.GetRTreeMaxFanout()),
	}
}

// KnownBodyIDs returns the ids of every body already present in this
// context, for use as the current_objects_delta "known_ids" argument
// during rehydration (§4.4, §4.7).
func (c *Context) KnownBodyIDs() []BodyID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]BodyID, 0, len(c.bodies))
	for id := range c.bodies {
		ids = append(ids, id)
	}
	return ids
}

// Body looks up body metadata by id.
func (c *Context) Body(id BodyID) (*Body, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bodies[id]
	return b, ok
}

// Bodies returns a snapshot slice of every body known to this context.
func (c *Context) Bodies() []*Body {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Body, 0, len(c.bodies))
	for _, b := range c.bodies {
		out = append(out, b)
	}
	return out
}

// sequenceFor returns the body's sequence, creating an empty one if this
// is the first segment seen for it (rehydration's bookkeeping).
func (c *Context) sequenceFor(id BodyID) *trajectory.Sequence {
	seq, ok := c.sequences[id]
	if !ok {
		seq = trajectory.NewSequence(c.cfg.GetRTreeMinFanout(), c.cfg.GetRTreeMaxFanout())
		c.sequences[id] = seq
	}
	return seq
}

// Sequence exposes a body's local trajectory sequence, used by the
// collision detector/resolver (C5/C6) to interpolate and rewrite.
func (c *Context) Sequence(id BodyID) (*trajectory.Sequence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seq, ok := c.sequences[id]
	return seq, ok
}

// Global exposes the context's global 4-D index, used by the collision
// detector to search for overlapping segments across bodies (§4.5).
func (c *Context) Global() *rtree.Tree[GlobalEntry] {
	return c.global
}

// InsertGlobal adds a global-index entry for (body, segment) with the
// given bounding box, returning its id (§4.4 rehydration; §4.6 rewriting
// a truncated segment's tail).
func (c *Context) InsertGlobal(box rtree.Box, body BodyID, segment rtree.ID) rtree.ID {
	return c.global.Insert(box, GlobalEntry{Body: body, SegmentID: segment})
}

// RemoveGlobalEntriesFor removes every global-index entry referencing one
// of the given (body, segment) pairs — used by the collision resolver
// after truncating or cancelling local segments (§4.6: "their
// global-index entries removed").
func (c *Context) RemoveGlobalEntriesFor(targets map[BodyID]map[rtree.ID]bool) {
	if len(targets) == 0 {
		return
	}
	var toRemove []rtree.ID
	c.global.Search(hugeGlobalBox, func(id rtree.ID, entry GlobalEntry) {
		if segs, ok := targets[entry.Body]; ok && segs[entry.SegmentID] {
			toRemove = append(toRemove, id)
		}
	})
	for _, id := range toRemove {
		c.global.Remove(id)
	}
}

// hugeGlobalBox bounds an all-time, all-space query over the global
// index; every real trajectory stays far inside this range.
var hugeGlobalBox = rtree.Box{
	Min: []float64{-hugeSpatial, -hugeSpatial, -hugeSpatial, -hugeSpatial},
	Max: []float64{hugeSpatial, hugeSpatial, hugeSpatial, hugeSpatial},
}

// Locate answers a location query at virtual time tv: for each body known
// to this context, its status and best-effort position/velocity (§4.4
// "Location query"). The live case is answered by searching the global
// 4-D index over the t=[tv,tv] slab, not by scanning every body's local
// sequence — the sub-linear "which bodies, where, at time t" query the
// global index exists for.
func (c *Context) Locate(tv float64) []LocationResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slab := rtree.Box{
		Min: []float64{tv, -hugeSpatial, -hugeSpatial, -hugeSpatial},
		Max: []float64{tv, hugeSpatial, hugeSpatial, hugeSpatial},
	}

	// exactEnd tracks, per body, whether the current live candidate is
	// one whose interval ends exactly at tv — preferred over one merely
	// starting there, matching Sequence.segmentContaining's tie-break at
	// a shared boundary.
	exactEnd := make(map[BodyID]bool, len(c.bodies))
	live := make(map[BodyID]LocationResult, len(c.bodies))
	c.global.Search(slab, func(_ rtree.ID, entry GlobalEntry) {
		seq, ok := c.sequences[entry.Body]
		if !ok {
			return
		}
		box, ok := seq.Box(entry.SegmentID)
		if !ok {
			return
		}
		if _, seen := live[entry.Body]; seen {
			if exactEnd[entry.Body] || tv != box.Max[0] {
				return
			}
		}
		seg, ok := seq.Payload(entry.SegmentID)
		if !ok {
			return
		}
		h := seg.Hermite(box.Min[0], box.Max[0])
		exactEnd[entry.Body] = tv == box.Max[0]
		live[entry.Body] = LocationResult{
			Body:     entry.Body,
			Status:   StatusLive,
			Position: h.Evaluate(tv),
			Velocity: h.Velocity(tv),
		}
	})

	results := make([]LocationResult, 0, len(c.bodies))
	for id := range c.bodies {
		if res, ok := live[id]; ok {
			results = append(results, res)
			continue
		}
		if seq, ok := c.sequences[id]; ok {
			if last, ok := seq.LastGeneralizedCoordinate(kernel.Forward); ok && tv > last.T {
				results = append(results, LocationResult{Body: id, Status: StatusLastKnown, Position: last.Position, Velocity: last.Velocity})
				continue
			}
		}
		results = append(results, LocationResult{Body: id, Status: StatusNotYetAppeared})
	}
	return results
}

// RebuildIndices rebuilds both the global index and every body's local
// sequence with the context's configured packing factor — the final step
// of rehydration (§4.4).
func (c *Context) RebuildIndices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global.Rebuild(c.cfg.GetPackingFactor())
	for _, seq := range c.sequences {
		seq.Rebuild(c.cfg.GetPackingFactor())
	}
}
