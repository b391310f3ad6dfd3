package collision

import (
	"math"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// Candidate is the outcome of Detect: the earliest collision instant found
// across every connected component of the possible-collisions graph that a
// newly inserted segment touches, together with every edge within epsT of
// that instant — the simultaneous collisions to resolve together (§4.5
// step 4).
type Candidate struct {
	TStar float64
	Edges []Edge
}

// Detect runs the collision detector of §4.5 against a segment that is
// about to be committed: it searches the global index with the segment's
// 4-D bounding box for overlapping segments belonging to other bodies,
// decomposes the resulting possible-collisions graph into connected
// components, refines each component's edges to an exact collision
// instant by root-finding on inter-body distance, and returns the
// earliest instant found (in dir's sense) plus its simultaneous-collision
// edge set. ok is false when no root exists anywhere in the graph.
func Detect(ctx *simcontext.Context, body simcontext.BodyID, segID rtree.ID, box rtree.Box, dir kernel.Direction, cfg *config.TuningConfig) (Candidate, bool) {
	me := node{Body: body, Segment: int64(segID)}
	meBox, ok := segmentBox(ctx, me)
	if !ok {
		return Candidate{}, false
	}

	var raw []Edge
	seen := make(map[node]bool)
	ctx.Global().Search(box, func(_ rtree.ID, entry simcontext.GlobalEntry) {
		if entry.Body == body {
			return
		}
		other := node{Body: entry.Body, Segment: int64(entry.SegmentID)}
		if seen[other] {
			return
		}
		otherBox, ok := segmentBox(ctx, other)
		if !ok {
			return
		}
		seen[other] = true
		raw = append(raw, Edge{A: me, B: other, BoxA: meBox, BoxB: otherBox})
	})
	if len(raw) == 0 {
		return Candidate{}, false
	}

	grouped := components(raw)

	var best *Candidate
	for _, compEdges := range grouped {
		lo, hi := componentSpan(compEdges)

		for i := range compEdges {
			compEdges[i].refine(ctx, cfg, lo, hi)
		}

		tStar, ok := earliest(compEdges, dir)
		if !ok {
			continue
		}

		var simultaneous []Edge
		for _, e := range compEdges {
			if e.Valid && math.Abs(e.TStar-tStar) <= cfg.GetRootFindEpsT() {
				simultaneous = append(simultaneous, e)
			}
		}
		cand := Candidate{TStar: tStar, Edges: simultaneous}
		if best == nil || better(cand.TStar, best.TStar, dir) {
			best = &cand
		}
	}

	if best == nil {
		return Candidate{}, false
	}
	return *best, true
}

// refine computes d(t) = ‖p_a(t)-p_b(t)‖-(r_a+r_b) for this edge's two
// segments and locates its earliest root within [lo,hi] ∩ the edge's own
// segment time ranges, via kernel.FindFirstRoot (§4.5 step 3).
func (e *Edge) refine(ctx *simcontext.Context, cfg *config.TuningConfig, lo, hi float64) {
	ha, ok1 := hermiteOf(ctx, e.A, e.BoxA)
	hb, ok2 := hermiteOf(ctx, e.B, e.BoxB)
	if !ok1 || !ok2 {
		e.Valid = false
		return
	}

	bodyA, ok3 := ctx.Body(e.A.Body)
	bodyB, ok4 := ctx.Body(e.B.Body)
	if !ok3 || !ok4 {
		e.Valid = false
		return
	}

	a := math.Max(math.Max(ha.T0, hb.T0), lo)
	b := math.Min(math.Min(ha.T1, hb.T1), hi)
	if b <= a {
		e.Valid = false
		return
	}

	sumRadii := bodyA.Radius + bodyB.Radius
	distFn := func(t float64) float64 {
		return ha.Evaluate(t).Sub(hb.Evaluate(t)).Norm() - sumRadii
	}

	root, ok := kernel.FindFirstRoot(distFn, a, b, cfg.GetRootFindEpsT(), cfg.GetRootFindEpsF())
	e.TStar = root
	e.Valid = ok
}

// componentSpan returns the aggregate time span (min of all segment
// starts, max of all segment ends) across every node touched by a
// component's edges — the "component's aggregate time span" of §4.5
// step 2.
func componentSpan(edges []Edge) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	consider := func(box rtree.Box) {
		if box.Min[0] < lo {
			lo = box.Min[0]
		}
		if box.Max[0] > hi {
			hi = box.Max[0]
		}
	}
	for _, e := range edges {
		consider(e.BoxA)
		consider(e.BoxB)
	}
	return lo, hi
}

// earliest returns the winning instant among a component's valid edges:
// the minimum t* when dir is Forward, the maximum when Backward (§4.6
// "Directionality").
func earliest(edges []Edge, dir kernel.Direction) (float64, bool) {
	found := false
	var best float64
	for _, e := range edges {
		if !e.Valid {
			continue
		}
		if !found || better(e.TStar, best, dir) {
			best = e.TStar
			found = true
		}
	}
	return best, found
}

// better reports whether candidate beats incumbent under dir's ordering:
// smaller wins going forward, larger wins going backward.
func better(candidate, incumbent float64, dir kernel.Direction) bool {
	if dir == kernel.Backward {
		return candidate > incumbent
	}
	return candidate < incumbent
}

// segmentBox looks up a node's segment time interval in its owning
// body's local sequence.
func segmentBox(ctx *simcontext.Context, n node) (rtree.Box, bool) {
	seq, ok := ctx.Sequence(n.Body)
	if !ok {
		return rtree.Box{}, false
	}
	return seq.Box(rtree.ID(n.Segment))
}

// hermiteOf builds the Hermite evaluation endpoints for a node's segment,
// given its already-known time box.
func hermiteOf(ctx *simcontext.Context, n node, box rtree.Box) (kernel.HermiteEndpoints, bool) {
	seq, ok := ctx.Sequence(n.Body)
	if !ok {
		return kernel.HermiteEndpoints{}, false
	}
	seg, ok := seq.Payload(rtree.ID(n.Segment))
	if !ok {
		return kernel.HermiteEndpoints{}, false
	}
	return seg.Hermite(box.Min[0], box.Max[0]), true
}
