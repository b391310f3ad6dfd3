package collision

import (
	"fmt"
	"math"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/simcontext"
	"github.com/banshee-data/apriori/internal/trajectory"
)

// Resolve applies §4.6 to a Candidate returned by Detect: it computes
// each participating body's post-collision velocity (central-elastic
// along the aggregate contact normal, tangent preserved), truncates every
// involved segment to end at the collision instant with a collision
// outcome attached, cross-references the partner segments, and cancels
// every downstream segment the collision invalidates — cascading through
// any partner whose own tail depended on one of the newly-cancelled
// segments (§4.6 "Cancellation propagation").
func Resolve(ctx *simcontext.Context, cand Candidate, dir kernel.Direction, cfg *config.TuningConfig) error {
	adjacency := make(map[node][]node)
	nodeSet := make(map[node]bool)
	for _, e := range cand.Edges {
		adjacency[e.A] = append(adjacency[e.A], e.B)
		adjacency[e.B] = append(adjacency[e.B], e.A)
		nodeSet[e.A] = true
		nodeSet[e.B] = true
	}

	final := make(map[node]kernel.Vector, len(nodeSet))
	for n := range nodeSet {
		v, err := finalVelocity(ctx, n, adjacency[n], cand.TStar, cfg)
		if err != nil {
			return err
		}
		final[n] = v
	}

	newID := make(map[node]rtree.ID, len(nodeSet))
	for n := range nodeSet {
		id, err := truncate(ctx, n, cand.TStar, final[n])
		if err != nil {
			return err
		}
		newID[n] = id
	}

	for n := range nodeSet {
		seq, _ := ctx.Sequence(n.Body)
		var partners []trajectory.PartnerRef
		for _, nb := range adjacency[n] {
			partners = append(partners, trajectory.PartnerRef{
				BodyID:    int64(nb.Body),
				SegmentID: int64(newID[nb]),
			})
		}
		seq.MutatePayload(newID[n], func(s *trajectory.Segment) {
			if s.Collision != nil {
				s.Collision.Partners = partners
			}
		})
	}

	worklist := make([]purgeKey, 0, len(nodeSet))
	for n := range nodeSet {
		worklist = append(worklist, purgeKey{body: n.Body, from: cand.TStar})
	}
	cascade(ctx, worklist, dir)

	return nil
}

// finalVelocity computes node n's post-collision velocity per §4.6: the
// aggregate contact normal and impulse across every neighbor, decomposed
// against n's current end velocity.
func finalVelocity(ctx *simcontext.Context, n node, neighbors []node, tStar float64, cfg *config.TuningConfig) (kernel.Vector, error) {
	box, ok := segmentBox(ctx, n)
	if !ok {
		return kernel.Vector{}, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: segment %d not found for body %d", n.Segment, n.Body))
	}
	seq, _ := ctx.Sequence(n.Body)
	seg, ok := seq.Payload(rtree.ID(n.Segment))
	if !ok {
		return kernel.Vector{}, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: segment payload %d not found for body %d", n.Segment, n.Body))
	}
	body, ok := ctx.Body(n.Body)
	if !ok {
		return kernel.Vector{}, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: body %d not found", n.Body))
	}

	h := seg.Hermite(box.Min[0], box.Max[0])
	pLhs := h.Evaluate(tStar)
	vLhs := seg.EndVelocity

	var mass, impulse float64
	var normalSum kernel.Vector
	for _, nb := range neighbors {
		nbBox, ok := segmentBox(ctx, nb)
		if !ok {
			continue
		}
		nbSeq, _ := ctx.Sequence(nb.Body)
		nbSeg, ok := nbSeq.Payload(rtree.ID(nb.Segment))
		if !ok {
			continue
		}
		nbBody, ok := ctx.Body(nb.Body)
		if !ok {
			continue
		}

		nbH := nbSeg.Hermite(nbBox.Min[0], nbBox.Max[0])
		pRhs := nbH.Evaluate(tStar)

		contactNormal := pLhs.Sub(pRhs).Normalized()
		vRhsN := nbSeg.EndVelocity.Dot(contactNormal)

		mass += nbBody.Mass
		impulse += nbBody.Mass * vRhsN
		normalSum = normalSum.Add(contactNormal)
	}

	normal := normalSum.Normalized()
	if normal == (kernel.Vector{}) {
		// Degenerate contact geometry (coincident positions): leave the
		// velocity unchanged rather than divide by an undefined normal.
		return vLhs, nil
	}

	vPar := vLhs.Dot(normal)
	vPerp := vLhs.Sub(normal.Scale(vPar))

	denom := body.Mass + mass
	if denom == 0 {
		return vLhs, nil
	}
	rawVPar := ((body.Mass-mass)*vPar + 2*impulse) / denom
	scaledVPar := rawVPar * cfg.GetCollisionVelocityScale()

	return normal.Scale(scaledVPar).Add(vPerp), nil
}

// truncate rewrites n's segment to end at tStar, attaching a collision
// outcome with the given final velocity, and swaps the global-index
// entry for the rewritten box (§4.6: "its segment containing t* is
// truncated..."). Partners are filled in by the caller's second pass once
// every node's new id is known.
func truncate(ctx *simcontext.Context, n node, tStar float64, final kernel.Vector) (rtree.ID, error) {
	seq, ok := ctx.Sequence(n.Body)
	if !ok {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: sequence not found for body %d", n.Body))
	}
	box, ok := seq.Box(rtree.ID(n.Segment))
	if !ok {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: segment box not found for %d/%d", n.Body, n.Segment))
	}
	seg, ok := seq.Payload(rtree.ID(n.Segment))
	if !ok {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: segment payload not found for %d/%d", n.Body, n.Segment))
	}
	body, ok := ctx.Body(n.Body)
	if !ok {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: body not found for %d", n.Body))
	}

	h := seg.Hermite(box.Min[0], box.Max[0])
	collisionPos := h.Evaluate(tStar)

	outcome := trajectory.CollisionOutcome{FinalVelocity: final}
	newID, ok := seq.TruncateAndAttachCollision(rtree.ID(n.Segment), box.Min[0], tStar, collisionPos, outcome)
	if !ok {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("collision: truncate failed for %d/%d", n.Body, n.Segment))
	}

	ctx.RemoveGlobalEntriesFor(map[simcontext.BodyID]map[rtree.ID]bool{
		n.Body: {rtree.ID(n.Segment): true},
	})
	newBox := newGlobalBox(box.Min[0], tStar, seg.StartPosition, collisionPos, body.Radius)
	ctx.InsertGlobal(newBox, n.Body, newID)

	return newID, nil
}

// purgeKey is one (body, from-time) entry in the cancellation worklist
// of §4.6/§9: everything in body's sequence from `from` onward (in dir's
// sense) must be purged.
type purgeKey struct {
	body simcontext.BodyID
	from float64
}

// cascade drains the cancellation worklist, propagating into any
// partner's tail that depended on a now-cancelled collision outcome
// (§4.6 "Cancellation propagation"). Each (body, from) pair is processed
// at most once, bounding the worklist by the number of segments in the
// window (§9 "Collision-cascade termination").
func cascade(ctx *simcontext.Context, worklist []purgeKey, dir kernel.Direction) {
	visited := make(map[purgeKey]bool)

	for len(worklist) > 0 {
		k := worklist[0]
		worklist = worklist[1:]
		if visited[k] {
			continue
		}
		visited[k] = true

		seq, ok := ctx.Sequence(k.body)
		if !ok {
			continue
		}
		cancelled := seq.CancelFrom(k.from, dir)
		if len(cancelled) == 0 {
			continue
		}

		targets := map[simcontext.BodyID]map[rtree.ID]bool{k.body: {}}
		for _, c := range cancelled {
			targets[k.body][c.ID] = true
		}
		ctx.RemoveGlobalEntriesFor(targets)

		for _, c := range cancelled {
			if c.Segment.Collision == nil {
				continue
			}
			for _, p := range c.Segment.Collision.Partners {
				partnerBody := simcontext.BodyID(p.BodyID)
				partnerSeq, ok := ctx.Sequence(partnerBody)
				if !ok {
					continue
				}
				pBox, ok := partnerSeq.Box(rtree.ID(p.SegmentID))
				if !ok {
					continue
				}
				from := pBox.Max[0]
				if dir == kernel.Backward {
					from = pBox.Min[0]
				}
				worklist = append(worklist, purgeKey{body: partnerBody, from: from})
			}
		}
	}
}

// newGlobalBox mirrors simcontext's rehydration bounding-box rule: the
// segment's time interval exactly, spatial extent inflated by radius.
func newGlobalBox(tStart, tEnd float64, start, end kernel.Vector, radius float64) rtree.Box {
	minX, maxX := math.Min(start.X, end.X), math.Max(start.X, end.X)
	minY, maxY := math.Min(start.Y, end.Y), math.Max(start.Y, end.Y)
	minZ, maxZ := math.Min(start.Z, end.Z), math.Max(start.Z, end.Z)

	return rtree.Box{
		Min: []float64{tStart, minX - radius, minY - radius, minZ - radius},
		Max: []float64{tEnd, maxX + radius, maxY + radius, maxZ + radius},
	}
}
