package simcontext

import (
	"context"
	"math"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/trajectory"
)

// segmentRef names where a rehydrated location row ended up, so the
// deferred partner cross-reference pass can translate row ids into
// segment ids.
type segmentRef struct {
	body BodyID
	seg  rtree.ID
}

// pendingCollision is a segment whose collision outcome was attached with
// row-id partner references that still need resolving against other
// bodies' rows (§4.4 "defer partner cross-references to a second pass").
type pendingCollision struct {
	body          BodyID
	seg           rtree.ID
	partnerRowIDs []int64
}

// Rehydrate runs the background fill of §4.4: pulls unknown body metadata
// and the window's location rows from store, synthesizes a segment for
// every consecutive pair of same-body rows, attaches any collision
// outcome (deferring partner resolution to a second pass over all rows),
// inserts into both indices, and finally rebuilds both with the
// configured packing factor.
//
// interrupt is checked between phases; if it fires, Rehydrate returns an
// *apriorierr.Error of KindInterrupted and the context is left partially
// filled — callers must discard it, per §4.4's "abandoned task's output,
// if any, is discarded."
func (c *Context) Rehydrate(ctx context.Context, store Store, interrupt <-chan struct{}) error {
	if interrupted(interrupt) {
		return apriorierr.Wrap(apriorierr.KindInterrupted, "rehydrate", apriorierr.ErrInterrupted)
	}

	newBodies, err := store.CurrentObjectsDelta(ctx, c.Layer, c.KnownBodyIDs())
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "current_objects_delta", err)
	}

	c.mu.Lock()
	for i := range newBodies {
		b := newBodies[i]
		c.bodies[b.ID] = &b
	}
	c.mu.Unlock()

	if interrupted(interrupt) {
		return apriorierr.Wrap(apriorierr.KindInterrupted, "rehydrate", apriorierr.ErrInterrupted)
	}

	// A prior Replicate slide may have already preserved this body's
	// tail via tentative-retain/clone-shrink; re-querying and
	// re-inserting that span here would duplicate it and break I1. Only
	// the rows after each body's trailing edge are missing, so the
	// range fetched is floored at the earliest such edge rather than
	// always c.Window.Start. A body with no surviving segment (new, or
	// carried forward by metadata only) still needs its full span.
	c.mu.RLock()
	queryStart := c.Window.Start
	lastEdgeByBody := make(map[BodyID]float64, len(c.sequences))
	allHaveHistory := len(c.bodies) > 0
	floor := c.Window.End
	for id := range c.bodies {
		seq, ok := c.sequences[id]
		if !ok {
			allHaveHistory = false
			continue
		}
		gc, ok := seq.LastGeneralizedCoordinate(kernel.Forward)
		if !ok {
			allHaveHistory = false
			continue
		}
		lastEdgeByBody[id] = gc.T
		if gc.T < floor {
			floor = gc.T
		}
	}
	if allHaveHistory && floor > queryStart {
		// Every known body already has a trailing edge from a prior
		// Replicate slide; nothing before the earliest one needs
		// refetching.
		queryStart = floor
	}
	c.mu.RUnlock()

	rows, err := store.RangeLocations(ctx, c.Layer, queryStart, c.Window.End)
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "range_locations", err)
	}

	byBody := make(map[BodyID][]LocationRow)
	for _, r := range rows {
		byBody[r.Body] = append(byBody[r.Body], r)
	}

	c.mu.Lock()
	rowToSegment := make(map[int64]segmentRef)
	var pending []pendingCollision

	for bodyID, bodyRows := range byBody {
		body, ok := c.bodies[bodyID]
		if !ok {
			continue
		}
		seq := c.sequenceFor(bodyID)
		lastEdge, hasHistory := lastEdgeByBody[bodyID]

		for i := 1; i < len(bodyRows); i++ {
			prev, cur := bodyRows[i-1], bodyRows[i]
			if hasHistory && cur.T <= lastEdge {
				// Already covered by a segment Replicate preserved.
				continue
			}

			seg := trajectory.Segment{
				StartPosition: prev.Position,
				EndPosition:   cur.Position,
				StartVelocity: prev.Velocity,
				EndVelocity:   cur.Velocity,
			}
			if cur.PostCollisionVelocity != nil {
				seg.Collision = &trajectory.CollisionOutcome{FinalVelocity: *cur.PostCollisionVelocity}
			}

			id := seq.AppendAfter(prev.T, cur.T, seg, kernel.Forward)
			rowToSegment[cur.RowID] = segmentRef{body: bodyID, seg: id}

			box := globalBox(prev.T, cur.T, prev.Position, cur.Position, body.Radius)
			c.global.Insert(box, GlobalEntry{Body: bodyID, SegmentID: id})

			if cur.PostCollisionVelocity != nil && len(cur.PartnerRowIDs) > 0 {
				pending = append(pending, pendingCollision{body: bodyID, seg: id, partnerRowIDs: cur.PartnerRowIDs})
			}
		}
	}

	for _, p := range pending {
		seq := c.sequences[p.body]
		seq.MutatePayload(p.seg, func(s *trajectory.Segment) {
			if s.Collision == nil {
				return
			}
			for _, rowID := range p.partnerRowIDs {
				if ref, ok := rowToSegment[rowID]; ok {
					s.Collision.Partners = append(s.Collision.Partners, trajectory.PartnerRef{
						BodyID:    int64(ref.body),
						SegmentID: int64(ref.seg),
					})
				}
			}
		})
	}
	c.mu.Unlock()

	if interrupted(interrupt) {
		return apriorierr.Wrap(apriorierr.KindInterrupted, "rehydrate", apriorierr.ErrInterrupted)
	}

	c.RebuildIndices()
	return nil
}

func interrupted(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// globalBox builds a segment's global-index bounding box: its time
// interval exactly, and the spatial envelope of its endpoints inflated by
// the body's radius in each axis (§3 "Global index").
func globalBox(tStart, tEnd float64, start, end kernel.Vector, radius float64) rtree.Box {
	minX, maxX := minMax(start.X, end.X)
	minY, maxY := minMax(start.Y, end.Y)
	minZ, maxZ := minMax(start.Z, end.Z)

	return rtree.Box{
		Min: []float64{tStart, minX - radius, minY - radius, minZ - radius},
		Max: []float64{tEnd, maxX + radius, maxY + radius, maxZ + radius},
	}
}

func minMax(a, b float64) (float64, float64) {
	return math.Min(a, b), math.Max(a, b)
}
