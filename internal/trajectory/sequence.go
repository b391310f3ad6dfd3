package trajectory

import (
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
)

// GenCoord is a generalized coordinate (§3): a point in time together with
// the position and velocity a body has there.
type GenCoord struct {
	T        float64
	Position kernel.Vector
	Velocity kernel.Vector
}

// Sequence is the one-dimensional per-body index of §4.2 whose payloads
// are Segment values (§4.3). It wraps rtree.Tree[Segment] with Dims=1,
// the dimension being t.
type Sequence struct {
	index *rtree.Tree[Segment]

	// lastForward/lastBackward cache the current trailing edge in each
	// direction so LastGeneralizedCoordinate doesn't need a tree-wide
	// scan on every call; AppendAfter keeps them up to date. Both are
	// nil until the first segment is appended in that direction.
	lastForward  *edge
	lastBackward *edge
}

type edge struct {
	id rtree.ID
	t  float64
}

// NewSequence constructs an empty per-body index with the given R-tree
// branching parameters.
func NewSequence(minFanout, maxFanout int) *Sequence {
	return &Sequence{index: rtree.New[Segment](1, minFanout, maxFanout)}
}

// AppendAfter inserts segment under the time interval [tStart, tEnd] and
// returns its stable id. It checks no invariants, I1 (time/position
// contiguity) included — the caller (rehydration or the collision
// resolver) is responsible for supplying a segment whose
// StartPosition/StartVelocity match the previous segment's end state.
func (s *Sequence) AppendAfter(tStart, tEnd float64, segment Segment, dir kernel.Direction) rtree.ID {
	id := s.index.Insert(rtree.Box{Min: []float64{tStart}, Max: []float64{tEnd}}, segment)

	switch dir {
	case kernel.Backward:
		if s.lastBackward == nil || tStart < s.lastBackward.t {
			s.lastBackward = &edge{id: id, t: tStart}
		}
	default:
		if s.lastForward == nil || tEnd > s.lastForward.t {
			s.lastForward = &edge{id: id, t: tEnd}
		}
	}
	return id
}

// LastGeneralizedCoordinate returns the generalized coordinate at the
// trailing edge of the sequence in the given direction — the point from
// which the next forward (or backward) segment should continue (§4.3).
// effective_end_velocity is used in place of end_velocity whenever the
// trailing segment carries a collision outcome.
func (s *Sequence) LastGeneralizedCoordinate(dir kernel.Direction) (GenCoord, bool) {
	e := s.lastForward
	if dir == kernel.Backward {
		e = s.lastBackward
	}
	if e == nil {
		return GenCoord{}, false
	}

	seg, ok := s.index.Payload(e.id)
	if !ok {
		return GenCoord{}, false
	}

	if dir == kernel.Backward {
		return GenCoord{T: e.t, Position: seg.StartPosition, Velocity: seg.StartVelocity}, true
	}
	return GenCoord{T: e.t, Position: seg.EndPosition, Velocity: seg.EffectiveEndVelocity()}, true
}

// At evaluates the body's position and velocity at time t by locating the
// segment whose interval contains it and Hermite-interpolating (§4.4
// location query; §3 "Motion inside a segment...").
func (s *Sequence) At(t float64) (GenCoord, rtree.ID, bool) {
	id, box, seg, ok := s.segmentContaining(t)
	if !ok {
		return GenCoord{}, 0, false
	}
	h := seg.Hermite(box.Min[0], box.Max[0])
	return GenCoord{T: t, Position: h.Evaluate(t), Velocity: h.Velocity(t)}, id, true
}

// segmentContaining finds the (at most one, per I1) live segment whose
// interval contains t. When t sits exactly on a shared boundary between
// two segments, the earlier segment (the one ending at t) is preferred,
// matching the half-open convention used for the collision search's
// valid interval.
func (s *Sequence) segmentContaining(t float64) (rtree.ID, rtree.Box, Segment, bool) {
	query := rtree.Box{Min: []float64{t}, Max: []float64{t}}

	var bestID rtree.ID
	var bestBox rtree.Box
	var bestSeg Segment
	found := false
	foundExactEnd := false

	s.index.Search(query, func(id rtree.ID, seg Segment) {
		box, ok := s.index.Box(id)
		if !ok {
			return
		}
		if !found {
			bestID, bestBox, bestSeg, found = id, box, seg, true
			foundExactEnd = t == box.Max[0]
			return
		}
		if foundExactEnd && t != box.Max[0] {
			// Prefer the segment ending at t over one merely starting there.
			return
		}
		if !foundExactEnd && t == box.Max[0] {
			bestID, bestBox, bestSeg = id, box, seg
			foundExactEnd = true
		}
	})

	return bestID, bestBox, bestSeg, found
}

// Box exposes the time interval of a previously inserted segment, needed
// by the collision detector when computing a valid search interval (§4.5).
func (s *Sequence) Box(id rtree.ID) (rtree.Box, bool) {
	return s.index.Box(id)
}

// Payload exposes the segment stored at id.
func (s *Sequence) Payload(id rtree.ID) (Segment, bool) {
	return s.index.Payload(id)
}

// MutatePayload applies fn to the segment stored at id under the index's
// exclusive lock — used by the collision resolver to attach a
// CollisionOutcome to a segment whose tail is being cut short (§4.6).
func (s *Sequence) MutatePayload(id rtree.ID, fn func(*Segment)) bool {
	return s.index.MutatePayload(id, fn)
}

// TruncateAndAttachCollision replaces the segment at id with one covering
// [tStart, tCollision] instead of its original interval, whose end
// position is the interpolated collision point and whose end velocity is
// preserved from the original segment, carrying the given collision
// outcome (§4.6: "its segment containing t* is truncated to end at t*
// with the original interpolated position as end position and the
// original end_velocity as end_velocity; a collision outcome ... is
// attached"). The old entry is permanently removed and a new one
// inserted, since an R-tree entry's box is immutable once indexed.
func (s *Sequence) TruncateAndAttachCollision(id rtree.ID, tStart, tCollision float64, collisionPosition kernel.Vector, outcome CollisionOutcome) (rtree.ID, bool) {
	seg, ok := s.index.Payload(id)
	if !ok {
		return 0, false
	}
	s.index.Remove(id)

	seg.EndPosition = collisionPosition
	seg.Collision = &outcome

	newID := s.index.Insert(rtree.Box{Min: []float64{tStart}, Max: []float64{tCollision}}, seg)

	s.lastForward = nil
	s.lastBackward = nil
	s.recomputeEdges()

	return newID, true
}

// CancelFrom permanently removes every segment starting at or after t (in
// the forward direction) or ending at or before t (backward) — the local
// half of the collision resolver's cancellation cascade (§4.6, §9): "all
// later segments for that body are cancelled and their global-index
// entries removed." Returns the cancelled (id, segment) pairs — the
// payload is captured before removal so a caller can inspect a cancelled
// segment's own CollisionOutcome to continue the cascade.
func (s *Sequence) CancelFrom(t float64, dir kernel.Direction) []CancelledSegment {
	var toCancel []CancelledSegment
	s.index.Search(rtree.Box{Min: []float64{t}, Max: []float64{t + hugeSpan}}, func(id rtree.ID, seg Segment) {
		if dir == kernel.Backward {
			return
		}
		box, ok := s.index.Box(id)
		if ok && box.Min[0] >= t {
			toCancel = append(toCancel, CancelledSegment{ID: id, Segment: seg})
		}
	})
	if dir == kernel.Backward {
		s.index.Search(rtree.Box{Min: []float64{t - hugeSpan}, Max: []float64{t}}, func(id rtree.ID, seg Segment) {
			box, ok := s.index.Box(id)
			if ok && box.Max[0] <= t {
				toCancel = append(toCancel, CancelledSegment{ID: id, Segment: seg})
			}
		})
	}

	for _, c := range toCancel {
		s.index.Remove(c.ID)
	}

	s.lastForward = nil
	s.lastBackward = nil
	s.recomputeEdges()

	return toCancel
}

// CancelledSegment is one entry removed by CancelFrom, capturing the
// segment's payload as it was immediately before removal.
type CancelledSegment struct {
	ID      rtree.ID
	Segment Segment
}

// recomputeEdges rescans the surviving segments to re-establish the
// trailing edge cache after a cancellation. The per-body sequence is
// small enough (bounded by the context window) that a full scan here is
// cheap relative to the cancellation it follows.
func (s *Sequence) recomputeEdges() {
	s.index.Search(rtree.Box{Min: []float64{-hugeSpan}, Max: []float64{hugeSpan}}, func(id rtree.ID, _ Segment) {
		box, ok := s.index.Box(id)
		if !ok {
			return
		}
		if s.lastForward == nil || box.Max[0] > s.lastForward.t {
			s.lastForward = &edge{id: id, t: box.Max[0]}
		}
		if s.lastBackward == nil || box.Min[0] < s.lastBackward.t {
			s.lastBackward = &edge{id: id, t: box.Min[0]}
		}
	})
}

// hugeSpan bounds the all-time query used by CancelFrom/recomputeEdges; a
// context's time window is always finite and much smaller than this.
const hugeSpan = 1e18

// Len reports the number of live segments.
func (s *Sequence) Len() int { return s.index.Len() }

// Rebuild repacks the underlying index (§4.4 rehydration's final step).
func (s *Sequence) Rebuild(packingFactor float64) { s.index.Rebuild(packingFactor) }

// TentativeRetain marks every segment for which keep(box) is false as
// tentatively removed, across the whole sequence — the local-index half
// of context replication's window-slide case (§4.4, §9).
func (s *Sequence) TentativeRetain(keep func(rtree.Box) bool) {
	s.index.TentativeRetain(rtree.Box{Min: []float64{-hugeSpan}, Max: []float64{hugeSpan}}, func(tr *rtree.Tree[Segment], id rtree.ID) bool {
		box, ok := tr.Box(id)
		if !ok {
			return false
		}
		return keep(box)
	})
}

// RestoreRemoved undoes an in-flight TentativeRetain pass, used when a
// replication attempt is abandoned before CloneShrink commits it.
func (s *Sequence) RestoreRemoved() { s.index.RestoreRemoved() }

// CloneShrink produces a new Sequence containing exactly the non-removed
// segments of s, with its trailing-edge cache recomputed from scratch,
// along with the old-ID-to-new-ID remap the underlying rtree.Tree.CloneShrink
// produced — callers (the global index's own replication) must rewrite
// any cross-reference keyed on a surviving segment's old ID through this
// map, since CloneShrink always renumbers.
func (s *Sequence) CloneShrink() (*Sequence, map[rtree.ID]rtree.ID) {
	newIndex, remap := s.index.CloneShrink()
	out := &Sequence{index: newIndex}
	out.recomputeEdges()
	return out, remap
}
