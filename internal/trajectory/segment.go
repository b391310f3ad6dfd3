// Package trajectory implements the per-body sequence of trajectory
// segments (§4.3): the atomic unit of computed motion for one body, and
// the one-dimensional index (over rtree.Tree with Dims=1) that orders
// them.
package trajectory

import "github.com/banshee-data/apriori/internal/kernel"

// PartnerRef names the other body/segment a collision outcome resolved
// against, so the cross-reference can be followed without embedding a
// pointer to the partner's own index entry (§3 invariant I3).
type PartnerRef struct {
	BodyID    int64
	SegmentID int64
}

// CollisionOutcome is attached to a segment whose tail was cut short by a
// collision (§3, §4.6). FinalVelocity supersedes EndVelocity as the start
// velocity of the body's next segment; EndVelocity is kept so interpolation
// up to the collision instant is still exact.
type CollisionOutcome struct {
	FinalVelocity kernel.Vector
	Partners      []PartnerRef
}

// Segment is the atomic unit of computed motion for one body (§3). Its
// time interval [TStart, TEnd] lives in the index entry's bounding box,
// not here, matching §4.2's "payload carries no box" split between a
// tree's entries and their geometry.
type Segment struct {
	StartPosition kernel.Vector
	EndPosition   kernel.Vector
	StartVelocity kernel.Vector
	EndVelocity   kernel.Vector

	Collision *CollisionOutcome
}

// EffectiveEndVelocity is the velocity a following segment should start
// from: the collision outcome's FinalVelocity when present, else the
// segment's own EndVelocity (§4.3).
func (s Segment) EffectiveEndVelocity() kernel.Vector {
	if s.Collision != nil {
		return s.Collision.FinalVelocity
	}
	return s.EndVelocity
}

// Hermite builds the interpolation endpoints for this segment given its
// time interval, ready for kernel.HermiteEndpoints.Evaluate/Velocity (§3:
// "Motion inside a segment is evaluated by cubic Hermite interpolation on
// (start_position, start_velocity, t_start, end_position, end_velocity,
// t_end)" — note this always uses EndVelocity, not EffectiveEndVelocity,
// since interpolation up to the collision instant must remain exact).
func (s Segment) Hermite(tStart, tEnd float64) kernel.HermiteEndpoints {
	return kernel.HermiteEndpoints{
		P0: s.StartPosition,
		P1: s.EndPosition,
		V0: s.StartVelocity,
		V1: s.EndVelocity,
		T0: tStart,
		T1: tEnd,
	}
}
