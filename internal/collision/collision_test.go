package collision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// fakeStore replays a fixed set of bodies/rows, mirroring
// internal/simcontext's own test double.
type fakeStore struct {
	bodies []simcontext.Body
	rows   []simcontext.LocationRow
}

func (f *fakeStore) CurrentObjectsDelta(_ context.Context, _ simcontext.LayerID, known []simcontext.BodyID) ([]simcontext.Body, error) {
	knownSet := make(map[simcontext.BodyID]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}
	var out []simcontext.Body
	for _, b := range f.bodies {
		if !knownSet[b.ID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) RangeLocations(_ context.Context, _ simcontext.LayerID, tLo, tHi float64) ([]simcontext.LocationRow, error) {
	var out []simcontext.LocationRow
	for _, r := range f.rows {
		if r.T >= tLo && r.T <= tHi {
			out = append(out, r)
		}
	}
	return out, nil
}

func testConfig() *config.TuningConfig { return config.EmptyTuningConfig() }

// headOnContext builds the S3 scenario: body A at x=-5 moving +1, body B at
// x=+5 moving -1, both radius 1 — straight-line motion (equal start/end
// velocity per segment collapses the Hermite piece to a line) whose
// segments are broken at t=5 and t=8 so the true collision instant (t=4)
// falls strictly inside the first segment and the second segment becomes
// a cancellation target once it is resolved.
func headOnContext(t *testing.T) (*simcontext.Context, simcontext.BodyID, simcontext.BodyID) {
	t.Helper()
	const bodyA, bodyB simcontext.BodyID = 1, 2

	store := &fakeStore{
		bodies: []simcontext.Body{
			{ID: bodyA, Name: "a", Radius: 1, Mass: 1},
			{ID: bodyB, Name: "b", Radius: 1, Mass: 1},
		},
		rows: []simcontext.LocationRow{
			{RowID: 1, Body: bodyA, T: 0, Position: kernel.Vector{X: -5}, Velocity: kernel.Vector{X: 1}},
			{RowID: 2, Body: bodyA, T: 5, Position: kernel.Vector{X: 0}, Velocity: kernel.Vector{X: 1}},
			{RowID: 3, Body: bodyA, T: 8, Position: kernel.Vector{X: 3}, Velocity: kernel.Vector{X: 1}},
			{RowID: 4, Body: bodyB, T: 0, Position: kernel.Vector{X: 5}, Velocity: kernel.Vector{X: -1}},
			{RowID: 5, Body: bodyB, T: 5, Position: kernel.Vector{X: 0}, Velocity: kernel.Vector{X: -1}},
			{RowID: 6, Body: bodyB, T: 8, Position: kernel.Vector{X: -3}, Velocity: kernel.Vector{X: -1}},
		},
	}

	ctx := simcontext.New(1, 1, simcontext.Window{Start: 0, End: 8}, testConfig())
	require.NoError(t, ctx.Rehydrate(context.Background(), store, nil))
	return ctx, bodyA, bodyB
}

// globalBoxOf returns the 4-D global-index box of body's segment seg, the
// box Detect searches with.
func globalBoxOf(ctx *simcontext.Context, body simcontext.BodyID, seg rtree.ID) (rtree.Box, bool) {
	var gid rtree.ID
	var found bool
	ctx.Global().Search(rtree.Box{Min: []float64{-1e9, -1e9, -1e9, -1e9}, Max: []float64{1e9, 1e9, 1e9, 1e9}}, func(id rtree.ID, e simcontext.GlobalEntry) {
		if e.Body == body && e.SegmentID == seg {
			gid, found = id, true
		}
	})
	if !found {
		return rtree.Box{}, false
	}
	return ctx.Global().Box(gid)
}

func TestDetectFindsHeadOnCollisionNearT4(t *testing.T) {
	ctx, bodyA, bodyB := headOnContext(t)
	cfg := testConfig()

	seqA, ok := ctx.Sequence(bodyA)
	require.True(t, ok)
	_, segA, ok := seqA.At(2)
	require.True(t, ok, "t=2 must fall inside body A's first segment")
	boxA, ok := globalBoxOf(ctx, bodyA, segA)
	require.True(t, ok)

	cand, found := Detect(ctx, bodyA, segA, boxA, kernel.Forward, cfg)
	require.True(t, found, "overlapping approach must be detected as a collision candidate")
	require.InDelta(t, 4.0, cand.TStar, 1e-3)
	require.Len(t, cand.Edges, 1)
	require.Equal(t, bodyB, cand.Edges[0].B.Body)
}

func TestResolveSwapsVelocitiesAndCancelsDownstream(t *testing.T) {
	ctx, bodyA, bodyB := headOnContext(t)
	cfg := testConfig()

	seqA, _ := ctx.Sequence(bodyA)
	_, segA, ok := seqA.At(2)
	require.True(t, ok)
	boxA, _ := globalBoxOf(ctx, bodyA, segA)

	require.Equal(t, 2, seqA.Len(), "sanity: body A starts with 2 live segments before resolution")

	cand, found := Detect(ctx, bodyA, segA, boxA, kernel.Forward, cfg)
	require.True(t, found)

	require.NoError(t, Resolve(ctx, cand, kernel.Forward, cfg))

	seqA, _ = ctx.Sequence(bodyA)
	seqB, _ := ctx.Sequence(bodyB)

	// Equal-mass head-on collision swaps velocities.
	lastA, ok := seqA.LastGeneralizedCoordinate(kernel.Forward)
	require.True(t, ok)
	require.InDelta(t, -1, lastA.Velocity.X, 1e-6)

	lastB, ok := seqB.LastGeneralizedCoordinate(kernel.Forward)
	require.True(t, ok)
	require.InDelta(t, 1, lastB.Velocity.X, 1e-6)

	// The contact midpoint should sit near the origin, per S3 (each
	// body's own center is offset by its radius from that midpoint).
	require.InDelta(t, 0, (lastA.Position.X+lastB.Position.X)/2, 1e-2)

	// P8: no segment with tStart > t* survives for either body.
	require.Equal(t, 1, seqA.Len(), "the post-collision tail segment must be cancelled")
	require.Equal(t, 1, seqB.Len(), "the post-collision tail segment must be cancelled")

	// I2: the surviving truncated segments still have exactly one global
	// index entry each (the cancelled tails' entries are gone too).
	var liveGlobal int
	ctx.Global().Search(rtree.Box{Min: []float64{-1e9, -1e9, -1e9, -1e9}, Max: []float64{1e9, 1e9, 1e9, 1e9}}, func(_ rtree.ID, _ simcontext.GlobalEntry) {
		liveGlobal++
	})
	require.Equal(t, 2, liveGlobal)
}
