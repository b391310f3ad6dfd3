package simcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/rtree"
)

type fakeStore struct {
	bodies []Body
	rows   []LocationRow
}

func (f *fakeStore) CurrentObjectsDelta(_ context.Context, _ LayerID, known []BodyID) ([]Body, error) {
	knownSet := make(map[BodyID]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}
	var out []Body
	for _, b := range f.bodies {
		if !knownSet[b.ID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) RangeLocations(_ context.Context, _ LayerID, tLo, tHi float64) ([]LocationRow, error) {
	var out []LocationRow
	for _, r := range f.rows {
		if r.T >= tLo && r.T <= tHi {
			out = append(out, r)
		}
	}
	return out, nil
}

func testConfig() *config.TuningConfig { return config.EmptyTuningConfig() }

func TestRehydrateBuildsSegmentsAndGlobalIndex(t *testing.T) {
	store := &fakeStore{
		bodies: []Body{{ID: 1, Name: "a", Radius: 1, Mass: 1}},
		rows: []LocationRow{
			{RowID: 1, Body: 1, T: 0, Position: kernel.Vector{}, Velocity: kernel.Vector{X: 1}},
			{RowID: 2, Body: 1, T: 1, Position: kernel.Vector{X: 1}, Velocity: kernel.Vector{X: 1}},
			{RowID: 3, Body: 1, T: 2, Position: kernel.Vector{X: 2}, Velocity: kernel.Vector{X: 1}},
		},
	}

	ctx := New(1, 1, Window{Start: 0, End: 2}, testConfig())
	require.NoError(t, ctx.Rehydrate(context.Background(), store, nil))

	require.Len(t, ctx.Bodies(), 1)
	seq, ok := ctx.Sequence(1)
	require.True(t, ok)
	require.Equal(t, 2, seq.Len())

	results := ctx.Locate(1.5)
	require.Len(t, results, 1)
	require.Equal(t, StatusLive, results[0].Status)
}

func TestRehydrateResolvesCollisionPartners(t *testing.T) {
	pcv := kernel.Vector{X: -1}
	store := &fakeStore{
		bodies: []Body{{ID: 1, Radius: 1}, {ID: 2, Radius: 1}},
		rows: []LocationRow{
			{RowID: 1, Body: 1, T: 0, Position: kernel.Vector{}, Velocity: kernel.Vector{X: 1}},
			{RowID: 2, Body: 1, T: 1, Position: kernel.Vector{X: 1}, Velocity: kernel.Vector{X: 1}, PostCollisionVelocity: &pcv, PartnerRowIDs: []int64{4}},
			{RowID: 3, Body: 2, T: 0, Position: kernel.Vector{X: 3}, Velocity: kernel.Vector{X: -1}},
			{RowID: 4, Body: 2, T: 1, Position: kernel.Vector{X: 2}, Velocity: kernel.Vector{X: -1}, PostCollisionVelocity: &kernel.Vector{X: 1}, PartnerRowIDs: []int64{2}},
		},
	}

	ctx := New(1, 1, Window{Start: 0, End: 1}, testConfig())
	require.NoError(t, ctx.Rehydrate(context.Background(), store, nil))

	seq1, _ := ctx.Sequence(1)
	last, ok := seq1.LastGeneralizedCoordinate(kernel.Forward)
	require.True(t, ok)
	require.True(t, last.Velocity.EqualWithinAbs(pcv, 1e-12), "effective velocity should come from the collision outcome")
}

func TestRehydrateRespectsInterrupt(t *testing.T) {
	store := &fakeStore{}
	ctx := New(1, 1, Window{Start: 0, End: 1}, testConfig())

	interrupter := NewInterrupter()
	interrupter.Fire()

	err := ctx.Rehydrate(context.Background(), store, interrupter.C())
	require.Error(t, err)
}

func TestReplicateDifferentSessionReturnsFreshContext(t *testing.T) {
	ctx := New(1, 1, Window{Start: 0, End: 10}, testConfig())
	ctx.bodies[1] = &Body{ID: 1, Name: "a"}

	next := ctx.Replicate(2, 1, Window{Start: 5, End: 15})
	require.Len(t, next.Bodies(), 0, "different session must rehydrate everything")
}

func TestReplicateSlideRetainsOverlappingSegments(t *testing.T) {
	store := &fakeStore{
		bodies: []Body{{ID: 1, Radius: 0.1}},
		rows: []LocationRow{
			{RowID: 1, Body: 1, T: 0, Position: kernel.Vector{}},
			{RowID: 2, Body: 1, T: 2, Position: kernel.Vector{X: 2}},
			{RowID: 3, Body: 1, T: 4, Position: kernel.Vector{X: 4}},
			{RowID: 4, Body: 1, T: 6, Position: kernel.Vector{X: 6}},
		},
	}
	ctx := New(1, 1, Window{Start: 0, End: 6}, testConfig())
	require.NoError(t, ctx.Rehydrate(context.Background(), store, nil))

	next := ctx.Replicate(1, 1, Window{Start: 3, End: 9})
	require.Equal(t, Window{Start: 3, End: 9}, next.Window)

	seq, ok := next.Sequence(1)
	require.True(t, ok)
	// Only [0,2] ends before t=3 and is dropped; segments ending at or
	// after 3 survive: [2,4] and [4,6].
	require.Equal(t, 2, seq.Len())
}

func TestRehydrateAfterReplicateSlideFetchesOnlyMissingTail(t *testing.T) {
	store := &fakeStore{
		bodies: []Body{{ID: 1, Radius: 0.1}},
		rows: []LocationRow{
			{RowID: 1, Body: 1, T: 0, Position: kernel.Vector{}},
			{RowID: 2, Body: 1, T: 2, Position: kernel.Vector{X: 2}},
			{RowID: 3, Body: 1, T: 4, Position: kernel.Vector{X: 4}},
			{RowID: 4, Body: 1, T: 6, Position: kernel.Vector{X: 6}},
			{RowID: 5, Body: 1, T: 8, Position: kernel.Vector{X: 8}},
		},
	}
	ctx := New(1, 1, Window{Start: 0, End: 6}, testConfig())
	require.NoError(t, ctx.Rehydrate(context.Background(), store, nil))

	next := ctx.Replicate(1, 1, Window{Start: 3, End: 9})
	require.NoError(t, next.Rehydrate(context.Background(), store, nil))

	seq, ok := next.Sequence(1)
	require.True(t, ok)
	// Surviving from the slide: [2,4] and [4,6]. Rehydrate should only
	// add the missing tail [6,8], not re-insert any of the retained
	// segments.
	require.Equal(t, 3, seq.Len())

	var globalCount int
	next.Global().Search(hugeGlobalBox, func(rtree.ID, GlobalEntry) { globalCount++ })
	require.Equal(t, 3, globalCount, "global index must have exactly one entry per local segment")

	results := next.Locate(5)
	require.Len(t, results, 1)
	require.Equal(t, StatusLive, results[0].Status)
	require.True(t, results[0].Position.EqualWithinAbs(kernel.Vector{X: 5}, 1e-9))
}

func TestReplicateNonOverlappingCarriesMetadataOnly(t *testing.T) {
	ctx := New(1, 1, Window{Start: 0, End: 5}, testConfig())
	ctx.bodies[1] = &Body{ID: 1, Name: "a"}

	next := ctx.Replicate(1, 1, Window{Start: 100, End: 110})
	require.Len(t, next.Bodies(), 1)
	_, ok := next.Sequence(1)
	require.False(t, ok, "no segments should carry over")
}
