package rtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func box1D(min, max float64) Box {
	return Box{Min: []float64{min}, Max: []float64{max}}
}

// TestSearchCorrectness is P3: for every inserted (bbox, payload) and every
// query box q, the payload is reported iff bbox ∩ q ≠ ∅, under random
// insertion order.
func TestSearchCorrectness(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	tree := New[int](1, 2, 5)

	type inserted struct {
		box Box
		val int
	}
	var all []inserted
	for i := 0; i < 200; i++ {
		lo := rnd.Float64() * 100
		hi := lo + rnd.Float64()*5
		b := box1D(lo, hi)
		tree.Insert(b, i)
		all = append(all, inserted{b, i})
	}

	for q := 0; q < 50; q++ {
		lo := rnd.Float64() * 100
		hi := lo + rnd.Float64()*10
		query := box1D(lo, hi)

		want := map[int]bool{}
		for _, it := range all {
			if it.box.Overlaps(query) {
				want[it.val] = true
			}
		}

		got := map[int]bool{}
		tree.Search(query, func(id ID, v int) {
			got[v] = true
		})

		require.Equal(t, want, got)
	}
}

func TestInsertReturnsStableID(t *testing.T) {
	tree := New[string](1, 2, 5)
	id := tree.Insert(box1D(0, 1), "hello")

	v, ok := tree.Payload(id)
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestMutatePayload(t *testing.T) {
	tree := New[int](1, 2, 5)
	id := tree.Insert(box1D(0, 1), 10)

	ok := tree.MutatePayload(id, func(v *int) { *v = 99 })
	require.True(t, ok)

	v, _ := tree.Payload(id)
	require.Equal(t, 99, v)
}

func TestTentativeRetainAndRestore(t *testing.T) {
	tree := New[int](1, 2, 5)
	var ids []ID
	for i := 0; i < 10; i++ {
		ids = append(ids, tree.Insert(box1D(float64(i), float64(i+1)), i))
	}

	// Tentatively remove everything ending before t=5.
	tree.TentativeRetain(box1D(0, 10), func(tr *Tree[int], id ID) bool {
		b, _ := tr.Box(id)
		return b.Max[0] >= 5
	})

	var seen []int
	tree.Search(box1D(0, 10), func(id ID, v int) { seen = append(seen, v) })
	require.Len(t, seen, 6, "entries ending before t=5 should be tentatively hidden")

	// Source keeps full history visible to a reader who started before the
	// retain landed: restoring should bring everything back.
	tree.RestoreRemoved()
	seen = nil
	tree.Search(box1D(0, 10), func(id ID, v int) { seen = append(seen, v) })
	require.Len(t, seen, 10)
}

func TestCloneShrinkDoesNotMutateSource(t *testing.T) {
	tree := New[int](1, 2, 5)
	for i := 0; i < 10; i++ {
		tree.Insert(box1D(float64(i), float64(i+1)), i)
	}

	tree.TentativeRetain(box1D(0, 10), func(tr *Tree[int], id ID) bool {
		b, _ := tr.Box(id)
		return b.Max[0] >= 5
	})

	clone, remap := tree.CloneShrink()

	require.Equal(t, 6, clone.Len())
	require.Equal(t, 6, tree.Len(), "source's removed-marks must remain untouched")
	require.Len(t, remap, 6, "remap covers exactly the surviving entries")
	for oldID, newID := range remap {
		oldBox, ok := tree.Box(oldID)
		require.True(t, ok)
		newBox, ok := clone.Box(newID)
		require.True(t, ok)
		require.Equal(t, oldBox, newBox, "remapped entry keeps its original geometry")
	}
}

func TestRebuildPreservesQueryResults(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	tree := New[int](1, 2, 5)
	for i := 0; i < 100; i++ {
		lo := rnd.Float64() * 50
		tree.Insert(box1D(lo, lo+1), i)
	}

	tree.Rebuild(0.45)

	require.Equal(t, 100, tree.Len())

	var count int
	tree.Search(box1D(0, 50), func(ID, int) { count++ })
	require.Equal(t, 100, count)
}
