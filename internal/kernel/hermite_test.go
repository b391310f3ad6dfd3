package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHermiteEndpoints(t *testing.T) {
	h := HermiteEndpoints{
		P0: Vector{0, 0, 0}, V0: Vector{1, 0, 0}, T0: 0,
		P1: Vector{5, 0, 0}, V1: Vector{1, 0, 0}, T1: 5,
	}

	require.True(t, h.Evaluate(0).EqualWithinAbs(h.P0, 1e-9), "H(t0) must equal p0")
	require.True(t, h.Evaluate(5).EqualWithinAbs(h.P1, 1e-9), "H(t1) must equal p1")
	require.True(t, h.Velocity(0).EqualWithinAbs(h.V0, 1e-9), "H'(t0) must equal v0")
	require.True(t, h.Velocity(5).EqualWithinAbs(h.V1, 1e-9), "H'(t1) must equal v1")
}

func TestHermiteStraightLine(t *testing.T) {
	// Constant velocity along a straight line: Hermite must reproduce it
	// exactly at any interior t, matching S1's uniform-motion scenario.
	h := HermiteEndpoints{
		P0: Vector{0, 0, 0}, V0: Vector{1, 0, 0}, T0: 0,
		P1: Vector{5, 0, 0}, V1: Vector{1, 0, 0}, T1: 5,
	}

	got := h.Evaluate(2)
	require.True(t, got.EqualWithinAbs(Vector{2, 0, 0}, 1e-9), "got %v", got)
}
