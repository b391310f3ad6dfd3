package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGravityAccelZeroAtOrigin(t *testing.T) {
	a := GravityAccel(Vector{}, Vector{1, 0, 0})
	require.True(t, a.EqualWithinAbs(Vector{}, 1e-12))
}

func TestGravityAccelDecelerateBeyond30(t *testing.T) {
	p := Vector{40, 0, 0}
	v := Vector{2, 0, 0}
	a := GravityAccel(p, v)
	require.InDelta(t, -0.40, a.X, 1e-9) // -(p/r)*(|v|*0.20), p/r = (1,0,0), |v|=2
}

func TestGravityAccelAccelerateWithin30(t *testing.T) {
	p := Vector{10, 0, 0}
	v := Vector{2, 0, 0}
	a := GravityAccel(p, v)
	require.InDelta(t, 0.50, a.X, 1e-9) // (p/r)*(|v|*0.25), p/r = (1,0,0), |v|=2
}

func TestStepZeroDtIsNoOp(t *testing.T) {
	p0 := Vector{12, 3, -4}
	v0 := Vector{1, -2, 0.5}

	p1, v1 := Step(p0, v0, 0, Forward)

	require.True(t, p1.EqualWithinAbs(p0, 1e-12))
	require.True(t, v1.EqualWithinAbs(v0, 1e-12))
}

func TestStepBackwardUndoesSmallForwardStep(t *testing.T) {
	// The symmetric step is only approximately time-reversible for a
	// velocity-dependent field; at a small enough dt the round trip
	// stays within a loose tolerance.
	p0 := Vector{12, 3, -4}
	v0 := Vector{1, -2, 0.5}

	p1, v1 := Step(p0, v0, 1e-4, Forward)
	p2, v2 := Step(p1, v1, 1e-4, Backward)

	require.True(t, p2.EqualWithinAbs(p0, 1e-6))
	require.True(t, v2.EqualWithinAbs(v0, 1e-6))
}
