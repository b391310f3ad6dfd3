package kernel

// HermiteEndpoints bundles the boundary data of a cubic Hermite piece, as
// produced by one trajectory segment (spec §3, §4.1).
type HermiteEndpoints struct {
	P0, P1 Vector  // start and end position
	V0, V1 Vector  // start and end velocity
	T0, T1 float64 // start and end time, T0 < T1
}

// Evaluate returns the interpolated position at t, using the standard
// cubic Hermite basis with u = (t-T0)/(T1-T0):
//
//	H(u) = (1-3u²+2u³)p0 + (u-2u²+u³)(T1-T0)v0 + (3u²-2u³)p1 + (u³-u²)(T1-T0)v1
//
// At t=T0 this returns p0 (and its derivative is v0); at t=T1 it returns p1
// (derivative v1) — P1.
func (h HermiteEndpoints) Evaluate(t float64) Vector {
	dt := h.T1 - h.T0
	u := (t - h.T0) / dt
	u2 := u * u
	u3 := u2 * u

	h00 := 1 - 3*u2 + 2*u3
	h10 := u - 2*u2 + u3
	h01 := 3*u2 - 2*u3
	h11 := u3 - u2

	return h.P0.Scale(h00).
		Add(h.V0.Scale(h10 * dt)).
		Add(h.P1.Scale(h01)).
		Add(h.V1.Scale(h11 * dt))
}

// Velocity returns the interpolated velocity at t (the derivative of
// Evaluate with respect to t).
func (h HermiteEndpoints) Velocity(t float64) Vector {
	dt := h.T1 - h.T0
	u := (t - h.T0) / dt
	u2 := u * u

	dh00 := (-6*u + 6*u2) / dt
	dh10 := 1 - 4*u + 3*u2
	dh01 := (6*u - 6*u2) / dt
	dh11 := -2*u + 3*u2

	return h.P0.Scale(dh00).
		Add(h.V0.Scale(dh10)).
		Add(h.P1.Scale(dh01)).
		Add(h.V1.Scale(dh11))
}
