package kernel

// GravityAccel computes the bounded, non-physical radial acceleration
// specified in §4.1: bodies beyond radius 30 decelerate toward the origin,
// bodies within it accelerate away, producing bounded orbital-like motion.
// This is the specification of the dynamics, not an approximation of
// Newtonian gravity (§1 Non-goals).
func GravityAccel(p, v Vector) Vector {
	r := p.Norm()
	if r == 0 {
		return Vector{}
	}

	speed := v.Norm()
	dir := p.Scale(1 / r)

	if r > 30 {
		return dir.Scale(-speed * 0.20)
	}
	return dir.Scale(speed * 0.25)
}

// Direction distinguishes forward and backward integration/search, so a
// single implementation serves both without duplicating the stepper or
// the collision search (spec §4.6 "Directionality", §9 "Design Notes").
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Sign returns +1 for Forward, -1 for Backward.
func (d Direction) Sign() float64 {
	if d == Backward {
		return -1
	}
	return 1
}

// Step advances (p, v) by one symmetric second-order step of size dt>0 in
// the given direction: two half-steps of dt/2, velocity-then-position each
// half, per §4.1. dt is always positive; direction supplies the sign.
func Step(p, v Vector, dt float64, dir Direction) (Vector, Vector) {
	half := dir.Sign() * dt / 2

	v = v.Add(GravityAccel(p, v).Scale(half))
	p = p.Add(v.Scale(half))
	v = v.Add(GravityAccel(p, v).Scale(half))
	p = p.Add(v.Scale(half))

	return p, v
}
