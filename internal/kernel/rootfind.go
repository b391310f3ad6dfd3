package kernel

import "math"

// invPhi and invPhi2 are 1/φ and 1/φ² for the golden-section search.
var (
	invPhi  = (math.Sqrt(5) - 1) / 2
	invPhi2 = (3 - math.Sqrt(5)) / 2
)

// GoldenSectionMin locates the argmin of f on [a,b] to tolerance epsT,
// maintaining two interior probes at the golden-ratio points and shrinking
// the bracket until b-a <= epsT (§4.1).
func GoldenSectionMin(f func(float64) float64, a, b, epsT float64) float64 {
	if b < a {
		a, b = b, a
	}

	c := a + invPhi2*(b-a)
	d := a + invPhi*(b-a)
	fc := f(c)
	fd := f(d)

	for b-a > epsT {
		if fc < fd {
			b = d
			d = c
			fd = fc
			c = a + invPhi2*(b-a)
			fc = f(c)
		} else {
			a = c
			c = d
			fc = fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}

	return (a + b) / 2
}

// Bisect finds a root of f on [a,b] given f(a)*f(b) <= 0, to tolerances
// (epsT on the bracket width, epsF on |f| at the returned point). Returns
// ok=false if the endpoints agree in sign (§4.1).
func Bisect(f func(float64) float64, a, b, epsT, epsF float64) (root float64, ok bool) {
	fa := f(a)
	fb := f(b)

	if fa == 0 {
		return a, true
	}
	if fb == 0 {
		return b, true
	}
	if fa*fb > 0 {
		return 0, false
	}

	for b-a > epsT {
		mid := (a + b) / 2
		fm := f(mid)
		if math.Abs(fm) <= epsF {
			return mid, true
		}
		if fa*fm <= 0 {
			b = mid
			fb = fm
		} else {
			a = mid
			fa = fm
		}
	}

	return (a + b) / 2, true
}

// FindFirstRoot composes golden-section search and bisection to locate the
// earliest zero of f on [a,b]: first the argmin t* of f is located, then
// bisection runs on [a, t*] (§4.1). This is the collision-detection
// primitive: f is "inter-body distance minus sum-of-radii" on a segment
// intersection window. ok=false means f never crosses zero (no collision).
func FindFirstRoot(f func(float64) float64, a, b, epsT, epsF float64) (root float64, ok bool) {
	if b <= a {
		return 0, false
	}

	tStar := GoldenSectionMin(f, a, b, epsT)
	if f(a)*f(tStar) > 0 {
		return 0, false
	}

	return Bisect(f, a, tStar, epsT, epsF)
}
