package kernel

import "gonum.org/v1/gonum/floats"

// floatsEqualWithinAbs wraps gonum's tolerance comparison for
// Vector.EqualWithinAbs (and the tests that use it, per P1/P2/P6); the
// root finders compare against their tolerances directly.
func floatsEqualWithinAbs(a, b, tol float64) bool {
	return floats.EqualWithinAbs(a, b, tol)
}
