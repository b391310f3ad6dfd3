// Package rtree implements the spatial-temporal index of component C2: a
// generic bounding-box R-tree over an arbitrary number of dimensions,
// carrying an arbitrary payload type. The global index uses four dimensions
// (t, x, y, z); each body's local index uses one (t). Both share this one
// implementation, parameterized by dimension count at construction time
// rather than by a compile-time generic, since Go does not support array
// lengths as type parameters.
package rtree

import "math"

// Box is an axis-aligned bounding box of a fixed dimensionality, shared by
// every node and payload in one Tree.
type Box struct {
	Min, Max []float64
}

// NewBox builds a Box from component slices; both must have the same
// length, the tree's dimensionality.
func NewBox(min, max []float64) Box {
	return Box{Min: min, Max: max}
}

// Dims reports the box's dimensionality.
func (b Box) Dims() int { return len(b.Min) }

// Overlaps reports whether b and o intersect (touching at a boundary
// counts as overlap, matching P3's "bbox ∩ q ≠ ∅").
func (b Box) Overlaps(o Box) bool {
	for i := range b.Min {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Contains reports whether b fully contains o.
func (b Box) Contains(o Box) bool {
	for i := range b.Min {
		if o.Min[i] < b.Min[i] || o.Max[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Envelope returns the smallest box containing both b and o.
func (b Box) Envelope(o Box) Box {
	min := make([]float64, len(b.Min))
	max := make([]float64, len(b.Max))
	for i := range b.Min {
		min[i] = math.Min(b.Min[i], o.Min[i])
		max[i] = math.Max(b.Max[i], o.Max[i])
	}
	return Box{Min: min, Max: max}
}

// Area returns the product of side lengths (the D-dimensional volume),
// used by the split heuristic to minimise enlargement.
func (b Box) Area() float64 {
	area := 1.0
	for i := range b.Min {
		area *= b.Max[i] - b.Min[i]
	}
	return area
}

// Margin returns the sum of side lengths, a cheaper proxy for "compactness"
// used when choosing which axis to split along.
func (b Box) Margin() float64 {
	m := 0.0
	for i := range b.Min {
		m += b.Max[i] - b.Min[i]
	}
	return m
}

// clone returns a deep copy of b.
func (b Box) clone() Box {
	min := make([]float64, len(b.Min))
	max := make([]float64, len(b.Max))
	copy(min, b.Min)
	copy(max, b.Max)
	return Box{Min: min, Max: max}
}

// Inflate returns a box expanded by delta[i] on each side of dimension i.
// Used to build the global index's bounding box: a segment's time interval
// inflated by the body's radius in each spatial axis (§3).
func (b Box) Inflate(delta []float64) Box {
	min := make([]float64, len(b.Min))
	max := make([]float64, len(b.Max))
	for i := range b.Min {
		min[i] = b.Min[i] - delta[i]
		max[i] = b.Max[i] + delta[i]
	}
	return Box{Min: min, Max: max}
}
