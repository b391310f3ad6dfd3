package simcontext

// Window is a closed time interval [Start, End] over
// virtual time, the unit of a context's locality (§4.4).
type Window struct {
	Start float64
	End   float64
}

// Contains reports whether t lies within the window, inclusive.
func (w Window) Contains(t float64) bool { return t >= w.Start && t <= w.End }

// Length returns End-Start.
func (w Window) Length() float64 { return w.End - w.Start }

// Overlaps reports whether w and o share any instant.
func (w Window) Overlaps(o Window) bool { return w.Start <= o.End && o.Start <= w.End }

// key identifies a context by the triple §4.4 defines it over.
type key struct {
	Session SessionID
	Layer   LayerID
	Window  Window
}
