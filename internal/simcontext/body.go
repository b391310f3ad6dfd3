// Package simcontext implements component C4: a working window over a
// single session/layer — the set of bodies alive in it, their local
// trajectory sequences, and the global 4-D index over all their
// segments — together with replication (window-sliding) and background
// rehydration from the durable store.
package simcontext

// SessionID and LayerID are the durable-store identities a context is
// keyed on, alongside its time window (§4.4).
type SessionID int64
type LayerID int64

// BodyID is a body's stable identity, assigned on first persist (§3).
type BodyID int64

// Body is the immutable (except for Name) metadata of one simulated
// object (§3 "Body (Object)").
type Body struct {
	ID          BodyID
	Name        string
	Radius      float64
	Color       uint32
	Mass        float64
	ComputeStep float64
}
