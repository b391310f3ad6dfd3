package simcontext

import (
	"context"

	"github.com/banshee-data/apriori/internal/kernel"
)

// LocationRow is one row of C7's location table, as rehydration consumes
// it (§4.4, §4.7). RowID is the durable store's row identity, used to
// resolve the partner-row cross references deferred to the second pass.
type LocationRow struct {
	RowID                 int64
	Body                  BodyID
	T                     float64
	Position              kernel.Vector
	Velocity              kernel.Vector
	PostCollisionVelocity *kernel.Vector
	PartnerRowIDs         []int64
}

// Store is the subset of C7's operations rehydration needs. Defined here
// (rather than imported from internal/store) so this package depends on
// a narrow interface instead of the concrete sqlite-backed store,
// matching the teacher's own preference for small store-facing
// interfaces at its call sites.
type Store interface {
	// CurrentObjectsDelta returns bodies in layer not already in known.
	CurrentObjectsDelta(ctx context.Context, layer LayerID, known []BodyID) ([]Body, error)
	// RangeLocations returns every location row for layer within
	// [tLo, tHi], ordered by (body, time) ascending.
	RangeLocations(ctx context.Context, layer LayerID, tLo, tHi float64) ([]LocationRow, error)
}
