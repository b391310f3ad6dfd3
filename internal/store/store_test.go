package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/simcontext"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateSessionAndAddLayer(t *testing.T) {
	db := newTestDB(t)

	sessionID, mainLayerID, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)
	require.NotZero(t, sessionID)
	require.NotZero(t, mainLayerID)

	childID, err := db.AddLayer(sessionID, token, &mainLayerID, "scrub", 0)
	require.NoError(t, err)
	require.NotZero(t, childID)

	_, err = db.AddLayer(sessionID, token, &mainLayerID, "scrub", 0)
	require.Error(t, err, "layer names are unique within a session regardless of parent")
}

func TestSessionLockLossFailsAccessUpdate(t *testing.T) {
	db := newTestDB(t)

	sessionID, _, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)

	name := "scrubbed"
	require.NoError(t, db.SaveSessionAs(sessionID, token, name))

	// Another process loads the session once it looks abandoned...
	_, _, newToken, err := db.LoadSession(name, 40, 1000+41)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)

	// ...and the original holder's subsequent writes now fail fatally.
	err = db.UpdateSessionAccessTime(sessionID, token, 1000+42)
	require.Error(t, err)
}

func TestLoadSessionRejectsLiveLock(t *testing.T) {
	db := newTestDB(t)

	sessionID, _, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)
	require.NoError(t, db.SaveSessionAs(sessionID, token, "live"))

	_, _, _, err = db.LoadSession("live", 40, 1000+5)
	require.Error(t, err, "a session updated 5s ago, with a 40s abandon window, is still live")
}

func TestAddObjectAndCurrentObjectsDelta(t *testing.T) {
	db := newTestDB(t)
	sessionID, mainLayerID, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)

	idA, err := db.AddObject(sessionID, token, mainLayerID, simcontext.Body{
		Name: "a", Radius: 1, Color: PackColor(255, 0, 0), Mass: 1, ComputeStep: 0.1,
	})
	require.NoError(t, err)
	idB, err := db.AddObject(sessionID, token, mainLayerID, simcontext.Body{
		Name: "b", Radius: 2, Color: PackColor(0, 255, 0), Mass: 2, ComputeStep: 0.1,
	})
	require.NoError(t, err)

	_, err = db.AddObject(sessionID, token, mainLayerID, simcontext.Body{Name: "a", Radius: 1, Mass: 1})
	require.Error(t, err, "object names are unique within a session")

	delta, err := db.CurrentObjectsDelta(context.Background(), simcontext.LayerID(mainLayerID), []simcontext.BodyID{simcontext.BodyID(idA)})
	require.NoError(t, err)
	require.Len(t, delta, 1)
	require.Equal(t, simcontext.BodyID(idB), delta[0].ID)
	require.Equal(t, "b", delta[0].Name)
}

func TestRangeLocationsRoundTripsThroughCSV(t *testing.T) {
	db := newTestDB(t)
	sessionID, mainLayerID, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)

	objID, err := db.AddObject(sessionID, token, mainLayerID, simcontext.Body{Name: "a", Radius: 1, Mass: 1})
	require.NoError(t, err)

	_, err = db.AddLocation(sessionID, token, objID, mainLayerID, simcontext.LocationRow{
		T: 0, Position: kernel.Vector{X: -5}, Velocity: kernel.Vector{X: 1},
	})
	require.NoError(t, err)
	vc := kernel.Vector{X: -1}
	_, err = db.AddLocation(sessionID, token, objID, mainLayerID, simcontext.LocationRow{
		T: 5, Position: kernel.Vector{X: 0}, Velocity: kernel.Vector{X: 1}, PostCollisionVelocity: &vc,
	})
	require.NoError(t, err)

	rows, err := db.RangeLocations(context.Background(), simcontext.LayerID(mainLayerID), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, simcontext.BodyID(objID), rows[0].Body)
	require.InDelta(t, -5, rows[0].Position.X, 1e-9)
	require.Nil(t, rows[0].PostCollisionVelocity)
	require.NotNil(t, rows[1].PostCollisionVelocity)
	require.InDelta(t, -1, rows[1].PostCollisionVelocity.X, 1e-9)
}

func TestMinValidStartTimeClampsToFloor(t *testing.T) {
	db := newTestDB(t)
	sessionID, mainLayerID, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)
	objID, err := db.AddObject(sessionID, token, mainLayerID, simcontext.Body{Name: "a", Radius: 1, Mass: 1})
	require.NoError(t, err)
	_, err = db.AddLocation(sessionID, token, objID, mainLayerID, simcontext.LocationRow{T: 3, Position: kernel.Vector{}, Velocity: kernel.Vector{}})
	require.NoError(t, err)

	got, err := db.MinValidStartTime(simcontext.LayerID(mainLayerID), 0)
	require.NoError(t, err)
	require.InDelta(t, 3, got, 1e-9)

	got, err = db.MinValidStartTime(simcontext.LayerID(mainLayerID), 10)
	require.NoError(t, err)
	require.InDelta(t, 10, got, 1e-9)
}

func TestUnlockSessionReleasesLockForTakeover(t *testing.T) {
	db := newTestDB(t)
	sessionID, _, token, err := db.CreateSession(nil, 1000)
	require.NoError(t, err)
	require.NoError(t, db.SaveSessionAs(sessionID, token, "s"))
	require.NoError(t, db.UnlockSession(sessionID, token))

	// Even though last_access_unix is recent, an unlocked session can be
	// loaded immediately.
	_, _, _, err = db.LoadSession("s", 40, 1001)
	require.NoError(t, err)
}
