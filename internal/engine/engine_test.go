package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/simcontext"
	"github.com/banshee-data/apriori/internal/store"
	"github.com/banshee-data/apriori/internal/timeutil"
)

func newTestEngine(t *testing.T) (*Engine, *store.DB, *timeutil.MockClock) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.EmptyTuningConfig()
	clock := timeutil.NewMockClock(time.Unix(1_700_000_000, 0))

	eng := New(db, cfg, clock, func(results []simcontext.LocationResult) {})
	return eng, db, clock
}

func TestNewSessionBindsAndSchedulesRehydration(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	sessionID, err := eng.NewSession(nil, 1000)
	require.NoError(t, err)
	require.NotZero(t, sessionID)

	eng.mu.Lock()
	pending := eng.pending
	eng.mu.Unlock()
	require.NotNil(t, pending, "binding a session schedules an initial context change")
}

func TestFrameAdvancesVirtualTimeByStepAndDelta(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.NewSession(nil, 1000)
	require.NoError(t, err)

	eng.SetVirtualStep(2)
	require.NoError(t, eng.Frame(500*time.Millisecond))
	require.InDelta(t, 1.0, eng.VirtualTime(), 1e-9)

	require.NoError(t, eng.Frame(1*time.Second))
	require.InDelta(t, 3.0, eng.VirtualTime(), 1e-9)
}

func TestAddObjectRequiresActiveSession(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.AddObject("first", kernel.Vector{}, kernel.Vector{}, 0, 1, 1, 0.1)
	require.Error(t, err, "no session has been created or loaded yet")
}

func TestAddObjectAndRenameRoundTrip(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.NewSession(nil, 1000)
	require.NoError(t, err)

	id, err := eng.AddObject("alpha", kernel.Vector{X: 1}, kernel.Vector{}, 0, 1, 1, 0.1)
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, eng.RenameObject(id, "beta"))
}

func TestScheduleContextChangeOverwritesPending(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.NewSession(nil, 1000)
	require.NoError(t, err)

	eng.mu.Lock()
	firstInterrupter := eng.interrupter
	eng.mu.Unlock()

	eng.ScheduleContextChange(simcontext.Window{Start: 100, End: 200})

	eng.mu.Lock()
	pending := eng.pending
	eng.mu.Unlock()
	require.NotNil(t, pending)
	require.Equal(t, 100.0, pending.window.Start)

	if firstInterrupter != nil {
		select {
		case <-firstInterrupter.C():
		default:
			t.Fatal("scheduling a new change should fire the prior interrupter")
		}
	}
}

func TestShutdownUnlocksSessionForImmediateReload(t *testing.T) {
	eng, db, _ := newTestEngine(t)
	_, err := eng.NewSession(nil, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.SaveSessionAs("reload-me"))

	require.NoError(t, eng.Shutdown())

	// Even though the session was just touched, Shutdown cleared its
	// lock, so a reload a moment later should not see it as live.
	_, _, _, err = db.LoadSession("reload-me", 40, 1001)
	require.NoError(t, err)
}
