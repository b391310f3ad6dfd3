// Package engine implements component C8: the orchestrator owning the
// current context, the per-frame loop, scheduled context replacement,
// and session-liveness upkeep (§4.8).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/config"
	"github.com/banshee-data/apriori/internal/simcontext"
	"github.com/banshee-data/apriori/internal/timeutil"
)

// Store is the durable-store surface the orchestrator and its command
// layer need: simcontext.Store's rehydration operations, plus the
// session/layer/object mutations of §4.7 the command set of §12.5
// mediates. internal/store.DB satisfies this.
type Store interface {
	simcontext.Store

	CreateSession(name *string, nowUnix int64) (sessionID, mainLayerID int64, token uuid.UUID, err error)
	SaveSessionAs(sessionID int64, token uuid.UUID, name string) error
	LoadSession(name string, abandonSeconds float64, nowUnix int64) (sessionID, mainLayerID int64, token uuid.UUID, err error)
	UpdateSessionAccessTime(sessionID int64, token uuid.UUID, nowUnix int64) error
	UnlockSession(sessionID int64, token uuid.UUID) error
	AddLayer(sessionID int64, token uuid.UUID, parentLayerID *int64, name string, startTime float64) (int64, error)
	AddObject(sessionID int64, token uuid.UUID, layerID int64, body simcontext.Body) (int64, error)
	RenameObject(sessionID int64, token uuid.UUID, objectID int64, newName string) error
	AddLocation(sessionID int64, token uuid.UUID, objectID, layerID int64, row simcontext.LocationRow) (int64, error)
	MinValidStartTime(layer simcontext.LayerID, requested float64) (float64, error)
}

// RenderFunc is the in-process callback C8 hands (body_id → position)
// to each frame (§2, §4.8 step 3). The renderer itself is an external
// collaborator (§1).
type RenderFunc func([]simcontext.LocationResult)

// pendingChange is the single pending-context-change slot of §5
// "Ordering guarantees": a newer schedule always overwrites an older
// one, serializing concurrent context changes.
type pendingChange struct {
	window simcontext.Window
}

// Engine is the orchestrator of §4.8. Field access is serialized by mu;
// the active *simcontext.Context is swapped under the same lock, which
// is acceptable because swaps are rare (once per context change) next
// to the per-frame Locate calls that only read the pointer.
type Engine struct {
	mu sync.Mutex

	store  Store
	cfg    *config.TuningConfig
	clock  timeutil.Clock
	render RenderFunc

	ctx *simcontext.Context

	sessionID int64
	layerID   simcontext.LayerID
	token     uuid.UUID

	virtualTime float64
	virtualStep float64

	pending     *pendingChange
	resultCh    chan *simcontext.Context
	interrupter *simcontext.Interrupter
	bg          *errgroup.Group

	lastAccessUpdate time.Time
}

// New constructs an orchestrator with an empty context; callers must
// call NewSession or LoadSession before any other command runs.
func New(store Store, cfg *config.TuningConfig, clock timeutil.Clock, render RenderFunc) *Engine {
	window := simcontext.Window{Start: 0, End: cfg.GetDefaultWindowSeconds()}
	return &Engine{
		store:            store,
		cfg:              cfg,
		clock:            clock,
		render:           render,
		ctx:              simcontext.New(0, 0, window, cfg),
		virtualStep:      1,
		lastAccessUpdate: clock.Now(),
		bg:               &errgroup.Group{},
	}
}

// VirtualTime returns the current virtual time.
func (e *Engine) VirtualTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.virtualTime
}

// context returns the current context under the lock, for callers that
// need a stable snapshot to read outside of it.
func (e *Engine) context() *simcontext.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Frame runs one iteration of §4.8's "Per-frame operations", in its
// specified deterministic order.
func (e *Engine) Frame(frameDelta time.Duration) error {
	e.pollContextChannel()

	e.mu.Lock()
	e.virtualTime += frameDelta.Seconds() * e.virtualStep
	vt := e.virtualTime
	ctx := e.ctx
	e.mu.Unlock()

	results := ctx.Locate(vt)
	if e.render != nil {
		e.render(results)
	}

	e.maybeScheduleAhead(ctx, vt)

	if err := e.maybeUpdateLiveness(); err != nil {
		return err
	}

	return nil
}

// pollContextChannel is step 1: a non-blocking try-receive on the
// background-produced context channel. Swapping in a delivered context
// is the sole "write" to the shared context pointer (§5 "a release-store
// on a shared pointer").
func (e *Engine) pollContextChannel() {
	e.mu.Lock()
	ch := e.resultCh
	e.mu.Unlock()

	if ch == nil {
		e.mu.Lock()
		hasPending := e.pending != nil
		e.mu.Unlock()
		if hasPending {
			e.startContextChange()
		}
		return
	}

	select {
	case newCtx, ok := <-ch:
		e.mu.Lock()
		e.resultCh = nil
		if ok && newCtx != nil {
			e.ctx = newCtx
		}
		hasPending := e.pending != nil
		e.mu.Unlock()
		if hasPending {
			e.startContextChange()
		}
	default:
	}
}

// maybeScheduleAhead is step 4: once virtual_time has crossed the
// schedule-ahead fraction of the current window, request a context
// centered ahead.
func (e *Engine) maybeScheduleAhead(ctx *simcontext.Context, vt float64) {
	elapsedFraction := (vt - ctx.Window.Start) / ctx.Window.Length()
	if elapsedFraction < e.cfg.GetScheduleAheadFraction() {
		return
	}
	half := e.cfg.GetDefaultWindowSeconds() / 2
	e.ScheduleContextChange(simcontext.Window{Start: vt - half, End: vt + half})
}

// maybeUpdateLiveness is step 5: every 30s of wall time, refresh the
// session's liveness timestamp. A lock-loss error here is always fatal
// (§7, §12.2) and is returned so the caller can shut down.
func (e *Engine) maybeUpdateLiveness() error {
	e.mu.Lock()
	elapsed := e.clock.Since(e.lastAccessUpdate)
	due := elapsed >= e.cfg.GetSessionLivenessUpdateInterval()
	sessionID, token := e.sessionID, e.token
	e.mu.Unlock()

	if !due || sessionID == 0 {
		return nil
	}

	err := e.store.UpdateSessionAccessTime(sessionID, token, e.clock.Now().Unix())
	e.mu.Lock()
	e.lastAccessUpdate = e.clock.Now()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return nil
}

// ScheduleContextChange overwrites any pending change and fires the
// current interrupter, so an in-flight background task abandons its
// result (§4.8 "Schedule context change"). It does not itself start a
// new background task; Frame's next poll does that lazily once the
// channel is drained.
func (e *Engine) ScheduleContextChange(window simcontext.Window) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = &pendingChange{window: window}
	if e.interrupter != nil {
		e.interrupter.Fire()
	}
}

// startContextChange is §4.8's "Start context change": it creates fresh
// channels, replicates the current context with the pending parameters
// (clamping the window start to MinValidStartTime), and spawns
// rehydration on the background worker group.
func (e *Engine) startContextChange() {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	if pending == nil {
		e.mu.Unlock()
		return
	}
	cur := e.ctx
	sessionID, layerID := e.sessionID, e.layerID
	e.mu.Unlock()

	start, err := e.store.MinValidStartTime(layerID, pending.window.Start)
	if err != nil {
		apriorierr.Logf(apriorierr.KindStoreIO, "min_valid_start_time failed, using requested window start: %v", err)
		start = pending.window.Start
	}
	window := simcontext.Window{Start: start, End: start + pending.window.Length()}

	next := cur.Replicate(simcontext.SessionID(sessionID), layerID, window)

	resultCh := make(chan *simcontext.Context, 1)
	interrupter := simcontext.NewInterrupter()

	e.mu.Lock()
	e.resultCh = resultCh
	e.interrupter = interrupter
	e.mu.Unlock()

	e.bg.Go(func() error {
		defer close(resultCh)
		if err := next.Rehydrate(context.Background(), e.store, interrupter.C()); err != nil {
			if apriorierr.Fatal(err) {
				apriorierr.Logf(apriorierr.KindStoreIO, "rehydration failed fatally: %v", err)
			}
			return nil
		}
		select {
		case resultCh <- next:
		case <-interrupter.C():
		}
		return nil
	})
}

// Shutdown implements §4.8's "Shutdown": fire any in-flight
// interrupter, wait for background work to settle, and unlock the
// session (§4.7 "unlock_session").
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.interrupter != nil {
		e.interrupter.Fire()
	}
	sessionID, token := e.sessionID, e.token
	e.mu.Unlock()

	_ = e.bg.Wait()

	if sessionID == 0 {
		return nil
	}
	return e.store.UnlockSession(sessionID, token)
}
