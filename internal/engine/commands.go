package engine

import (
	"github.com/google/uuid"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// Commands is the supplemented method set of §12.5: the API a front-end
// would call after parsing the command grammar of §6. cmd/apriori wires
// a minimal dispatcher over these; the grammar parser itself stays out
// of scope.

// AddObject persists a new body at the engine's current virtual time
// and registers it in the active session/layer (§3 "Body (Object)").
// Locate does not list the body until a later rehydration loads its
// metadata into the context; from then on it reports
// StatusNotYetAppeared until the body has a segment, which rehydration
// builds only from two consecutive location rows (no forward/backward
// integrator runs here, per §9).
func (e *Engine) AddObject(name string, position, velocity kernel.Vector, color uint32, radius, mass, computeStep float64) (simcontext.BodyID, error) {
	e.mu.Lock()
	sessionID, token, layerID, vt := e.sessionID, e.token, e.layerID, e.virtualTime
	e.mu.Unlock()

	if sessionID == 0 {
		return 0, apriorierr.New(apriorierr.KindInput, "no active session: call NewSession or LoadSession first")
	}

	objID, err := e.store.AddObject(sessionID, token, int64(layerID), simcontext.Body{
		Name: name, Radius: radius, Color: color, Mass: mass, ComputeStep: computeStep,
	})
	if err != nil {
		return 0, err
	}

	if _, err := e.store.AddLocation(sessionID, token, objID, int64(layerID), simcontext.LocationRow{
		T: vt, Position: position, Velocity: velocity,
	}); err != nil {
		return 0, err
	}
	return simcontext.BodyID(objID), nil
}

// RenameObject renames an existing body (§3 "Immutable after creation
// except for name").
func (e *Engine) RenameObject(objectID simcontext.BodyID, newName string) error {
	e.mu.Lock()
	sessionID, token := e.sessionID, e.token
	e.mu.Unlock()
	return e.store.RenameObject(sessionID, token, int64(objectID), newName)
}

// SetVirtualTime sets virtual time directly (command grammar "vt
// --time T"), e.g. for scrubbing.
func (e *Engine) SetVirtualTime(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.virtualTime = t
}

// SetVirtualStep sets the virtual-seconds-per-wall-second rate
// (command grammar "vtstep --step T"); a negative step runs backward
// (§4.6 "Directionality").
func (e *Engine) SetVirtualStep(step float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.virtualStep = step
}

// NewLayer adds a child layer under the current session (§4.7
// "add_layer").
func (e *Engine) NewLayer(name string, parentLayerID *simcontext.LayerID, startTime float64) (simcontext.LayerID, error) {
	e.mu.Lock()
	sessionID, token := e.sessionID, e.token
	e.mu.Unlock()

	var parent *int64
	if parentLayerID != nil {
		p := int64(*parentLayerID)
		parent = &p
	}
	id, err := e.store.AddLayer(sessionID, token, parent, name, startTime)
	if err != nil {
		return 0, err
	}
	return simcontext.LayerID(id), nil
}

// SelectLayer switches the active layer, discarding the current
// context (a layer switch is always branch 1 of Replicate: a different
// layer means a fresh empty context, §4.4) and scheduling a full
// rehydration over window.
func (e *Engine) SelectLayer(layerID simcontext.LayerID, window simcontext.Window) {
	e.mu.Lock()
	e.layerID = layerID
	e.mu.Unlock()
	e.ScheduleContextChange(window)
}

// NewSession creates a session (and its main layer) and makes it the
// active one, resetting virtual time to 0 and scheduling an initial
// rehydration over the default window starting at 0.
func (e *Engine) NewSession(name *string, nowUnix int64) (simcontext.SessionID, error) {
	sessionID, mainLayerID, token, err := e.store.CreateSession(name, nowUnix)
	if err != nil {
		return 0, err
	}
	e.bindSession(sessionID, mainLayerID, token)
	return simcontext.SessionID(sessionID), nil
}

// SaveSessionAs names (or renames) the active session (§4.7
// "save_session"/"rename_session").
func (e *Engine) SaveSessionAs(name string) error {
	e.mu.Lock()
	sessionID, token := e.sessionID, e.token
	e.mu.Unlock()
	if sessionID == 0 {
		return apriorierr.New(apriorierr.KindInput, "no active session")
	}
	return e.store.SaveSessionAs(sessionID, token, name)
}

// LoadSession loads a named session, making it active (§4.7
// "load_session"; §12.2's takeover semantics apply).
func (e *Engine) LoadSession(name string, nowUnix int64) error {
	sessionID, mainLayerID, token, err := e.store.LoadSession(name, e.cfg.GetSessionLivenessAbandonSeconds(), nowUnix)
	if err != nil {
		return err
	}
	e.bindSession(sessionID, mainLayerID, token)
	return nil
}

// bindSession points the engine at a (session, main layer, token)
// triple, resets virtual time to the layer's start, and schedules the
// initial rehydration over the default window.
func (e *Engine) bindSession(sessionID, layerID int64, token uuid.UUID) {
	e.mu.Lock()
	e.sessionID = sessionID
	e.layerID = simcontext.LayerID(layerID)
	e.token = token
	e.virtualTime = 0
	e.mu.Unlock()

	half := e.cfg.GetDefaultWindowSeconds() / 2
	e.ScheduleContextChange(simcontext.Window{Start: 0, End: half * 2})
}
