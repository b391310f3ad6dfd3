package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/apriori/internal/apriorierr"
)

// Layer is one node of a session's layer forest (§4.7 "layer").
type Layer struct {
	ID            int64
	SessionID     int64
	Name          *string
	ParentLayerID *int64
	StartTime     float64
}

// AddLayer adds a child layer to session (§4.7 "add_layer"). Layer
// names are unique per session, not per parent (§12.3): two different
// parents cannot reuse a name within the same session.
func (db *DB) AddLayer(sessionID int64, token uuid.UUID, parentLayerID *int64, name string, startTime float64) (int64, error) {
	if err := db.checkLockHeld(sessionID, token); err != nil {
		return 0, err
	}
	return db.addLayerTx(sessionID, parentLayerID, &name, startTime)
}

// addLayerTx is the unguarded insert shared by AddLayer and
// CreateSession (whose main layer is created before any token exists
// to check against).
func (db *DB) addLayerTx(sessionID int64, parentLayerID *int64, name *string, startTime float64) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO layer (session_id, name, parent_layer_id, start_time) VALUES (?, ?, ?, ?)`,
		sessionID, name, parentLayerID, startTime,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return 0, apriorierr.Wrap(apriorierr.KindSessionConflict, "layer name already in use within this session", err)
		}
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add layer", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add layer: last insert id", err)
	}
	return id, nil
}

// mainLayerID returns the root layer (parent_layer_id IS NULL) of a
// session.
func (db *DB) mainLayerID(sessionID int64) (int64, error) {
	var id int64
	err := db.QueryRow(
		`SELECT id FROM layer WHERE session_id = ? AND parent_layer_id IS NULL`,
		sessionID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("session %d has no main layer", sessionID))
	}
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "lookup main layer", err)
	}
	return id, nil
}

// checkLockHeld verifies token still matches the session's current
// lock, without mutating anything, so read-adjacent mutating calls
// (AddLayer, AddObject, ...) fail the same way UpdateSessionAccessTime
// does once the lease is lost.
func (db *DB) checkLockHeld(sessionID int64, token uuid.UUID) error {
	var stored string
	err := db.QueryRow(`SELECT lock_token FROM session WHERE id = ?`, sessionID).Scan(&stored)
	if err == sql.ErrNoRows {
		return apriorierr.New(apriorierr.KindConsistency, fmt.Sprintf("session %d does not exist", sessionID))
	}
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "check session lock", err)
	}
	if stored != token.String() {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "check session lock", apriorierr.ErrSessionLockLost)
	}
	return nil
}
