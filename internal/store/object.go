package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// AddObject persists a new body within session/layer (§3 "Body
// (Object)"). `(session_id, name)` is unique.
func (db *DB) AddObject(sessionID int64, token uuid.UUID, layerID int64, body simcontext.Body) (int64, error) {
	if err := db.checkLockHeld(sessionID, token); err != nil {
		return 0, err
	}
	res, err := db.Exec(
		`INSERT INTO object (session_id, layer_id, name, radius, color, mass, compute_step) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, layerID, body.Name, body.Radius, body.Color, body.Mass, body.ComputeStep,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return 0, apriorierr.Wrap(apriorierr.KindScene, fmt.Sprintf("object name %q already in use", body.Name), err)
		}
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add object", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add object: last insert id", err)
	}
	return id, nil
}

// RenameObject renames an existing body (the one field a body may
// change after creation, per §3 "Immutable after creation except for
// name").
func (db *DB) RenameObject(sessionID int64, token uuid.UUID, objectID int64, newName string) error {
	if err := db.checkLockHeld(sessionID, token); err != nil {
		return err
	}
	res, err := db.Exec(
		`UPDATE object SET name = ? WHERE id = ? AND session_id = ?`,
		newName, objectID, sessionID,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return apriorierr.Wrap(apriorierr.KindScene, fmt.Sprintf("object name %q already in use", newName), err)
		}
		return apriorierr.Wrap(apriorierr.KindStoreIO, "rename object", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "rename object", err)
	}
	if n == 0 {
		return apriorierr.New(apriorierr.KindScene, fmt.Sprintf("object %d not found", objectID))
	}
	return nil
}

// CurrentObjectsDelta implements simcontext.Store: every body in layer
// not already present in known (§4.7 "current_objects_delta").
func (db *DB) CurrentObjectsDelta(ctx context.Context, layer simcontext.LayerID, known []simcontext.BodyID) ([]simcontext.Body, error) {
	knownSet := make(map[simcontext.BodyID]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, radius, color, mass, compute_step FROM object WHERE layer_id = ?`,
		int64(layer),
	)
	if err != nil {
		return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "current objects delta", err)
	}
	defer rows.Close()

	var out []simcontext.Body
	for rows.Next() {
		var b simcontext.Body
		var id int64
		if err := rows.Scan(&id, &b.Name, &b.Radius, &b.Color, &b.Mass, &b.ComputeStep); err != nil {
			return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "current objects delta: scan", err)
		}
		b.ID = simcontext.BodyID(id)
		if !knownSet[b.ID] {
			out = append(out, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "current objects delta: rows", err)
	}
	return out, nil
}
