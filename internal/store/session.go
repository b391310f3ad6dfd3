package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/apriori/internal/apriorierr"
)

// Session is the durable record of §4.7's session table, with the
// lease token of §12.2 carried as a uuid rather than the bare string
// the logical schema names.
type Session struct {
	ID             int64
	Name           *string
	LastAccessUnix int64
	LockToken      uuid.UUID
}

// CreateSession creates a new session (optionally named) and its main
// layer, and issues it a fresh lock token (§4.7 "create_session", §12.2).
func (db *DB) CreateSession(name *string, nowUnix int64) (sessionID, mainLayerID int64, token uuid.UUID, err error) {
	token = uuid.New()
	res, err := db.Exec(
		`INSERT INTO session (name, last_access_unix, lock_token) VALUES (?, ?, ?)`,
		name, nowUnix, token.String(),
	)
	if err != nil {
		return 0, 0, uuid.UUID{}, apriorierr.Wrap(apriorierr.KindStoreIO, "create session", err)
	}
	sessionID, err = res.LastInsertId()
	if err != nil {
		return 0, 0, uuid.UUID{}, apriorierr.Wrap(apriorierr.KindStoreIO, "create session: last insert id", err)
	}

	mainLayerID, err = db.addLayerTx(sessionID, nil, nil, 0)
	if err != nil {
		return 0, 0, uuid.UUID{}, err
	}
	return sessionID, mainLayerID, token, nil
}

// SaveSessionAs renames session to name (also covers §4.7's
// "rename_session"), failing with ErrSessionLockLost if token no
// longer matches, and KindSessionConflict if name is already taken.
func (db *DB) SaveSessionAs(sessionID int64, token uuid.UUID, name string) error {
	res, err := db.Exec(
		`UPDATE session SET name = ? WHERE id = ? AND lock_token = ?`,
		name, sessionID, token.String(),
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return apriorierr.Wrap(apriorierr.KindSessionConflict, fmt.Sprintf("session name %q already in use", name), err)
		}
		return apriorierr.Wrap(apriorierr.KindStoreIO, "rename session", err)
	}
	return requireRowsAffected(res, "rename session")
}

// LoadSession resolves a session by name. If the session is currently
// locked by a live process (its last access is within abandonSeconds of
// nowUnix), loading fails with KindSessionConflict. Otherwise the
// session is issued a fresh lock token, which the caller now holds
// (§4.7 "load_session", §12.2 "another process may take over the lock").
func (db *DB) LoadSession(name string, abandonSeconds float64, nowUnix int64) (sessionID, mainLayerID int64, token uuid.UUID, err error) {
	var lastAccess int64
	var lockToken string
	row := db.QueryRow(`SELECT id, last_access_unix, lock_token FROM session WHERE name = ?`, name)
	if err := row.Scan(&sessionID, &lastAccess, &lockToken); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, uuid.UUID{}, apriorierr.New(apriorierr.KindSessionConflict, fmt.Sprintf("no session named %q", name))
		}
		return 0, 0, uuid.UUID{}, apriorierr.Wrap(apriorierr.KindStoreIO, "load session", err)
	}

	// An empty lock_token means the previous holder unlocked cleanly
	// (§4.7 "unlock_session"); only a held-and-live lock blocks takeover.
	if lockToken != "" && float64(nowUnix-lastAccess) < abandonSeconds {
		return 0, 0, uuid.UUID{}, apriorierr.New(apriorierr.KindSessionConflict, fmt.Sprintf("session %q is held by another live process", name))
	}

	token = uuid.New()
	if _, err := db.Exec(
		`UPDATE session SET lock_token = ?, last_access_unix = ? WHERE id = ?`,
		token.String(), nowUnix, sessionID,
	); err != nil {
		return 0, 0, uuid.UUID{}, apriorierr.Wrap(apriorierr.KindStoreIO, "load session: steal lock", err)
	}

	mainLayerID, err = db.mainLayerID(sessionID)
	if err != nil {
		return 0, 0, uuid.UUID{}, err
	}
	return sessionID, mainLayerID, token, nil
}

// UpdateSessionAccessTime refreshes the liveness timestamp the
// orchestrator maintains every 30s (§4.8 step 5). Fails fatally
// (ErrSessionLockLost) if another process has since stolen the session.
func (db *DB) UpdateSessionAccessTime(sessionID int64, token uuid.UUID, nowUnix int64) error {
	res, err := db.Exec(
		`UPDATE session SET last_access_unix = ? WHERE id = ? AND lock_token = ?`,
		nowUnix, sessionID, token.String(),
	)
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "update session access time", err)
	}
	return requireRowsAffected(res, "update session access time")
}

// UnlockSession releases the lock on normal engine shutdown (§4.7
// "unlock_session", §4.8 "Shutdown"). The token is cleared rather than
// regenerated so any live holder immediately loses write access.
func (db *DB) UnlockSession(sessionID int64, token uuid.UUID) error {
	res, err := db.Exec(
		`UPDATE session SET lock_token = '' WHERE id = ? AND lock_token = ?`,
		sessionID, token.String(),
	)
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, "unlock session", err)
	}
	return requireRowsAffected(res, "unlock session")
}

// requireRowsAffected wraps ErrSessionLockLost when a token-guarded
// mutation touched no row: the session either doesn't exist or (far
// more commonly, since sessionID is only known to its holder) the lock
// token has since been reassigned to another process.
func requireRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apriorierr.Wrap(apriorierr.KindStoreIO, op, err)
	}
	if n == 0 {
		return apriorierr.Wrap(apriorierr.KindStoreIO, op, apriorierr.ErrSessionLockLost)
	}
	return nil
}
