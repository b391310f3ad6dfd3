package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/banshee-data/apriori/internal/apriorierr"
	"github.com/banshee-data/apriori/internal/kernel"
	"github.com/banshee-data/apriori/internal/simcontext"
)

// locationColumns is the fixed column order §6 promises for bulk CSV
// framing: "no header row and the column order fixed by §4.7's schema".
var locationColumns = []string{
	"id", "object_id", "time", "x", "y", "z", "vx", "vy", "vz", "vcx", "vcy", "vcz", "partner_location_ids",
}

// AddLocation appends one location row for body (§4.7 "location"). It is
// the write-side counterpart RangeLocations reads back; the engine calls
// it from AddObject to store a new body's initial state, and
// store_test.go exercises it directly.
func (db *DB) AddLocation(sessionID int64, token uuid.UUID, objectID, layerID int64, row simcontext.LocationRow) (int64, error) {
	if err := db.checkLockHeld(sessionID, token); err != nil {
		return 0, err
	}

	var vcx, vcy, vcz sql.NullFloat64
	if row.PostCollisionVelocity != nil {
		vcx = sql.NullFloat64{Float64: row.PostCollisionVelocity.X, Valid: true}
		vcy = sql.NullFloat64{Float64: row.PostCollisionVelocity.Y, Valid: true}
		vcz = sql.NullFloat64{Float64: row.PostCollisionVelocity.Z, Valid: true}
	}
	partners, err := encodePartnerIDs(row.PartnerRowIDs)
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add location: encode partners", err)
	}

	res, err := db.Exec(
		`INSERT INTO location (object_id, layer_id, time, x, y, z, vx, vy, vz, vcx, vcy, vcz, partner_location_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		objectID, layerID, row.T,
		row.Position.X, row.Position.Y, row.Position.Z,
		row.Velocity.X, row.Velocity.Y, row.Velocity.Z,
		vcx, vcy, vcz, partners,
	)
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add location", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "add location: last insert id", err)
	}
	return id, nil
}

// RangeLocations implements simcontext.Store: every location row for
// layer within [tLo, tHi], ordered by (body, time) ascending (§4.7
// "range_locations"). Rows are round-tripped through CSV framing, the
// same encoding/csv wrapping the teacher's sweep output writer uses for
// bulk result sets (§6 "bulk CSV streaming").
func (db *DB) RangeLocations(ctx context.Context, layer simcontext.LayerID, tLo, tHi float64) ([]simcontext.LocationRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, object_id, time, x, y, z, vx, vy, vz, vcx, vcy, vcz, partner_location_ids
		 FROM location WHERE layer_id = ? AND time >= ? AND time <= ?
		 ORDER BY object_id ASC, time ASC`,
		int64(layer), tLo, tHi,
	)
	if err != nil {
		return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations", err)
	}
	defer rows.Close()

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	for rows.Next() {
		var id, objectID int64
		var t, x, y, z, vx, vy, vz float64
		var vcx, vcy, vcz sql.NullFloat64
		var partners sql.NullString
		if err := rows.Scan(&id, &objectID, &t, &x, &y, &z, &vx, &vy, &vz, &vcx, &vcy, &vcz, &partners); err != nil {
			return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: scan", err)
		}
		record := []string{
			strconv.FormatInt(id, 10),
			strconv.FormatInt(objectID, 10),
			strconv.FormatFloat(t, 'g', -1, 64),
			strconv.FormatFloat(x, 'g', -1, 64),
			strconv.FormatFloat(y, 'g', -1, 64),
			strconv.FormatFloat(z, 'g', -1, 64),
			strconv.FormatFloat(vx, 'g', -1, 64),
			strconv.FormatFloat(vy, 'g', -1, 64),
			strconv.FormatFloat(vz, 'g', -1, 64),
			nullFloatString(vcx),
			nullFloatString(vcy),
			nullFloatString(vcz),
			partners.String,
		}
		if err := w.Write(record); err != nil {
			return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: encode csv", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: rows", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: flush csv", err)
	}

	return decodeLocationCSV(buf)
}

func decodeLocationCSV(buf *bytes.Buffer) ([]simcontext.LocationRow, error) {
	r := csv.NewReader(buf)
	r.FieldsPerRecord = len(locationColumns)

	var out []simcontext.LocationRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: decode csv", err)
		}
		row, err := locationRowFromRecord(record)
		if err != nil {
			return nil, apriorierr.Wrap(apriorierr.KindStoreIO, "range locations: decode row", err)
		}
		out = append(out, row)
	}
	return out, nil
}

func locationRowFromRecord(record []string) (simcontext.LocationRow, error) {
	id, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return simcontext.LocationRow{}, err
	}
	objectID, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return simcontext.LocationRow{}, err
	}
	// record layout: id, object_id, time, x, y, z, vx, vy, vz, vcx, vcy, vcz, partner_location_ids
	floats := make([]float64, 7)
	for i, s := range record[2:9] {
		if floats[i], err = strconv.ParseFloat(s, 64); err != nil {
			return simcontext.LocationRow{}, err
		}
	}

	row := simcontext.LocationRow{
		RowID:    id,
		Body:     simcontext.BodyID(objectID),
		T:        floats[0],
		Position: kernel.Vector{X: floats[1], Y: floats[2], Z: floats[3]},
		Velocity: kernel.Vector{X: floats[4], Y: floats[5], Z: floats[6]},
	}

	if record[9] != "" && record[10] != "" && record[11] != "" {
		vcx, err1 := strconv.ParseFloat(record[9], 64)
		vcy, err2 := strconv.ParseFloat(record[10], 64)
		vcz, err3 := strconv.ParseFloat(record[11], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return simcontext.LocationRow{}, fmt.Errorf("malformed post-collision velocity in csv row")
		}
		v := kernel.Vector{X: vcx, Y: vcy, Z: vcz}
		row.PostCollisionVelocity = &v
	}

	partnerIDs, err := decodePartnerIDs(record[len(record)-1])
	if err != nil {
		return simcontext.LocationRow{}, err
	}
	row.PartnerRowIDs = partnerIDs

	return row, nil
}

// MinValidStartTime honors §4.7's "the store may not admit a window
// that starts before some body's first location in the layer": it
// returns the later of requested and the earliest first-location time
// recorded for any body in layer (there is nothing to rehydrate before
// that floor).
func (db *DB) MinValidStartTime(layer simcontext.LayerID, requested float64) (float64, error) {
	var floor sql.NullFloat64
	err := db.QueryRow(
		`SELECT MIN(first_t) FROM (SELECT MIN(time) AS first_t FROM location WHERE layer_id = ? GROUP BY object_id)`,
		int64(layer),
	).Scan(&floor)
	if err != nil {
		return 0, apriorierr.Wrap(apriorierr.KindStoreIO, "min valid start time", err)
	}
	if !floor.Valid || requested >= floor.Float64 {
		return requested, nil
	}
	return floor.Float64, nil
}

func nullFloatString(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}
