/*
Copyright © 2023 the SeaSense authors.
This file is part of SeaSense.

SeaSense is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SeaSense is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SeaSense.  If not, see <http://www.gnu.org/licenses/>.
*/

package seasense

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite" // RSK files are SQLite containers.
)

// RSKSchema is the internal layout variant of an RSK container.
type RSKSchema string

const (
	// RSKSchemaModern is the normalized multi-table layout (RSK ≥ 2.0):
	// channel definitions, calibrations, and coefficient key/value rows
	// in separate tables, with the linear transform value = c0 + c1·raw.
	RSKSchemaModern RSKSchema = "modern"
	// RSKSchemaLegacy is the flat-table layout of older loggers:
	// calibration gain and offset stored inline on the channel row,
	// with the transform value = raw·gain + offset.
	RSKSchemaLegacy RSKSchema = "legacy"
)

func (s RSKSchema) String() string { return string(s) }

// rskChannel is one entry of the container's channel catalog.
type rskChannel struct {
	id       int64
	code     string
	longName string
	unit     string
	c0, c1   float64
}

// RSKReader reads an RBR RSK container. Use OpenRSKAuto to probe the
// schema version, or OpenRSK/OpenRSKLegacy to require a specific one.
type RSKReader struct {
	path   string
	opts   Options
	schema RSKSchema
	ds     *Dataset
	meta   map[string]string
}

// OpenRSKAuto probes the container's schema version and delegates to
// the matching parser.
func OpenRSKAuto(path string, opts Options) (*RSKReader, error) {
	return openRSK(path, opts, "")
}

// OpenRSK assumes the modern normalized schema and fails with
// SchemaMismatchError if probing indicates otherwise.
func OpenRSK(path string, opts Options) (*RSKReader, error) {
	return openRSK(path, opts, RSKSchemaModern)
}

// OpenRSKLegacy assumes the legacy flat-table schema and fails with
// SchemaMismatchError if probing indicates otherwise.
func OpenRSKLegacy(path string, opts Options) (*RSKReader, error) {
	return openRSK(path, opts, RSKSchemaLegacy)
}

// Data returns the canonical dataset extracted from the container.
func (r *RSKReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the container-derived global attributes.
func (r *RSKReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

// Schema returns the schema version the container was parsed with.
func (r *RSKReader) Schema() RSKSchema { return r.schema }

func openRSK(path string, opts Options, want RSKSchema) (*RSKReader, error) {
	// Verify the SQLite signature up front so a truncated or foreign
	// file fails as a corrupt container instead of a driver error on
	// the first query.
	head := make([]byte, len(sqliteMagic))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	n, _ := f.Read(head)
	f.Close()
	if n < len(sqliteMagic) || !bytes.Equal(head, sqliteMagic) {
		return nil, &CorruptContainerError{Path: path, Err: fmt.Errorf("not an SQLite container")}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CorruptContainerError{Path: path, Err: err}
	}
	defer db.Close()

	schema, err := probeRSKSchema(db, path)
	if err != nil {
		return nil, err
	}
	if want != "" && schema != want {
		return nil, &SchemaMismatchError{Path: path, Want: want, Got: schema}
	}

	r := &RSKReader{path: path, opts: opts, schema: schema, meta: make(map[string]string)}
	if err := r.read(db); err != nil {
		return nil, err
	}
	return r, nil
}

// probeRSKSchema detects the container's schema version. The
// predicates run in a fixed order: (1) a dbInfo table whose version is
// ≥ 2.0 selects the modern layout; (2) otherwise, channels and data
// tables select the legacy layout, whether dbInfo is absent or carries
// an older version; (3) anything else is an unsupported schema.
func probeRSKSchema(db *sql.DB, path string) (RSKSchema, error) {
	tables, err := sqliteTables(db)
	if err != nil {
		return "", &CorruptContainerError{Path: path, Err: err}
	}
	version := ""
	if tables["dbInfo"] {
		if err := db.QueryRow("SELECT version FROM dbInfo").Scan(&version); err != nil {
			return "", &CorruptContainerError{Path: path, Err: fmt.Errorf("reading dbInfo: %v", err)}
		}
		if major := strings.SplitN(version, ".", 2)[0]; major != "" {
			if v, err := strconv.Atoi(major); err == nil && v >= 2 {
				return RSKSchemaModern, nil
			}
		}
	}
	if tables["channels"] && tables["data"] {
		return RSKSchemaLegacy, nil
	}
	return "", &UnsupportedSchemaVersionError{Path: path, Version: version}
}

func sqliteTables(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func (r *RSKReader) read(db *sql.DB) error {
	channels, err := r.readChannels(db)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("empty channel catalog")}
	}

	times, raw, err := r.readSamples(db, channels)
	if err != nil {
		return err
	}
	for i, ch := range channels {
		if len(raw[i]) != len(times) {
			return &CorruptContainerError{Path: r.path,
				Err: fmt.Errorf("channel %q has %d samples for %d timestamps", ch.code, len(raw[i]), len(times))}
		}
	}

	ds := NewDataset(TimeSeries)
	if r.opts.BadFlag != nil {
		ds.ForbidSentinel(*r.opts.BadFlag)
	}
	if err := ds.SetTimeCoordinate(times); err != nil {
		if nm, ok := err.(*NonMonotonicCoordinateError); ok {
			nm.Path = r.path
		}
		return err
	}

	mapper := r.opts.mapper(r.path)
	for i, ch := range channels {
		canonical, tag, err := mapper.Map(ch.code)
		if err != nil {
			return err
		}
		vals := raw[i]
		// Raw counts to engineering units, in this schema version's
		// coefficient order.
		if ch.c0 != 0 || ch.c1 != 1 {
			floats.Scale(ch.c1, vals)
			floats.AddConst(ch.c0, vals)
		}
		attrs := map[string]string{
			"source_name": ch.code,
			attrMapping:   tag,
			"calibration": fmt.Sprintf("c0=%g c1=%g", ch.c0, ch.c1),
		}
		if ch.longName != "" {
			attrs["long_name"] = ch.longName
		}
		if err := ds.AddVariable(canonical, vals, ch.unit, attrs); err != nil {
			return err
		}
	}

	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatRBRRSK)
	r.meta["schema"] = string(r.schema)
	r.readInstrument(db)
	for k, v := range r.meta {
		ds.SetGlobalAttr(k, v)
	}
	if err := ds.Finalize(); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

// readChannels loads the channel catalog with per-channel units and
// calibration coefficients, in the layout of the probed schema.
func (r *RSKReader) readChannels(db *sql.DB) ([]rskChannel, error) {
	var channels []rskChannel
	switch r.schema {
	case RSKSchemaModern:
		rows, err := db.Query("SELECT channelID, shortName, longName, units FROM channels ORDER BY channelID")
		if err != nil {
			return nil, &CorruptContainerError{Path: r.path, Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			ch := rskChannel{c1: 1}
			var longName sql.NullString
			if err := rows.Scan(&ch.id, &ch.code, &longName, &ch.unit); err != nil {
				return nil, &CorruptContainerError{Path: r.path, Err: err}
			}
			ch.longName = longName.String
			channels = append(channels, ch)
		}
		if err := rows.Err(); err != nil {
			return nil, &CorruptContainerError{Path: r.path, Err: err}
		}
		if err := r.readCoefficients(db, channels); err != nil {
			return nil, err
		}
	case RSKSchemaLegacy:
		rows, err := db.Query("SELECT channelID, shortName, units, calibOffset, calibGain FROM channels ORDER BY channelID")
		if err != nil {
			return nil, &CorruptContainerError{Path: r.path, Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			var ch rskChannel
			var offset, gain sql.NullFloat64
			if err := rows.Scan(&ch.id, &ch.code, &ch.unit, &offset, &gain); err != nil {
				return nil, &CorruptContainerError{Path: r.path, Err: err}
			}
			// Legacy stores (offset, gain) inline; identical linear
			// form, different storage order and defaults.
			ch.c0 = offset.Float64
			ch.c1 = 1
			if gain.Valid {
				ch.c1 = gain.Float64
			}
			channels = append(channels, ch)
		}
		if err := rows.Err(); err != nil {
			return nil, &CorruptContainerError{Path: r.path, Err: err}
		}
	}
	return channels, nil
}

// readCoefficients fills in c0/c1 for the modern layout, where
// calibrations are keyed by 1-based channel order and coefficients are
// key/value rows. Coefficient keys beyond the linear pair belong to
// schema versions this parser does not know, so they fail the parse
// rather than being guessed at.
func (r *RSKReader) readCoefficients(db *sql.DB, channels []rskChannel) error {
	rows, err := db.Query(`SELECT ca.channelOrder, co.key, co.value
		FROM calibrations ca JOIN coefficients co ON co.calibrationID = ca.calibrationID`)
	if err != nil {
		return &CorruptContainerError{Path: r.path, Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var order int
		var key string
		var value float64
		if err := rows.Scan(&order, &key, &value); err != nil {
			return &CorruptContainerError{Path: r.path, Err: err}
		}
		if order < 1 || order > len(channels) {
			return &CorruptContainerError{Path: r.path,
				Err: fmt.Errorf("calibration references channel order %d of %d channels", order, len(channels))}
		}
		switch key {
		case "c0":
			channels[order-1].c0 = value
		case "c1":
			channels[order-1].c1 = value
		default:
			return &UnsupportedSchemaVersionError{Path: r.path,
				Version: fmt.Sprintf("%s with %q calibration coefficients", r.schema, key)}
		}
	}
	return rows.Err()
}

// readSamples streams the raw sample table. Timestamps are epoch
// milliseconds; NULL cells and cells matching the configured bad-value
// sentinel become NoData.
func (r *RSKReader) readSamples(db *sql.DB, channels []rskChannel) ([]time.Time, [][]float64, error) {
	rows, err := db.Query("SELECT * FROM data")
	if err != nil {
		return nil, nil, &CorruptContainerError{Path: r.path, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, &CorruptContainerError{Path: r.path, Err: err}
	}
	// Map the channelNN data columns onto catalog positions.
	tstampIdx := -1
	chanIdx := make([]int, len(cols)) // column -> channel position, or -1
	for i, c := range cols {
		chanIdx[i] = -1
		if c == "tstamp" {
			tstampIdx = i
			continue
		}
		if strings.HasPrefix(c, "channel") {
			if n, err := strconv.Atoi(strings.TrimPrefix(c, "channel")); err == nil && n >= 1 && n <= len(channels) {
				chanIdx[i] = n - 1
			}
		}
	}
	if tstampIdx < 0 {
		return nil, nil, &CorruptContainerError{Path: r.path, Err: fmt.Errorf("data table has no tstamp column")}
	}

	var times []time.Time
	raw := make([][]float64, len(channels))
	scan := make([]interface{}, len(cols))
	var tstamp sql.NullInt64
	vals := make([]sql.NullFloat64, len(cols))
	for i := range cols {
		if i == tstampIdx {
			scan[i] = &tstamp
		} else {
			scan[i] = &vals[i]
		}
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, &CorruptContainerError{Path: r.path, Err: err}
		}
		if !tstamp.Valid {
			return nil, nil, &CorruptContainerError{Path: r.path, Err: fmt.Errorf("NULL timestamp in data table")}
		}
		times = append(times, time.UnixMilli(tstamp.Int64).UTC())
		for i, ci := range chanIdx {
			if ci < 0 {
				continue
			}
			v := NoData
			if vals[i].Valid {
				v = vals[i].Float64
				if r.opts.BadFlag != nil && v == *r.opts.BadFlag {
					v = NoData
				}
			}
			raw[ci] = append(raw[ci], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &CorruptContainerError{Path: r.path, Err: err}
	}
	return times, raw, nil
}

// readInstrument records the instrument identity when the container
// carries an instruments table. Absence is not an error; legacy
// containers often omit it.
func (r *RSKReader) readInstrument(db *sql.DB) {
	var serial, model sql.NullString
	err := db.QueryRow("SELECT serialID, model FROM instruments").Scan(&serial, &model)
	if err != nil {
		return
	}
	if model.Valid {
		r.meta["instrument"] = model.String
	}
	if serial.Valid {
		r.meta["instrument_serial"] = serial.String
	}
}
