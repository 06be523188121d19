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
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// cnvDefaultBadFlag is the conventional Seabird missing-sample marker,
// used when the header carries no bad_flag directive.
const cnvDefaultBadFlag = -9.990e-29

// cnvStartTimeLayout matches Seabird start_time directives, e.g.
// "Jan 01 2020 00:00:00".
const cnvStartTimeLayout = "Jan 02 2006 15:04:05"

var (
	cnvNameRe      = regexp.MustCompile(`^# name (\d+) = ([^:]+):\s*(.*)$`)
	cnvUnitRe      = regexp.MustCompile(`\[([^\]]+)\]`)
	cnvIntervalRe  = regexp.MustCompile(`^# interval = seconds: ([\d.]+)`)
	cnvStartTimeRe = regexp.MustCompile(`^# start_time = ([A-Za-z]{3} \d{2} \d{4} \d{2}:\d{2}:\d{2})`)
	cnvBadFlagRe   = regexp.MustCompile(`^# bad_flag = (\S+)`)
	cnvSeaBirdRe   = regexp.MustCompile(`\*+\s*(Sea-Bird\s+[A-Za-z0-9\- ]+?)\s+Data File`)
	cnvLatitudeRe  = regexp.MustCompile(`\* NMEA Latitude = (\d+) ([\d.]+) ([NS])`)
)

// Elapsed-time column codes, checked in order of preference. Each
// carries its own epoch: timeJ counts Julian days from the start of
// the cast's year, timeQ seconds since 2000-01-01, timeN seconds
// since 1970-01-01, and timeS seconds since the cast start.
var (
	cnvJulianCodes = map[string]bool{"timeJ": true, "timeJV2": true, "timeSCP": true}
	epoch2000      = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1970      = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
)

// cnvColumn is one column declared by a "# name" header directive.
type cnvColumn struct {
	index       int
	code        string
	description string
	unit        string
}

// CNVReader reads a Seabird CNV file: an ASCII header of one directive
// per line followed by a whitespace-separated numeric data block.
type CNVReader struct {
	path  string
	opts  Options
	ds    *Dataset
	meta  map[string]string
	diags []RowDiagnostic
}

// OpenCNV parses the CNV file at path. The parse happens here; Data
// only hands out the result.
func OpenCNV(path string, opts Options) (*CNVReader, error) {
	r := &CNVReader{path: path, opts: opts, meta: make(map[string]string)}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Data returns the canonical dataset extracted from the file.
func (r *CNVReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the header-derived global attributes.
func (r *CNVReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

// Diagnostics returns the rows skipped in lenient mode.
func (r *CNVReader) Diagnostics() []RowDiagnostic { return r.diags }

func (r *CNVReader) read() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		columns   []cnvColumn
		interval  float64
		startTime time.Time
		hasStart  bool
		latitude  float64
		hasLat    bool
		badFlag   = cnvDefaultBadFlag
		inData    bool
		lineNo    int
	)
	if r.opts.BadFlag != nil {
		badFlag = *r.opts.BadFlag
	}

	var rows [][]float64
	var rowLines []int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if !inData {
			if line == "*END*" {
				inData = true
				continue
			}
			r.parseHeaderLine(line, &columns, &interval, &startTime, &hasStart,
				&latitude, &hasLat, &badFlag)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(columns) {
			if err := r.malformed(lineNo, len(columns), len(fields), ""); err != nil {
				return err
			}
			continue
		}
		row := make([]float64, len(fields))
		ok := true
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				if err := r.malformed(lineNo, len(columns), len(fields),
					fmt.Sprintf("field %d: %q is not numeric", i, field)); err != nil {
					return err
				}
				ok = false
				break
			}
			if v == badFlag {
				v = NoData
			}
			row[i] = v
		}
		if ok {
			rows = append(rows, row)
			rowLines = append(rowLines, lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("seasense: %s: reading data block: %v", r.path, err)
	}
	if len(columns) == 0 {
		return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("no column directives in header")}
	}

	// A bad-flagged cell in the elapsed-time column leaves the row
	// without a timestamp; treating it as data would fabricate a
	// coordinate value. The row is malformed.
	timeCol, timeEpoch, timeUnit := timeColumn(columns, startTime, hasStart)
	if timeCol >= 0 {
		kept := rows[:0]
		for j, row := range rows {
			if IsNoData(row[timeCol]) {
				if err := r.malformed(rowLines[j], len(columns), len(columns),
					fmt.Sprintf("missing sample in time column %s", columns[timeCol].code)); err != nil {
					return err
				}
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}
	if len(r.diags) > 0 {
		r.opts.logf("seasense: %s: skipped %d malformed rows", r.path, len(r.diags))
	}

	// Transpose the row-major data block into per-column arrays.
	data := make([][]float64, len(columns))
	for i := range data {
		data[i] = make([]float64, len(rows))
		for j, row := range rows {
			data[i][j] = row[i]
		}
	}

	var times []time.Time
	switch {
	case timeCol >= 0:
		times = elapsedToTimes(data[timeCol], timeEpoch, timeUnit)
	case interval > 0 && hasStart:
		times = make([]time.Time, len(rows))
		step := time.Duration(interval * float64(time.Second))
		for i := range times {
			times[i] = startTime.Add(time.Duration(i) * step)
		}
	}

	kind := ProfileCast
	if times != nil {
		kind = TimeSeries
	}
	ds := NewDataset(kind)
	ds.ForbidSentinel(badFlag)
	if times != nil {
		if err := ds.SetTimeCoordinate(times); err != nil {
			if nm, ok := err.(*NonMonotonicCoordinateError); ok {
				nm.Path = r.path
			}
			return err
		}
	}

	mapper := r.opts.mapper(r.path)
	for i, col := range columns {
		if i == timeCol {
			continue
		}
		canonical, tag, err := mapper.Map(col.code)
		if err != nil {
			return err
		}
		attrs := map[string]string{
			"source_name": col.code,
			attrMapping:   tag,
		}
		if desc := strings.TrimSpace(cnvUnitRe.ReplaceAllString(col.description, "")); desc != "" {
			attrs["long_name"] = strings.TrimRight(desc, ", ")
		}
		if err := ds.AddVariable(canonical, data[i], col.unit, attrs); err != nil {
			return err
		}
	}

	// The file's own depth column doubles as the secondary coordinate;
	// otherwise derive depth from pressure when the latitude for the
	// gravity term is known.
	if dvals, ok := ds.Variable("depth"); ok {
		if err := ds.SetDepthCoordinate(dvals); err != nil {
			return err
		}
	} else if p, ok := ds.Variable("pressure"); ok && hasLat {
		if err := ds.SetDepthCoordinate(depthFromPressure(p, latitude)); err != nil {
			return err
		}
	}

	if err := addDerivedVariables(ds); err != nil {
		return err
	}

	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatSBECNV)
	r.meta["bad_flag"] = strconv.FormatFloat(badFlag, 'g', -1, 64)
	if hasStart {
		r.meta["start_time"] = startTime.Format(time.RFC3339)
	}
	if interval > 0 {
		r.meta["sample_interval_seconds"] = strconv.FormatFloat(interval, 'g', -1, 64)
	}
	for k, v := range r.meta {
		ds.SetGlobalAttr(k, v)
	}
	if err := ds.Finalize(); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

func (r *CNVReader) parseHeaderLine(line string, columns *[]cnvColumn,
	interval *float64, startTime *time.Time, hasStart *bool,
	latitude *float64, hasLat *bool, badFlag *float64) {
	if m := cnvNameRe.FindStringSubmatch(line); m != nil {
		col := cnvColumn{
			code:        strings.TrimSpace(m[2]),
			description: strings.TrimSpace(m[3]),
		}
		col.index, _ = strconv.Atoi(m[1])
		if u := cnvUnitRe.FindStringSubmatch(col.description); u != nil {
			col.unit = u[1]
		}
		*columns = append(*columns, col)
		return
	}
	if m := cnvIntervalRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			*interval = v
		}
		return
	}
	if m := cnvStartTimeRe.FindStringSubmatch(line); m != nil {
		if t, err := time.Parse(cnvStartTimeLayout, m[1]); err == nil {
			*startTime = t.UTC()
			*hasStart = true
		}
		return
	}
	if m := cnvBadFlagRe.FindStringSubmatch(line); m != nil {
		// An Options.BadFlag override beats the header directive.
		if r.opts.BadFlag == nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				*badFlag = v
			}
		}
		return
	}
	if m := cnvSeaBirdRe.FindStringSubmatch(line); m != nil {
		r.meta["instrument"] = strings.TrimSpace(m[1])
		return
	}
	if m := cnvLatitudeRe.FindStringSubmatch(line); m != nil {
		deg, _ := strconv.ParseFloat(m[1], 64)
		min, _ := strconv.ParseFloat(m[2], 64)
		lat := deg + min/60
		if m[3] == "S" {
			lat = -lat
		}
		*latitude = lat
		*hasLat = true
		r.meta["latitude"] = strconv.FormatFloat(lat, 'f', 6, 64)
		return
	}
}

// timeColumn selects the elapsed-time column and its epoch, in order
// of preference. (-1, zero, 0) means no elapsed-time column applies
// and the caller falls back to the interval directive or a
// scan-indexed cast.
func timeColumn(columns []cnvColumn, startTime time.Time, hasStart bool) (int, time.Time, time.Duration) {
	for i, col := range columns {
		switch {
		case cnvJulianCodes[col.code] && hasStart:
			// Julian day 1.0 is 0000 on 1 January of the cast's year.
			epoch := time.Date(startTime.Year(), 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
			return i, epoch, 24 * time.Hour
		case col.code == "timeQ":
			return i, epoch2000, time.Second
		case col.code == "timeN":
			return i, epoch1970, time.Second
		case col.code == "timeS" && hasStart:
			return i, startTime, time.Second
		}
	}
	return -1, time.Time{}, 0
}

// elapsedToTimes converts elapsed offsets in the given unit since
// epoch into timestamps. Callers must reject NoData offsets first; a
// NaN offset has no meaningful timestamp.
func elapsedToTimes(offsets []float64, epoch time.Time, unit time.Duration) []time.Time {
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		out[i] = epoch.Add(time.Duration(v * float64(unit)))
	}
	return out
}

func (r *CNVReader) malformed(line, want, got int, reason string) error {
	err := &MalformedRowError{Path: r.path, Line: line, Want: want, Got: got, Reason: reason}
	if !r.opts.Lenient {
		return err
	}
	r.diags = append(r.diags, RowDiagnostic{Line: line, Fields: got, Reason: err.Error()})
	return nil
}
