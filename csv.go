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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// csvTimeLayouts are the timestamp layouts accepted in CSV time
// columns, in the order they are tried.
var csvTimeLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// CSVReader adapts a generic CSV file into the canonical dataset
// shape: the header row is remapped through the parameter mapper and
// a usable primary coordinate (time column, or pressure for a profile
// cast) is required.
type CSVReader struct {
	path  string
	opts  Options
	ds    *Dataset
	meta  map[string]string
	diags []RowDiagnostic
}

// OpenCSV parses the CSV file at path.
func OpenCSV(path string, opts Options) (*CSVReader, error) {
	r := &CSVReader{path: path, opts: opts, meta: make(map[string]string)}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Data returns the canonical dataset extracted from the file.
func (r *CSVReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the file-level attributes.
func (r *CSVReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

// Diagnostics returns the rows skipped in lenient mode.
func (r *CSVReader) Diagnostics() []RowDiagnostic { return r.diags }

func (r *CSVReader) read() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1 // field-count policy is ours, not the tokenizer's
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("reading header row: %v", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	timeCol := -1
	for i, name := range header {
		if strings.EqualFold(name, "time") {
			timeCol = i
			break
		}
	}

	var times []time.Time
	columns := make([][]float64, len(header))
	lineNo := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			if merr := r.malformed(lineNo, len(header), 0, err.Error()); merr != nil {
				return merr
			}
			continue
		}
		if len(record) != len(header) {
			if merr := r.malformed(lineNo, len(header), len(record), ""); merr != nil {
				return merr
			}
			continue
		}
		rowTimes, rowVals, ok, err := r.parseRecord(record, timeCol, lineNo)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if timeCol >= 0 {
			times = append(times, rowTimes)
		}
		for i, v := range rowVals {
			if i == timeCol {
				continue
			}
			columns[i] = append(columns[i], v)
		}
	}
	if len(r.diags) > 0 {
		r.opts.logf("seasense: %s: skipped %d malformed rows", r.path, len(r.diags))
	}
	empty := true
	for _, col := range columns {
		if len(col) > 0 {
			empty = false
			break
		}
	}
	if empty && len(times) == 0 {
		return &MissingCoordinateError{Path: r.path,
			Reason: "empty data block: the header declares columns but no data rows follow"}
	}

	mapper := r.opts.mapper(r.path)
	names := make([]string, len(header))
	tags := make([]string, len(header))
	hasPressure := false
	for i, name := range header {
		if i == timeCol {
			continue
		}
		canonical, tag, err := mapper.Map(name)
		if err != nil {
			return err
		}
		names[i], tags[i] = canonical, tag
		if canonical == "pressure" || canonical == "depth" {
			hasPressure = true
		}
	}

	kind := TimeSeries
	if timeCol < 0 {
		if !hasPressure {
			return &MissingCoordinateError{Path: r.path,
				Reason: "no time column and no pressure or depth column to order a profile cast"}
		}
		kind = ProfileCast
	}

	ds := NewDataset(kind)
	if r.opts.BadFlag != nil {
		ds.ForbidSentinel(*r.opts.BadFlag)
	}
	if timeCol >= 0 {
		if err := ds.SetTimeCoordinate(times); err != nil {
			if nm, ok := err.(*NonMonotonicCoordinateError); ok {
				nm.Path = r.path
			}
			return err
		}
	}
	for i, name := range header {
		if i == timeCol {
			continue
		}
		attrs := map[string]string{"source_name": name, attrMapping: tags[i]}
		if err := ds.AddVariable(names[i], columns[i], "", attrs); err != nil {
			return err
		}
	}

	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatCSV)
	for k, v := range r.meta {
		ds.SetGlobalAttr(k, v)
	}
	if err := ds.Finalize(); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

// parseRecord parses one data record. ok is false when the record was
// skipped in lenient mode.
func (r *CSVReader) parseRecord(record []string, timeCol, lineNo int) (t time.Time, vals []float64, ok bool, err error) {
	vals = make([]float64, len(record))
	for i, field := range record {
		field = strings.TrimSpace(field)
		if i == timeCol {
			parsed := false
			for _, layout := range csvTimeLayouts {
				if ts, perr := time.Parse(layout, field); perr == nil {
					t = ts.UTC()
					parsed = true
					break
				}
			}
			if !parsed {
				if merr := r.malformed(lineNo, len(record), len(record),
					fmt.Sprintf("unparseable timestamp %q", field)); merr != nil {
					return time.Time{}, nil, false, merr
				}
				return time.Time{}, nil, false, nil
			}
			continue
		}
		if field == "" {
			vals[i] = NoData
			continue
		}
		v, perr := strconv.ParseFloat(field, 64)
		if perr != nil {
			if merr := r.malformed(lineNo, len(record), len(record),
				fmt.Sprintf("field %d: %q is not numeric", i, field)); merr != nil {
				return time.Time{}, nil, false, merr
			}
			return time.Time{}, nil, false, nil
		}
		if r.opts.BadFlag != nil && v == *r.opts.BadFlag {
			v = NoData
		}
		vals[i] = v
	}
	return t, vals, true, nil
}

func (r *CSVReader) malformed(line, want, got int, reason string) error {
	err := &MalformedRowError{Path: r.path, Line: line, Want: want, Got: got, Reason: reason}
	if !r.opts.Lenient {
		return err
	}
	r.diags = append(r.diags, RowDiagnostic{Line: line, Fields: got, Reason: err.Error()})
	return nil
}
