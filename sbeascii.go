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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// sbeTimeLayout matches the per-row timestamps of the SBE ASCII
// export, e.g. "01 Jan 2020 00:00:00".
const sbeTimeLayout = "02 Jan 2006 15:04:05"

var sbeInstrumentRe = regexp.MustCompile(`^\*+\s*(Sea-Bird\s+[A-Za-z0-9\-]+)`)

// SBEASCIIReader reads the plain Seabird ASCII export: a "* key =
// value" header terminated by *END*, then comma-separated rows of
// temperature, conductivity, optional pressure, and a row timestamp.
// Unlike CNV there are no column directives; the layout is fixed and
// the field count (4 or 5) decides whether pressure is present.
type SBEASCIIReader struct {
	path  string
	opts  Options
	ds    *Dataset
	meta  map[string]string
	diags []RowDiagnostic
}

// OpenSBEASCII parses the SBE ASCII file at path.
func OpenSBEASCII(path string, opts Options) (*SBEASCIIReader, error) {
	r := &SBEASCIIReader{path: path, opts: opts, meta: make(map[string]string)}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Data returns the canonical dataset extracted from the file.
func (r *SBEASCIIReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the header-derived global attributes.
func (r *SBEASCIIReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

// Diagnostics returns the rows skipped in lenient mode.
func (r *SBEASCIIReader) Diagnostics() []RowDiagnostic { return r.diags }

func (r *SBEASCIIReader) read() error {
	lines, err := readLines(r.path)
	if err != nil {
		return err
	}

	dataStart := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "*END*") {
			dataStart = i + 1
			break
		}
		if i == 0 {
			if m := sbeInstrumentRe.FindStringSubmatch(line); m != nil {
				r.meta["instrument"] = m[1]
			}
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			key = strings.TrimSpace(strings.TrimLeft(key, "* "))
			value = strings.TrimSpace(value)
			if key == "" {
				continue
			}
			r.meta[key] = value
			if strings.EqualFold(key, "sample interval") {
				if fields := strings.Fields(value); len(fields) > 0 {
					r.meta["sample_interval_seconds"] = fields[0]
				}
			}
		}
	}
	if dataStart == 0 {
		return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("no *END* header terminator")}
	}

	// The first data row fixes the field count: 4 fields means
	// temperature, conductivity, date, time; 5 adds pressure before
	// the timestamp.
	var times []time.Time
	var temps, conds, press []float64
	declared := 0
	for j, line := range lines[dataStart:] {
		lineNo := dataStart + 1 + j
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if declared == 0 {
			if len(fields) != 4 && len(fields) != 5 {
				return &MalformedRowError{Path: r.path, Line: lineNo, Want: 4, Got: len(fields),
					Reason: "expected temperature, conductivity, [pressure,] date, time"}
			}
			declared = len(fields)
		}
		if len(fields) != declared {
			if err := r.malformed(lineNo, declared, len(fields), ""); err != nil {
				return err
			}
			continue
		}

		ts, err := time.Parse(sbeTimeLayout, fields[declared-2]+" "+fields[declared-1])
		if err != nil {
			if err := r.malformed(lineNo, declared, len(fields),
				fmt.Sprintf("unparseable timestamp %q", fields[declared-2]+" "+fields[declared-1])); err != nil {
				return err
			}
			continue
		}
		vals := make([]float64, declared-2)
		ok := true
		for i := 0; i < declared-2; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				if err := r.malformed(lineNo, declared, len(fields),
					fmt.Sprintf("field %d: %q is not numeric", i, fields[i])); err != nil {
					return err
				}
				ok = false
				break
			}
			if r.opts.BadFlag != nil && v == *r.opts.BadFlag {
				v = NoData
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		times = append(times, ts.UTC())
		temps = append(temps, vals[0])
		conds = append(conds, vals[1])
		if declared == 5 {
			press = append(press, vals[2])
		}
	}
	if len(r.diags) > 0 {
		r.opts.logf("seasense: %s: skipped %d malformed rows", r.path, len(r.diags))
	}
	if len(times) == 0 {
		return &MissingCoordinateError{Path: r.path, Reason: "empty data block after the header"}
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
	if err := ds.AddVariable("temperature", temps, "deg C", nil); err != nil {
		return err
	}
	if err := ds.AddVariable("conductivity", conds, "S/m", nil); err != nil {
		return err
	}
	if press != nil {
		if err := ds.AddVariable("pressure", press, "dbar", nil); err != nil {
			return err
		}
	}

	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatSBEASCII)
	for k, v := range r.meta {
		ds.SetGlobalAttr(k, v)
	}
	if err := ds.Finalize(); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

func (r *SBEASCIIReader) malformed(line, want, got int, reason string) error {
	err := &MalformedRowError{Path: r.path, Line: line, Want: want, Got: got, Reason: reason}
	if !r.opts.Lenient {
		return err
	}
	r.diags = append(r.diags, RowDiagnostic{Line: line, Fields: got, Reason: err.Error()})
	return nil
}
