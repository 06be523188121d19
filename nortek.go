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
	"strconv"
	"strings"
	"time"
)

// nortekTimeLayout matches start-time entries in Nortek configuration
// preambles, e.g. "2020-06-01 12:00:00".
const nortekTimeLayout = "2006-01-02 15:04:05"

// nortekPreamble is the instrument configuration parsed from the
// preamble (or a separate header file for exports that split them).
type nortekPreamble struct {
	instrument string
	beams      int
	cells      int
	interval   float64 // seconds
	start      time.Time
	hasStart   bool
	scalarCols []string // per-ensemble scalar column labels, in order
	extra      map[string]string
}

// declared is the per-row field count the preamble implies: the scalar
// columns followed by one velocity column per beam and cell.
func (p *nortekPreamble) declared() int {
	return len(p.scalarCols) + p.beams*p.cells
}

// NortekReader reads a Nortek ASCII export: a configuration preamble
// followed by fixed-column data rows, one row per ensemble.
type NortekReader struct {
	path  string
	opts  Options
	ds    *Dataset
	meta  map[string]string
	diags []RowDiagnostic
}

// OpenNortek parses the Nortek ASCII file at path. If
// Options.HeaderPath is set, the configuration preamble is read from
// that file and path is treated as pure data rows.
func OpenNortek(path string, opts Options) (*NortekReader, error) {
	r := &NortekReader{path: path, opts: opts, meta: make(map[string]string)}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Data returns the canonical dataset extracted from the file.
func (r *NortekReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the preamble-derived global attributes.
func (r *NortekReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

// Diagnostics returns the rows skipped in lenient mode.
func (r *NortekReader) Diagnostics() []RowDiagnostic { return r.diags }

func (r *NortekReader) read() error {
	pre := &nortekPreamble{cells: 1, extra: make(map[string]string)}

	dataPath := r.path
	var dataLines []string
	var firstDataLineNo int
	if r.opts.HeaderPath != "" {
		hdr, err := os.ReadFile(r.opts.HeaderPath)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(hdr), "\n") {
			parseNortekPreambleLine(strings.TrimRight(line, "\r"), pre)
		}
		lines, err := readLines(dataPath)
		if err != nil {
			return err
		}
		dataLines = lines
		firstDataLineNo = 1
	} else {
		lines, err := readLines(dataPath)
		if err != nil {
			return err
		}
		// The preamble ends at the first line whose first field is
		// numeric.
		i := 0
		for ; i < len(lines); i++ {
			fields := strings.Fields(lines[i])
			if len(fields) > 0 {
				if _, err := strconv.ParseFloat(fields[0], 64); err == nil {
					break
				}
			}
			parseNortekPreambleLine(lines[i], pre)
		}
		dataLines = lines[i:]
		firstDataLineNo = i + 1
	}

	if pre.declared() == 0 {
		return &PreambleMismatchError{Path: r.path, Declared: 0, Got: 0}
	}
	if pre.beams < 1 {
		return fmt.Errorf("seasense: %s: preamble declares %d beams", r.path, pre.beams)
	}

	declared := pre.declared()
	var rows [][]float64
	for j, line := range dataLines {
		lineNo := firstDataLineNo + j
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != declared {
			// The first ensemble establishes whether the preamble
			// matches the data block at all.
			if len(rows) == 0 && len(r.diags) == 0 {
				return &PreambleMismatchError{Path: r.path, Declared: declared, Got: len(fields)}
			}
			if err := r.malformed(lineNo, declared, len(fields), ""); err != nil {
				return err
			}
			continue
		}
		row := make([]float64, declared)
		ok := true
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				if err := r.malformed(lineNo, declared, len(fields),
					fmt.Sprintf("field %d: %q is not numeric", i, field)); err != nil {
					return err
				}
				ok = false
				break
			}
			if r.opts.BadFlag != nil && v == *r.opts.BadFlag {
				v = NoData
			}
			row[i] = v
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if len(r.diags) > 0 {
		r.opts.logf("seasense: %s: skipped %d malformed rows", r.path, len(r.diags))
	}

	n := len(rows)
	kind := ProfileCast
	if pre.interval > 0 && pre.hasStart {
		kind = TimeSeries
	}
	ds := NewDataset(kind)
	if r.opts.BadFlag != nil {
		ds.ForbidSentinel(*r.opts.BadFlag)
	}
	if kind == TimeSeries {
		times := make([]time.Time, n)
		step := time.Duration(pre.interval * float64(time.Second))
		for i := range times {
			times[i] = pre.start.Add(time.Duration(i) * step)
		}
		if err := ds.SetTimeCoordinate(times); err != nil {
			return err
		}
	}

	column := func(idx int) []float64 {
		out := make([]float64, n)
		for i, row := range rows {
			out[i] = row[idx]
		}
		return out
	}

	mapper := r.opts.mapper(r.path)
	for i, label := range pre.scalarCols {
		canonical, tag, err := mapper.Map(label)
		if err != nil {
			return err
		}
		attrs := map[string]string{"source_name": label, attrMapping: tag}
		if err := ds.AddVariable(canonical, column(i), "", attrs); err != nil {
			return err
		}
	}
	// Expand the velocity block into indexed canonical names.
	for b := 0; b < pre.beams; b++ {
		for c := 0; c < pre.cells; c++ {
			name := fmt.Sprintf("velocity_beam%d", b+1)
			if pre.cells > 1 {
				name = fmt.Sprintf("velocity_beam%d_cell%d", b+1, c+1)
			}
			attrs := map[string]string{
				"beam": strconv.Itoa(b + 1),
				"cell": strconv.Itoa(c + 1),
			}
			idx := len(pre.scalarCols) + b*pre.cells + c
			if err := ds.AddVariable(name, column(idx), "m/s", attrs); err != nil {
				return err
			}
		}
	}

	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatNortekASCII)
	r.meta["beams"] = strconv.Itoa(pre.beams)
	r.meta["cells"] = strconv.Itoa(pre.cells)
	if pre.instrument != "" {
		r.meta["instrument"] = pre.instrument
	}
	if pre.interval > 0 {
		r.meta["sample_interval_seconds"] = strconv.FormatFloat(pre.interval, 'g', -1, 64)
	}
	for k, v := range pre.extra {
		r.meta[k] = v
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

// parseNortekPreambleLine interprets one "key: value" (or "key =
// value") configuration line. Unrecognized keys are carried through as
// provenance attributes.
func parseNortekPreambleLine(line string, pre *nortekPreamble) {
	line = strings.TrimSpace(line)
	if line == "" || strings.Trim(line, "-=") == "" {
		return
	}
	sep := strings.IndexAny(line, ":=")
	if sep < 0 {
		return
	}
	key := strings.TrimSpace(line[:sep])
	value := strings.TrimSpace(line[sep+1:])
	switch strings.ToLower(key) {
	case "instrument", "instrument type":
		pre.instrument = value
	case "number of beams":
		pre.beams, _ = strconv.Atoi(value)
	case "number of cells":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			pre.cells = v
		}
	case "sampling interval":
		if fields := strings.Fields(value); len(fields) > 0 {
			pre.interval, _ = strconv.ParseFloat(fields[0], 64)
		}
	case "start time":
		if t, err := time.Parse(nortekTimeLayout, value); err == nil {
			pre.start = t.UTC()
			pre.hasStart = true
		}
	case "columns":
		pre.scalarCols = strings.Fields(value)
	default:
		pre.extra["preamble_"+strings.ReplaceAll(strings.ToLower(key), " ", "_")] = value
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines, scanner.Err()
}

func (r *NortekReader) malformed(line, want, got int, reason string) error {
	err := &MalformedRowError{Path: r.path, Line: line, Want: want, Got: got, Reason: reason}
	if !r.opts.Lenient {
		return err
	}
	r.diags = append(r.diags, RowDiagnostic{Line: line, Fields: got, Reason: err.Error()})
	return nil
}
