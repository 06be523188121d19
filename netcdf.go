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
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/spf13/cast"
)

// ncEpochLayouts are the timestamp layouts accepted in CF-style time
// units attributes ("seconds since 1970-01-01 00:00:00").
var ncEpochLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// NetCDFReader adapts a generic NetCDF file into the canonical
// dataset shape. It does not parse a proprietary layout, but it still
// enforces the canonical contract: a usable primary coordinate must
// exist and variable names are remapped through the parameter mapper.
type NetCDFReader struct {
	path string
	opts Options
	ds   *Dataset
	meta map[string]string
}

// OpenNetCDF opens and validates the NetCDF file at path.
func OpenNetCDF(path string, opts Options) (*NetCDFReader, error) {
	r := &NetCDFReader{path: path, opts: opts, meta: make(map[string]string)}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// Data returns the canonical dataset extracted from the file.
func (r *NetCDFReader) Data() (*Dataset, error) { return r.ds, nil }

// Metadata returns the file's global attributes.
func (r *NetCDFReader) Metadata() map[string]string {
	out := make(map[string]string, len(r.meta))
	for k, v := range r.meta {
		out[k] = v
	}
	return out
}

func (r *NetCDFReader) read() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return &CorruptContainerError{Path: r.path, Err: err}
	}
	h := ff.Header

	mapper := r.opts.mapper(r.path)

	// Locate the primary coordinate: a 1-D time variable, or failing
	// that a pressure variable ordering a profile cast.
	timeName := ""
	for _, v := range h.Variables() {
		if strings.EqualFold(v, "time") && len(h.Lengths(v)) == 1 {
			timeName = v
			break
		}
	}

	var times []time.Time
	var n int
	kind := TimeSeries
	if timeName != "" {
		offsets, err := readNCVar(ff, timeName)
		if err != nil {
			return &CorruptContainerError{Path: r.path, Err: err}
		}
		units := cast.ToString(h.GetAttribute(timeName, "units"))
		epoch, unit, err := parseNCTimeUnits(units)
		if err != nil {
			return &MissingCoordinateError{Path: r.path,
				Reason: fmt.Sprintf("time variable has unusable units %q", units)}
		}
		times = elapsedToTimes(offsets, epoch, unit)
		n = len(times)
	} else {
		pressureName := ""
		for _, v := range h.Variables() {
			if len(h.Lengths(v)) != 1 {
				continue
			}
			if canonical, _, err := mapper.Map(v); err == nil && canonical == "pressure" {
				pressureName = v
				break
			}
		}
		if pressureName == "" {
			return &MissingCoordinateError{Path: r.path,
				Reason: "no time variable and no pressure variable to order a profile cast"}
		}
		kind = ProfileCast
		n = h.Lengths(pressureName)[0]
	}

	ds := NewDataset(kind)
	if r.opts.BadFlag != nil {
		ds.ForbidSentinel(*r.opts.BadFlag)
	}
	if times != nil {
		if err := ds.SetTimeCoordinate(times); err != nil {
			if nm, ok := err.(*NonMonotonicCoordinateError); ok {
				nm.Path = r.path
			}
			return err
		}
	}

	for _, v := range h.Variables() {
		if v == timeName {
			continue
		}
		lengths := h.Lengths(v)
		if len(lengths) != 1 || lengths[0] != n {
			// Not aligned to the primary dimension; scalars become
			// provenance metadata, anything else is skipped.
			if len(lengths) == 1 && lengths[0] == 1 {
				if vals, err := readNCVar(ff, v); err == nil && len(vals) == 1 {
					r.meta[v] = cast.ToString(vals[0])
				}
			} else {
				r.opts.logf("seasense: %s: skipping variable %s: not aligned to the primary dimension", r.path, v)
			}
			continue
		}
		vals, err := readNCVar(ff, v)
		if err != nil {
			return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("reading variable %s: %v", v, err)}
		}
		// The file's fill value is this variable's bad-value
		// sentinel.
		if fill, ok := ncScalar(h.FillValue(v)); ok {
			for i, x := range vals {
				if x == fill {
					vals[i] = NoData
				}
			}
		}
		if r.opts.BadFlag != nil {
			for i, x := range vals {
				if x == *r.opts.BadFlag {
					vals[i] = NoData
				}
			}
		}
		canonical, tag, err := mapper.Map(v)
		if err != nil {
			return err
		}
		attrs := map[string]string{"source_name": v, attrMapping: tag}
		for _, a := range h.Attributes(v) {
			if a == "units" {
				continue
			}
			if s, err := cast.ToStringE(h.GetAttribute(v, a)); err == nil && s != "" {
				attrs[a] = s
			}
		}
		units := cast.ToString(h.GetAttribute(v, "units"))
		if err := ds.AddVariable(canonical, vals, units, attrs); err != nil {
			return err
		}
		if canonical == "depth" {
			if err := ds.SetDepthCoordinate(vals); err != nil {
				return err
			}
		}
	}
	if len(ds.Variables()) == 0 {
		return &CorruptContainerError{Path: r.path, Err: fmt.Errorf("no variables aligned to the primary dimension")}
	}

	for _, a := range h.Attributes("") {
		if s, err := cast.ToStringE(h.GetAttribute("", a)); err == nil {
			r.meta[a] = s
		}
	}
	r.meta["source_file"] = r.path
	r.meta["source_format"] = string(FormatNetCDF)
	for k, v := range r.meta {
		ds.SetGlobalAttr(k, v)
	}
	if err := ds.Finalize(); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

// readNCVar reads the full contents of a NetCDF variable as float64.
func readNCVar(ff *cdf.File, name string) ([]float64, error) {
	rr := ff.Reader(name, nil, nil)
	buf := rr.Zero(-1)
	if _, err := rr.Read(buf); err != nil {
		return nil, err
	}
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("variable %s has non-numeric type %T", name, buf)
}

// ncScalar unwraps a scalar NetCDF value, which the cdf package may
// hand back either bare or as a one-element slice.
func ncScalar(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint8:
		return float64(x), true
	case []float64:
		if len(x) == 1 {
			return x[0], true
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

// parseNCTimeUnits interprets a CF time units attribute of the
// "<unit> since <epoch>" family.
func parseNCTimeUnits(units string) (time.Time, time.Duration, error) {
	fields := strings.SplitN(units, " since ", 2)
	if len(fields) != 2 {
		return time.Time{}, 0, fmt.Errorf("units %q lack a \"since\" clause", units)
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(fields[0])) {
	case "seconds", "second", "s":
		unit = time.Second
	case "milliseconds", "millisecond", "ms":
		unit = time.Millisecond
	case "minutes", "minute":
		unit = time.Minute
	case "hours", "hour", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return time.Time{}, 0, fmt.Errorf("unknown time unit %q", fields[0])
	}
	epochStr := strings.TrimSpace(fields[1])
	for _, layout := range ncEpochLayouts {
		if t, err := time.Parse(layout, epochStr); err == nil {
			return t.UTC(), unit, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("cannot parse epoch %q", epochStr)
}
