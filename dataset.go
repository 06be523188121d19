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
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// DatasetKind is the primary-dimension semantics of a dataset.
type DatasetKind string

const (
	// TimeSeries datasets are indexed by a monotonic time coordinate,
	// as produced by moored instruments.
	TimeSeries DatasetKind = "time-series"
	// ProfileCast datasets are indexed by scan number, with depth or
	// pressure as the natural ordering, as produced by vertical casts.
	ProfileCast DatasetKind = "profile-cast"
)

// NoData is the internal marker for missing samples. Source-format
// bad-value sentinels are translated to NoData by each parser before
// values reach a Dataset.
var NoData = math.NaN()

// IsNoData reports whether x is the missing-sample marker.
func IsNoData(x float64) bool { return math.IsNaN(x) }

// Variable holds one canonical variable's samples and metadata.
type Variable struct {
	Values []float64
	Unit   string
	Attrs  map[string]string
}

// Dataset is the canonical labeled container all readers produce.
// Every variable is a 1-D numeric sequence aligned to the primary
// dimension. A Dataset is mutable until Finalize is called and
// immutable (and safe for concurrent readers) afterwards.
type Dataset struct {
	kind   DatasetKind
	n      int
	nSet   bool
	vars   map[string]*Variable
	order  []string
	time   []time.Time
	depth  []float64
	global map[string]string
	forbid []float64
	frozen bool
}

// NewDataset returns an empty dataset with the given primary-dimension
// semantics. The primary dimension's length is set by the first
// variable or coordinate inserted.
func NewDataset(kind DatasetKind) *Dataset {
	return &Dataset{
		kind:   kind,
		vars:   make(map[string]*Variable),
		global: make(map[string]string),
	}
}

func (d *Dataset) setLength(name string, n int) error {
	if !d.nSet {
		d.n = n
		d.nSet = true
		return nil
	}
	if n != d.n {
		return &ShapeMismatchError{Name: name, Want: d.n, Got: n}
	}
	return nil
}

// AddVariable inserts a canonical variable. The first insertion fixes
// the primary dimension's length; later insertions with a different
// length fail with ShapeMismatchError. Duplicate canonical names are a
// hard error: two source columns mapping to the same canonical name
// must be disambiguated through the parameter mapping.
func (d *Dataset) AddVariable(name string, values []float64, unit string, attrs map[string]string) error {
	if d.frozen {
		return fmt.Errorf("seasense: cannot add variable %q to a finalized dataset", name)
	}
	if _, ok := d.vars[name]; ok {
		return fmt.Errorf("seasense: duplicate canonical variable %q; use an explicit parameter mapping to disambiguate", name)
	}
	if err := d.setLength(name, len(values)); err != nil {
		return err
	}
	v := &Variable{Values: values, Unit: unit}
	if len(attrs) > 0 {
		v.Attrs = make(map[string]string, len(attrs))
		for k, a := range attrs {
			v.Attrs[k] = a
		}
	}
	d.vars[name] = v
	d.order = append(d.order, name)
	return nil
}

// SetTimeCoordinate sets the primary time coordinate. For time-series
// datasets the coordinate must be monotonically non-decreasing;
// violations fail with NonMonotonicCoordinateError.
func (d *Dataset) SetTimeCoordinate(t []time.Time) error {
	if d.frozen {
		return fmt.Errorf("seasense: cannot set the time coordinate on a finalized dataset")
	}
	if err := d.setLength("time", len(t)); err != nil {
		return err
	}
	if d.kind == TimeSeries {
		for i := 1; i < len(t); i++ {
			if t[i].Before(t[i-1]) {
				return &NonMonotonicCoordinateError{Index: i}
			}
		}
	}
	d.time = t
	return nil
}

// SetDepthCoordinate sets the secondary depth coordinate [m, positive
// down], typically computed from pressure.
func (d *Dataset) SetDepthCoordinate(v []float64) error {
	if d.frozen {
		return fmt.Errorf("seasense: cannot set the depth coordinate on a finalized dataset")
	}
	if err := d.setLength("depth", len(v)); err != nil {
		return err
	}
	d.depth = v
	return nil
}

// SetGlobalAttr sets a global attribute (instrument identifier, source
// file, provenance notes).
func (d *Dataset) SetGlobalAttr(key, value string) {
	if d.frozen {
		return
	}
	d.global[key] = value
}

// ForbidSentinel registers a source-format bad-value sentinel that must
// not appear in any variable. Finalize fails if one leaked through a
// parser's sentinel translation.
func (d *Dataset) ForbidSentinel(v float64) {
	d.forbid = append(d.forbid, v)
}

// Finalize validates the dataset invariants and freezes it against
// further mutation. Canonical CF metadata (standard_name, long_name,
// default units) is stamped onto variables whose canonical name is
// known, without overwriting parser-supplied values.
func (d *Dataset) Finalize() error {
	if d.frozen {
		return nil
	}
	if d.kind == TimeSeries && d.time == nil {
		return &MissingCoordinateError{Reason: "time-series dataset has no time coordinate"}
	}
	for _, name := range d.order {
		v := d.vars[name]
		if len(v.Values) != d.n {
			return &ShapeMismatchError{Name: name, Want: d.n, Got: len(v.Values)}
		}
		for _, s := range d.forbid {
			for i, x := range v.Values {
				if x == s {
					return fmt.Errorf("seasense: variable %q contains the raw bad-value sentinel %g at sample %d", name, s, i)
				}
			}
		}
		if meta, ok := canonicalMetadata[name]; ok {
			if v.Attrs == nil {
				v.Attrs = make(map[string]string, len(meta))
			}
			for k, a := range meta {
				if _, exists := v.Attrs[k]; !exists {
					v.Attrs[k] = a
				}
			}
			if v.Unit == "" {
				v.Unit = meta["units"]
			}
		}
		if len(v.Values) > 0 && floats.HasNaN(v.Values) {
			if v.Attrs == nil {
				v.Attrs = make(map[string]string)
			}
			v.Attrs["has_missing_samples"] = "true"
		}
	}
	if _, ok := d.global["date_created"]; !ok {
		d.global["date_created"] = time.Now().UTC().Format(time.RFC3339)
	}
	d.frozen = true
	return nil
}

// Kind returns the primary-dimension semantics.
func (d *Dataset) Kind() DatasetKind { return d.kind }

// Len returns the primary dimension's length.
func (d *Dataset) Len() int { return d.n }

// Variables returns the canonical variable names in insertion order.
func (d *Dataset) Variables() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Variable returns the samples for the named canonical variable. The
// returned slice is the dataset's backing storage and must not be
// modified after Finalize.
func (d *Dataset) Variable(name string) ([]float64, bool) {
	v, ok := d.vars[name]
	if !ok {
		return nil, false
	}
	return v.Values, true
}

// Unit returns the unit string for the named variable, if any.
func (d *Dataset) Unit(name string) string {
	if v, ok := d.vars[name]; ok {
		return v.Unit
	}
	return ""
}

// Attributes returns the attribute set for the named variable.
func (d *Dataset) Attributes(name string) map[string]string {
	v, ok := d.vars[name]
	if !ok || v.Attrs == nil {
		return nil
	}
	out := make(map[string]string, len(v.Attrs))
	for k, a := range v.Attrs {
		out[k] = a
	}
	return out
}

// Time returns the time coordinate, or nil for scan-indexed casts.
func (d *Dataset) Time() []time.Time { return d.time }

// Depth returns the secondary depth coordinate, or nil.
func (d *Dataset) Depth() []float64 { return d.depth }

// GlobalAttributes returns a copy of the global attribute set.
func (d *Dataset) GlobalAttributes() map[string]string {
	out := make(map[string]string, len(d.global))
	for k, v := range d.global {
		out[k] = v
	}
	return out
}
