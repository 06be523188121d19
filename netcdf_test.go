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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/cdf"
)

// createNC writes a NetCDF fixture: setup declares variables and
// attributes on the header, write fills the variable data.
func createNC(t *testing.T, name string, dims []string, lengths []int,
	setup func(h *cdf.Header), write func(f *cdf.File)) string {
	t.Helper()
	h := cdf.NewHeader(dims, lengths)
	setup(h)
	h.Define()
	for _, err := range h.Check() {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	write(f)
	return path
}

func writeNCVar(t *testing.T, f *cdf.File, name string, n int, data interface{}) {
	t.Helper()
	w := f.Writer(name, []int{0}, []int{n})
	if _, err := w.Write(data); err != nil {
		t.Fatalf("writing variable %s: %v", name, err)
	}
}

func TestNetCDFTimeSeries(t *testing.T) {
	path := createNC(t, "mooring.nc", []string{"time"}, []int{4},
		func(h *cdf.Header) {
			h.AddVariable("time", []string{"time"}, []float64{0})
			h.AddAttribute("time", "units", "seconds since 2020-01-01 00:00:00")
			h.AddVariable("temp", []string{"time"}, []float32{0})
			h.AddAttribute("temp", "units", "degC")
			h.AddAttribute("temp", "_FillValue", []float32{-999})
			h.AddVariable("sal00", []string{"time"}, []float64{0})
			h.AddAttribute("sal00", "units", "PSU")
			h.AddAttribute("", "title", "Mooring A")
		},
		func(f *cdf.File) {
			writeNCVar(t, f, "time", 4, []float64{0, 60, 120, 180})
			writeNCVar(t, f, "temp", 4, []float32{18.2, 18.3, -999, 18.1})
			writeNCVar(t, f, "sal00", 4, []float64{35.0, 35.1, 35.2, 35.3})
		})

	r, err := OpenNetCDF(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := r.Data()
	if err != nil {
		t.Fatal(err)
	}
	if ds.Kind() != TimeSeries {
		t.Errorf("want %s, have %s", TimeSeries, ds.Kind())
	}
	if ds.Len() != 4 {
		t.Errorf("want 4 samples, have %d", ds.Len())
	}
	if want := []string{"temperature", "salinity"}; !reflect.DeepEqual(ds.Variables(), want) {
		t.Errorf("variables: want %v, have %v", want, ds.Variables())
	}

	times := ds.Time()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !times[0].Equal(start) {
		t.Errorf("want start %v, have %v", start, times[0])
	}
	if times[3].Sub(times[0]) != 3*time.Minute {
		t.Errorf("want 3m span, have %v", times[3].Sub(times[0]))
	}

	// The file's fill value becomes the internal missing marker.
	temp, _ := ds.Variable("temperature")
	if !IsNoData(temp[2]) {
		t.Errorf("fill-valued sample should be NoData, have %g", temp[2])
	}
	if u := ds.Unit("temperature"); u != "degC" {
		t.Errorf("temperature unit: have %q", u)
	}

	meta := r.Metadata()
	if meta["title"] != "Mooring A" {
		t.Errorf("global attribute title: have %q", meta["title"])
	}
	if meta["source_format"] != string(FormatNetCDF) {
		t.Errorf("source_format: have %q", meta["source_format"])
	}
}

func TestNetCDFProfileCast(t *testing.T) {
	// No time variable: a pressure variable orders the cast instead.
	path := createNC(t, "cast.nc", []string{"scan"}, []int{3},
		func(h *cdf.Header) {
			h.AddVariable("pres", []string{"scan"}, []float64{0})
			h.AddAttribute("pres", "units", "dbar")
			h.AddVariable("temp", []string{"scan"}, []float64{0})
		},
		func(f *cdf.File) {
			writeNCVar(t, f, "pres", 3, []float64{1, 2, 3})
			writeNCVar(t, f, "temp", 3, []float64{12.5, 12.1, 11.8})
		})

	r, err := OpenNetCDF(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	if ds.Kind() != ProfileCast {
		t.Errorf("want %s, have %s", ProfileCast, ds.Kind())
	}
	if ds.Time() != nil {
		t.Error("profile cast should have no time coordinate")
	}
	if _, ok := ds.Variable("pressure"); !ok {
		t.Error("pressure variable missing")
	}
}

func TestNetCDFMissingCoordinate(t *testing.T) {
	path := createNC(t, "bare.nc", []string{"scan"}, []int{2},
		func(h *cdf.Header) {
			h.AddVariable("temp", []string{"scan"}, []float64{0})
		},
		func(f *cdf.File) {
			writeNCVar(t, f, "temp", 2, []float64{12.5, 12.1})
		})

	_, err := OpenNetCDF(path, Options{})
	var mc *MissingCoordinateError
	if !errors.As(err, &mc) {
		t.Fatalf("want MissingCoordinateError, have %v", err)
	}
}

func TestNetCDFUnusableTimeUnits(t *testing.T) {
	path := createNC(t, "oddtime.nc", []string{"time"}, []int{2},
		func(h *cdf.Header) {
			h.AddVariable("time", []string{"time"}, []float64{0})
			h.AddAttribute("time", "units", "fortnights")
			h.AddVariable("temp", []string{"time"}, []float64{0})
		},
		func(f *cdf.File) {
			writeNCVar(t, f, "time", 2, []float64{0, 1})
			writeNCVar(t, f, "temp", 2, []float64{12.5, 12.1})
		})

	_, err := OpenNetCDF(path, Options{})
	var mc *MissingCoordinateError
	if !errors.As(err, &mc) {
		t.Fatalf("want MissingCoordinateError, have %v", err)
	}
}

func TestNetCDFCorruptContainer(t *testing.T) {
	path := writeFixture(t, "notnc.nc", "plain text, not a NetCDF file\n")
	_, err := OpenNetCDF(path, Options{})
	var cc *CorruptContainerError
	if !errors.As(err, &cc) {
		t.Fatalf("want CorruptContainerError, have %v", err)
	}
}

func TestNetCDFTimeUnitsParsing(t *testing.T) {
	tests := []struct {
		units string
		unit  time.Duration
		epoch time.Time
	}{
		{"seconds since 1970-01-01 00:00:00", time.Second, time.Unix(0, 0).UTC()},
		{"days since 2020-01-01", 24 * time.Hour, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"milliseconds since 2020-01-01T00:00:00Z", time.Millisecond, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		epoch, unit, err := parseNCTimeUnits(test.units)
		if err != nil {
			t.Fatalf("%s: %v", test.units, err)
		}
		if unit != test.unit {
			t.Errorf("%s: want unit %v, have %v", test.units, test.unit, unit)
		}
		if !epoch.Equal(test.epoch) {
			t.Errorf("%s: want epoch %v, have %v", test.units, test.epoch, epoch)
		}
	}
	if _, _, err := parseNCTimeUnits("just a string"); err == nil {
		t.Error("units without a since clause should fail")
	}
}
