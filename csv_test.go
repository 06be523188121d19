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
	"reflect"
	"strings"
	"testing"
	"time"
)

const csvSeriesFixture = `time,temp,sal00
2020-01-01 00:00:00,10.1,35.0
2020-01-01 00:01:00,10.2,35.1
2020-01-01 00:02:00,,35.2
2020-01-01 00:03:00,10.4,35.3
`

func TestCSVTimeSeries(t *testing.T) {
	path := writeFixture(t, "export.csv", csvSeriesFixture)
	r, err := OpenCSV(path, Options{})
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
		t.Errorf("want 4 rows, have %d", ds.Len())
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

	// Empty cells are missing samples, not zeros.
	temp, _ := ds.Variable("temperature")
	if !IsNoData(temp[2]) {
		t.Errorf("empty cell should be NoData, have %g", temp[2])
	}
	if r.Metadata()["source_format"] != string(FormatCSV) {
		t.Errorf("source_format: have %q", r.Metadata()["source_format"])
	}
}

func TestCSVProfileCast(t *testing.T) {
	fixture := `pres,temp
1.0,12.5
2.0,12.1
3.0,11.8
`
	path := writeFixture(t, "cast.csv", fixture)
	r, err := OpenCSV(path, Options{})
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
}

func TestCSVMissingCoordinate(t *testing.T) {
	fixture := `temp,sal00
12.5,35.0
`
	path := writeFixture(t, "bare.csv", fixture)
	_, err := OpenCSV(path, Options{})
	var mc *MissingCoordinateError
	if !errors.As(err, &mc) {
		t.Fatalf("want MissingCoordinateError, have %v", err)
	}
}

func TestCSVHeaderOnly(t *testing.T) {
	// A header row with no data rows is an empty data block, even when
	// a time column is declared; the error must say so rather than
	// claim the time coordinate is missing.
	fixture := "time,temp\n"
	path := writeFixture(t, "empty.csv", fixture)
	_, err := OpenCSV(path, Options{})
	var mc *MissingCoordinateError
	if !errors.As(err, &mc) {
		t.Fatalf("want MissingCoordinateError, have %v", err)
	}
	if !strings.Contains(mc.Reason, "empty data block") {
		t.Errorf("reason should name the empty data block, have %q", mc.Reason)
	}
}

func TestCSVMalformedRow(t *testing.T) {
	fixture := `time,temp
2020-01-01 00:00:00,10.1
2020-01-01 00:01:00
2020-01-01 00:02:00,10.3
`
	path := writeFixture(t, "short.csv", fixture)

	_, err := OpenCSV(path, Options{})
	var mr *MalformedRowError
	if !errors.As(err, &mr) {
		t.Fatalf("want MalformedRowError, have %v", err)
	}
	if mr.Line != 3 {
		t.Errorf("want line 3, have %d", mr.Line)
	}

	r, err := OpenCSV(path, Options{Lenient: true})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	if ds.Len() != 2 {
		t.Errorf("want 2 rows after skipping, have %d", ds.Len())
	}
	if diags := r.Diagnostics(); len(diags) != 1 || diags[0].Line != 3 {
		t.Errorf("want 1 diagnostic at line 3, have %v", diags)
	}
}

func TestCSVUnparseableTimestamp(t *testing.T) {
	fixture := `time,temp
2020-01-01 00:00:00,10.1
yesterday,10.2
`
	path := writeFixture(t, "badtime.csv", fixture)
	_, err := OpenCSV(path, Options{})
	var mr *MalformedRowError
	if !errors.As(err, &mr) {
		t.Fatalf("want MalformedRowError, have %v", err)
	}

	r, err := OpenCSV(path, Options{Lenient: true})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	if ds.Len() != 1 {
		t.Errorf("want 1 row after skipping, have %d", ds.Len())
	}
}

func TestCSVBadFlag(t *testing.T) {
	fixture := `time,temp
2020-01-01 00:00:00,-999
2020-01-01 00:01:00,10.2
`
	path := writeFixture(t, "flagged.csv", fixture)
	flag := -999.0
	r, err := OpenCSV(path, Options{BadFlag: &flag})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	temp, _ := ds.Variable("temperature")
	if !IsNoData(temp[0]) {
		t.Errorf("sentinel sample should be NoData, have %g", temp[0])
	}
}
