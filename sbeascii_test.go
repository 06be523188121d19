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

const sbeASCIIFixture = `* Sea-Bird SBE 56 Data File:
* sample interval = 60 seconds
* firmware version = 1.2
*END*
10.1234, 3.2345, 01 Jan 2020 00:00:00
10.1301, 3.2350, 01 Jan 2020 00:01:00
10.1299, 3.2348, 01 Jan 2020 00:02:00
`

func TestSBEASCIITimeSeries(t *testing.T) {
	path := writeFixture(t, "moored", sbeASCIIFixture)
	r, err := OpenSBEASCII(path, Options{})
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
	if want := []string{"temperature", "conductivity"}; !reflect.DeepEqual(ds.Variables(), want) {
		t.Errorf("variables: want %v, have %v", want, ds.Variables())
	}
	temp, _ := ds.Variable("temperature")
	if want := []float64{10.1234, 10.1301, 10.1299}; !reflect.DeepEqual(temp, want) {
		t.Errorf("temperature: want %v, have %v", want, temp)
	}
	times := ds.Time()
	if len(times) != 3 {
		t.Fatalf("want 3 timestamps, have %d", len(times))
	}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !times[0].Equal(start) {
		t.Errorf("want start %v, have %v", start, times[0])
	}
	if want := time.Minute; times[1].Sub(times[0]) != want {
		t.Errorf("want %v between samples, have %v", want, times[1].Sub(times[0]))
	}
	if u := ds.Unit("conductivity"); u != "S/m" {
		t.Errorf("conductivity unit: have %q", u)
	}

	meta := r.Metadata()
	if meta["instrument"] != "Sea-Bird SBE" {
		t.Errorf("instrument: have %q", meta["instrument"])
	}
	if meta["sample_interval_seconds"] != "60" {
		t.Errorf("sample_interval_seconds: have %q", meta["sample_interval_seconds"])
	}
	if meta["firmware version"] != "1.2" {
		t.Errorf("firmware version: have %q", meta["firmware version"])
	}
	if meta["source_format"] != string(FormatSBEASCII) {
		t.Errorf("source_format: have %q", meta["source_format"])
	}
}

func TestSBEASCIIWithPressure(t *testing.T) {
	// Five fields per row: pressure sits between conductivity and the
	// timestamp.
	fixture := `* Sea-Bird SBE 37 Data File:
*END*
10.1234, 3.2345, 1.013, 01 Jan 2020 00:00:00
10.1301, 3.2350, 1.015, 01 Jan 2020 00:01:00
`
	path := writeFixture(t, "pumped", fixture)
	r, err := OpenSBEASCII(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	want := []string{"temperature", "conductivity", "pressure"}
	if !reflect.DeepEqual(ds.Variables(), want) {
		t.Errorf("variables: want %v, have %v", want, ds.Variables())
	}
	pres, _ := ds.Variable("pressure")
	if wantP := []float64{1.013, 1.015}; !reflect.DeepEqual(pres, wantP) {
		t.Errorf("pressure: want %v, have %v", wantP, pres)
	}
	if u := ds.Unit("pressure"); u != "dbar" {
		t.Errorf("pressure unit: have %q", u)
	}
}

func TestSBEASCIIMalformedRow(t *testing.T) {
	fixture := `* Sea-Bird SBE 56 Data File:
*END*
10.1234, 3.2345, 01 Jan 2020 00:00:00
10.1301, 3.2350
10.1299, 3.2348, 01 Jan 2020 00:02:00
`
	path := writeFixture(t, "short", fixture)

	_, err := OpenSBEASCII(path, Options{})
	var mr *MalformedRowError
	if !errors.As(err, &mr) {
		t.Fatalf("want MalformedRowError, have %v", err)
	}
	if mr.Line != 4 {
		t.Errorf("want line 4, have %d", mr.Line)
	}

	r, err := OpenSBEASCII(path, Options{Lenient: true})
	if err != nil {
		t.Fatal(err)
	}
	ds, _ := r.Data()
	if ds.Len() != 2 {
		t.Errorf("want 2 rows after skipping, have %d", ds.Len())
	}
	diags := r.Diagnostics()
	if len(diags) != 1 || diags[0].Line != 4 {
		t.Errorf("want 1 diagnostic at line 4, have %v", diags)
	}
}

func TestSBEASCIIUnparseableTimestamp(t *testing.T) {
	fixture := `* Sea-Bird SBE 56 Data File:
*END*
10.1234, 3.2345, not a date at all
`
	path := writeFixture(t, "badtime", fixture)
	_, err := OpenSBEASCII(path, Options{})
	var mr *MalformedRowError
	if !errors.As(err, &mr) {
		t.Fatalf("want MalformedRowError, have %v", err)
	}
	if !strings.Contains(mr.Reason, "timestamp") {
		t.Errorf("reason should name the timestamp, have %q", mr.Reason)
	}
}

func TestSBEASCIIEmptyDataBlock(t *testing.T) {
	fixture := `* Sea-Bird SBE 56 Data File:
* sample interval = 60 seconds
*END*
`
	path := writeFixture(t, "headeronly", fixture)
	_, err := OpenSBEASCII(path, Options{})
	var mc *MissingCoordinateError
	if !errors.As(err, &mc) {
		t.Fatalf("want MissingCoordinateError, have %v", err)
	}
	if !strings.Contains(mc.Reason, "empty data block") {
		t.Errorf("reason should name the empty data block, have %q", mc.Reason)
	}
}

func TestSBEASCIINoHeaderTerminator(t *testing.T) {
	fixture := `* Sea-Bird SBE 56 Data File:
10.1234, 3.2345, 01 Jan 2020 00:00:00
`
	path := writeFixture(t, "noend", fixture)
	_, err := OpenSBEASCII(path, Options{})
	var cc *CorruptContainerError
	if !errors.As(err, &cc) {
		t.Fatalf("want CorruptContainerError, have %v", err)
	}
}
