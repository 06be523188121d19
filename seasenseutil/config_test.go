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

package seasenseutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/seasense/seasense"
)

func TestLoadOptions(t *testing.T) {
	contents := `Lenient = true
BadFlag = -999.0
HeaderPath = "deploy.hdr"

[Mapping]
temperature = "tv290C"
turbidity = "turb00"
`
	path := filepath.Join(t.TempDir(), "seasense.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Lenient {
		t.Error("Lenient should be set")
	}
	if opts.LenientMapping {
		t.Error("LenientMapping should default to unset")
	}
	if opts.HeaderPath != "deploy.hdr" {
		t.Errorf("HeaderPath: have %q", opts.HeaderPath)
	}
	if opts.BadFlag == nil || *opts.BadFlag != -999.0 {
		t.Errorf("BadFlag: have %v", opts.BadFlag)
	}
	want := map[string]string{"temperature": "tv290C", "turbidity": "turb00"}
	if !reflect.DeepEqual(opts.Mapping, want) {
		t.Errorf("Mapping: want %v, have %v", want, opts.Mapping)
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	// An absent BadFlag must stay nil so parsers keep their built-in
	// sentinels; zero is a legitimate data value.
	if opts.BadFlag != nil {
		t.Errorf("BadFlag should be nil, have %v", *opts.BadFlag)
	}
	if opts.Lenient || opts.LenientMapping {
		t.Error("leniency flags should default to unset")
	}
}

func TestParseMappingArgs(t *testing.T) {
	args := []string{"temperature=tv290C", "salinity=sal00", "temperature=t090C"}
	have, err := ParseMappingArgs(args)
	if err != nil {
		t.Fatal(err)
	}
	// The last entry for a canonical name wins.
	want := map[string]string{"temperature": "t090C", "salinity": "sal00"}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("want %v, have %v", want, have)
	}

	if _, err := ParseMappingArgs([]string{"temperature"}); err == nil {
		t.Error("an argument without '=' should fail")
	}
	if _, err := ParseMappingArgs([]string{"=tv290C"}); err == nil {
		t.Error("an empty canonical name should fail")
	}

	have, err = ParseMappingArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	if have != nil {
		t.Errorf("no arguments should produce a nil map, have %v", have)
	}
}

func TestReadFile(t *testing.T) {
	contents := `time,temp
2020-01-01 00:00:00,10.1
2020-01-01 00:01:00,10.2
`
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := ReadFile(path, seasense.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 2 {
		t.Errorf("want 2 rows, have %d", ds.Len())
	}
	if _, ok := ds.Variable("temperature"); !ok {
		t.Error("temperature variable missing")
	}
}
