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

// Package seasenseutil holds configuration plumbing around the
// seasense reader core: loading reader options from configuration
// files and parsing parameter-mapping override arguments.
package seasenseutil

import (
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/seasense/seasense"
)

// LoadOptions reads reader options from the configuration file at
// path (TOML, YAML, or JSON, by extension). Recognized keys:
// Mapping (table of canonical = source), Lenient, LenientMapping,
// BadFlag, HeaderPath.
func LoadOptions(path string) (seasense.Options, error) {
	var opts seasense.Options
	cfg := viper.New()
	cfg.SetEnvPrefix("SEASENSE")
	cfg.SetConfigFile(path)
	if err := cfg.ReadInConfig(); err != nil {
		return opts, fmt.Errorf("seasenseutil: reading configuration file %s: %v", path, err)
	}

	if m := cfg.Get("Mapping"); m != nil {
		mapping, err := cast.ToStringMapStringE(m)
		if err != nil {
			return opts, fmt.Errorf("seasenseutil: configuration variable Mapping: %v", err)
		}
		opts.Mapping = mapping
	}
	opts.Lenient = cfg.GetBool("Lenient")
	opts.LenientMapping = cfg.GetBool("LenientMapping")
	opts.HeaderPath = cfg.GetString("HeaderPath")
	if cfg.IsSet("BadFlag") {
		v, err := cast.ToFloat64E(cfg.Get("BadFlag"))
		if err != nil {
			return opts, fmt.Errorf("seasenseutil: configuration variable BadFlag: %v", err)
		}
		opts.BadFlag = &v
	}
	return opts, nil
}

// ParseMappingArgs parses an ordered list of "canonical=source"
// parameter-mapping overrides. Later entries override earlier
// duplicates for the same canonical name.
func ParseMappingArgs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("seasenseutil: invalid mapping %q; expected canonical=source", arg)
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out, nil
}

// ReadFile detects the format of the file at path, parses it with the
// given options, logs any lenient-mode row diagnostics, and returns
// the canonical dataset.
func ReadFile(path string, opts seasense.Options) (*seasense.Dataset, error) {
	reader, err := seasense.Open(path, opts)
	if err != nil {
		return nil, err
	}
	if d, ok := reader.(interface{ Diagnostics() []seasense.RowDiagnostic }); ok {
		for _, diag := range d.Diagnostics() {
			logrus.WithFields(logrus.Fields{
				"file": path,
				"line": diag.Line,
			}).Warn(diag.Reason)
		}
	}
	return reader.Data()
}
