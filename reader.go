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
	"log"
)

// Reader is the capability contract every format-specific reader
// implements. Data returns the canonical dataset extracted from the
// source file; Metadata returns the source's global attributes
// (instrument identifier, header fields, format tag).
type Reader interface {
	Data() (*Dataset, error)
	Metadata() map[string]string
}

// RowDiagnostic records one data row skipped in lenient mode.
type RowDiagnostic struct {
	Line   int
	Fields int
	Reason string
}

// Options configures a reader invocation.
type Options struct {
	// Mapping maps canonical parameter names to source-specific
	// names. Explicit entries always win over the built-in synonym
	// table.
	Mapping map[string]string

	// Lenient makes row-level failures (MalformedRowError)
	// non-fatal: offending rows are skipped and recorded as
	// diagnostics. The default (strict) fails on the first
	// malformed row.
	Lenient bool

	// LenientMapping retains parameters with no canonical mapping
	// under their source names, tagged "unmapped", instead of
	// failing with UnmappedParameterError.
	LenientMapping bool

	// BadFlag overrides the format's bad-value sentinel. When nil,
	// the sentinel declared in the file header (or the format's
	// conventional default) is used.
	BadFlag *float64

	// HeaderPath names a separate configuration/header file for
	// formats that ship one (Nortek ASCII exports).
	HeaderPath string

	// Logger receives per-file progress and diagnostic messages.
	// Nil disables logging.
	Logger *log.Logger
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}

// mapper builds the parameter mapper for this invocation.
func (o Options) mapper(path string) *Mapper {
	return NewMapper(o.Mapping, !o.LenientMapping, path)
}

// Open detects the format of the file at path and returns a reader
// for it. The file is parsed during Open; structural failures are
// returned here and no reader is produced.
func Open(path string, opts Options) (Reader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return OpenFormat(path, format, opts)
}

// OpenFormat bypasses detection and opens path with the reader for
// the named format.
func OpenFormat(path string, format Format, opts Options) (Reader, error) {
	switch format {
	case FormatSBECNV:
		return OpenCNV(path, opts)
	case FormatSBEASCII:
		return OpenSBEASCII(path, opts)
	case FormatRBRRSK:
		return OpenRSKAuto(path, opts)
	case FormatRBRRSKLegacy:
		return OpenRSKLegacy(path, opts)
	case FormatNortekASCII:
		return OpenNortek(path, opts)
	case FormatNetCDF:
		return OpenNetCDF(path, opts)
	case FormatCSV:
		return OpenCSV(path, opts)
	}
	return nil, fmt.Errorf("seasense: no reader registered for format %q", format)
}
