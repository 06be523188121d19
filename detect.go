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
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported input format. The string values match
// the format keys accepted by callers bypassing detection.
type Format string

const (
	FormatSBECNV       Format = "sbe-cnv"
	FormatSBEASCII     Format = "sbe-ascii"
	FormatRBRRSK       Format = "rbr-rsk"
	FormatRBRRSKLegacy Format = "rbr-rsk-legacy"
	FormatNortekASCII  Format = "nortek-ascii"
	FormatNetCDF       Format = "netcdf"
	FormatCSV          Format = "csv"
)

// sqliteMagic is the first 16 bytes of every SQLite database file,
// which is the container format RBR RSK files use.
var sqliteMagic = []byte("SQLite format 3\x00")

// DetectFormat identifies the format of the file at path, using the
// file extension as the primary signal and falling back to magic-byte
// and header sniffing for ambiguous or extensionless inputs. It fails
// with UnknownFormatError if neither yields a match; callers may
// bypass detection by choosing a reader explicitly.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cnv":
		return FormatSBECNV, nil
	case ".rsk":
		return FormatRBRRSK, nil
	case ".nc", ".ncf", ".netcdf":
		return FormatNetCDF, nil
	case ".csv":
		return FormatCSV, nil
	}
	return sniffFormat(path)
}

// sniffFormat inspects the first bytes of the file: the SQLite
// signature marks an RSK container, the NetCDF "CDF" signature a
// classic NetCDF file, Seabird header marker lines a CNV file, and a
// Nortek configuration preamble a Nortek ASCII file.
func sniffFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 2048)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return "", &UnknownFormatError{Path: path}
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, sqliteMagic) {
		return FormatRBRRSK, nil
	}
	if bytes.HasPrefix(buf, []byte("CDF")) {
		return FormatNetCDF, nil
	}
	head := string(buf)
	if strings.Contains(head, "# name ") {
		return FormatSBECNV, nil
	}
	if strings.Contains(head, "* Sea-Bird") {
		// CNV declares its columns with "# name" directives; the plain
		// ASCII export has none and writes comma-separated rows after
		// the *END* terminator.
		if i := strings.Index(head, "*END*"); i >= 0 && strings.Contains(head[i:], ",") {
			return FormatSBEASCII, nil
		}
		return FormatSBECNV, nil
	}
	if strings.Contains(head, "Number of beams") || strings.Contains(head, "Nortek") {
		return FormatNortekASCII, nil
	}
	return "", &UnknownFormatError{Path: path}
}
