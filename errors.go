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

import "fmt"

// UnknownFormatError is returned when neither the file extension nor
// content sniffing identifies a supported format.
type UnknownFormatError struct {
	Path string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("seasense: %s: unknown file format", e.Path)
}

// MalformedRowError reports a data row whose field count or field
// contents do not match the declared column layout. In lenient mode
// these are accumulated as diagnostics instead of being returned.
type MalformedRowError struct {
	Path   string
	Line   int // 1-based line number in the source file
	Want   int // declared field count
	Got    int
	Reason string
}

func (e *MalformedRowError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("seasense: %s: line %d: malformed row: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("seasense: %s: line %d: malformed row: %d fields where %d were declared",
		e.Path, e.Line, e.Got, e.Want)
}

// UnmappedParameterError is returned in strict mapping mode when a
// source parameter name has no canonical mapping.
type UnmappedParameterError struct {
	Path string
	Name string
}

func (e *UnmappedParameterError) Error() string {
	return fmt.Sprintf("seasense: %s: no canonical mapping for parameter %q", e.Path, e.Name)
}

// ShapeMismatchError reports a variable or coordinate whose length does
// not match the dataset's primary dimension.
type ShapeMismatchError struct {
	Name string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("seasense: variable %q has length %d but the primary dimension has length %d",
		e.Name, e.Got, e.Want)
}

// NonMonotonicCoordinateError reports a time coordinate that decreases.
// Out-of-order timestamps usually indicate an instrument clock fault,
// so the data is rejected rather than silently reordered.
type NonMonotonicCoordinateError struct {
	Path  string
	Index int // sample index at which the coordinate decreases
}

func (e *NonMonotonicCoordinateError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("seasense: time coordinate decreases at sample %d", e.Index)
	}
	return fmt.Sprintf("seasense: %s: time coordinate decreases at sample %d", e.Path, e.Index)
}

// CorruptContainerError is returned when a structured container (RSK,
// NetCDF) cannot be opened or is internally inconsistent.
type CorruptContainerError struct {
	Path string
	Err  error
}

func (e *CorruptContainerError) Error() string {
	return fmt.Sprintf("seasense: %s: corrupt container: %v", e.Path, e.Err)
}

func (e *CorruptContainerError) Unwrap() error { return e.Err }

// UnsupportedSchemaVersionError is returned when schema probing of a
// container succeeds but no parser is registered for the detected
// layout.
type UnsupportedSchemaVersionError struct {
	Path    string
	Version string
}

func (e *UnsupportedSchemaVersionError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("seasense: %s: unsupported container schema", e.Path)
	}
	return fmt.Sprintf("seasense: %s: unsupported container schema version %s", e.Path, e.Version)
}

// SchemaMismatchError is returned by the fixed-schema RSK readers when
// probing indicates the container uses a different layout than the
// reader assumes.
type SchemaMismatchError struct {
	Path string
	Want RSKSchema
	Got  RSKSchema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("seasense: %s: container uses the %s schema, not %s", e.Path, e.Got, e.Want)
}

// PreambleMismatchError reports a Nortek ASCII file whose configuration
// preamble declares a different column count than the data block
// contains.
type PreambleMismatchError struct {
	Path     string
	Declared int
	Got      int
}

func (e *PreambleMismatchError) Error() string {
	return fmt.Sprintf("seasense: %s: preamble declares %d columns but data rows have %d fields",
		e.Path, e.Declared, e.Got)
}

// MissingCoordinateError is returned when an input exposes no usable
// primary coordinate (no time axis and nothing to order a profile cast
// by).
type MissingCoordinateError struct {
	Path   string
	Reason string
}

func (e *MissingCoordinateError) Error() string {
	return fmt.Sprintf("seasense: %s: no usable primary coordinate: %s", e.Path, e.Reason)
}
