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
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed synonyms.toml
var synonymsTOML string

// attrMapping is the variable attribute recording which mapping rule
// produced the variable's name: a built-in synonym, a user override,
// or a pass-through that kept its source name.
const (
	attrMapping    = "mapping"
	mappingBuiltin = "builtin"
	mappingUser    = "user"
	mappingNone    = "unmapped"
)

var (
	// builtinSynonyms maps instrument-specific source codes to
	// canonical parameter names.
	builtinSynonyms map[string]string
	// canonicalNames is the set of canonical parameter names.
	canonicalNames map[string]bool
	// canonicalMetadata holds per-canonical-name CF attributes stamped
	// onto variables at Finalize.
	canonicalMetadata map[string]map[string]string
	// canonicalDescriptions holds human-readable descriptions for
	// KnownParameters.
	canonicalDescriptions map[string]string
)

func init() {
	var tbl struct {
		Synonyms     map[string][]string          `toml:"synonyms"`
		Metadata     map[string]map[string]string `toml:"metadata"`
		Descriptions map[string]string            `toml:"descriptions"`
	}
	if _, err := toml.Decode(synonymsTOML, &tbl); err != nil {
		panic(fmt.Sprintf("seasense: parsing embedded synonym table: %v", err))
	}
	builtinSynonyms = make(map[string]string)
	canonicalNames = make(map[string]bool)
	for canonical, sources := range tbl.Synonyms {
		canonicalNames[canonical] = true
		for _, s := range sources {
			builtinSynonyms[s] = canonical
		}
	}
	canonicalMetadata = tbl.Metadata
	canonicalDescriptions = tbl.Descriptions
}

// Canonical reports whether name is a canonical parameter name.
func Canonical(name string) bool { return canonicalNames[name] }

// KnownParameters returns the canonical parameter names with
// human-readable descriptions.
func KnownParameters() map[string]string {
	out := make(map[string]string, len(canonicalDescriptions))
	for k, v := range canonicalDescriptions {
		out[k] = v
	}
	return out
}

// Mapper resolves instrument-specific source names to canonical
// parameter names. Resolution order: explicit user override, built-in
// synonym table, then either failure (strict) or tagged pass-through.
// A Mapper is immutable after construction and safe for concurrent
// use.
type Mapper struct {
	// override maps source name -> canonical name, built from the
	// user-supplied canonical -> source mapping.
	override map[string]string
	strict   bool
	path     string
}

// NewMapper builds a Mapper from a user override mapping of
// canonical name -> source name. Explicit overrides always win over
// built-in synonyms. In strict mode, source names that resolve to
// neither an override nor a built-in synonym (and are not already
// canonical) fail with UnmappedParameterError.
func NewMapper(overrides map[string]string, strict bool, path string) *Mapper {
	m := &Mapper{strict: strict, path: path}
	if len(overrides) > 0 {
		m.override = make(map[string]string, len(overrides))
		for canonical, source := range overrides {
			m.override[source] = canonical
		}
	}
	return m
}

// Map resolves a source name. The returned tag describes which rule
// applied and is recorded in the variable's attributes; tag
// mappingNone means the name passed through unchanged.
func (m *Mapper) Map(source string) (canonical, tag string, err error) {
	if c, ok := m.override[source]; ok {
		return c, mappingUser, nil
	}
	if c, ok := builtinSynonyms[source]; ok {
		return c, mappingBuiltin, nil
	}
	if canonicalNames[source] {
		// Already canonical; mapping is idempotent.
		return source, mappingBuiltin, nil
	}
	if m.strict {
		return "", "", &UnmappedParameterError{Path: m.path, Name: source}
	}
	return source, mappingNone, nil
}
