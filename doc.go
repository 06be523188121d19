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

// Package seasense reads oceanographic sensor recordings from
// heterogeneous instrument file formats (Seabird CNV, RBR RSK, Nortek
// ASCII, generic NetCDF and CSV) and normalizes them into one
// canonical, metadata-rich labeled dataset representation.
//
// Each format has its own reader; all readers implement the same
// capability contract (Data, Metadata) and produce a *Dataset, so
// downstream exporters and plotters never touch format-specific
// internals. Readers are single-use per source path: construct one
// with a file path and options, extract the dataset, and discard it.
// Separate readers share no mutable state, so independent files may be
// parsed concurrently from separate goroutines.
package seasense
