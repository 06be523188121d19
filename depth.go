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

import "math"

// depthFromPressure converts sea pressure [dbar] to depth [m, positive
// down] using the UNESCO 1983 (Fofonoff and Millard) formula. lat is
// the latitude in degrees, which sets the local gravity.
func depthFromPressure(pressure []float64, lat float64) []float64 {
	sinLat := math.Sin(lat * math.Pi / 180)
	sin2 := sinLat * sinLat
	out := make([]float64, len(pressure))
	for i, p := range pressure {
		if IsNoData(p) {
			out[i] = NoData
			continue
		}
		g := 9.780318*(1+(5.2788e-3+2.36e-5*sin2)*sin2) + 1.092e-6*p
		out[i] = ((((-1.82e-15*p+2.279e-10)*p-2.2512e-5)*p + 9.72659) * p) / g
	}
	return out
}
