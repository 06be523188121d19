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

// addDerivedVariables computes density and potential temperature when
// temperature, salinity, and pressure are all present and adds them as
// canonical variables. Samples with any missing input become missing
// outputs. Variables the file already carries under the same canonical
// names are left alone.
func addDerivedVariables(ds *Dataset) error {
	t, okT := ds.Variable("temperature")
	s, okS := ds.Variable("salinity")
	p, okP := ds.Variable("pressure")
	if !okT || !okS || !okP {
		return nil
	}

	derive := func(f func(s, t, p float64) float64) []float64 {
		out := make([]float64, len(t))
		for i := range t {
			if IsNoData(t[i]) || IsNoData(s[i]) || IsNoData(p[i]) {
				out[i] = NoData
				continue
			}
			out[i] = f(s[i], t[i], p[i])
		}
		return out
	}
	attrs := map[string]string{
		"measurement_type": "Derived",
		"derived_from":     "salinity, temperature, pressure",
	}

	if _, ok := ds.Variable("density"); !ok {
		if err := ds.AddVariable("density", derive(densityEOS80), "kg m-3", attrs); err != nil {
			return err
		}
	}
	if _, ok := ds.Variable("potential_temperature"); !ok {
		if err := ds.AddVariable("potential_temperature", derive(potentialTemperature), "degC", attrs); err != nil {
			return err
		}
	}
	return nil
}

// densityEOS80 computes in-situ density [kg m-3] from practical
// salinity, temperature [deg C], and sea pressure [dbar] using the
// UNESCO 1983 (EOS-80) equation of state.
func densityEOS80(s, t, pdbar float64) float64 {
	p := pdbar / 10 // the bulk-modulus polynomials take pressure in bars
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	s15 := s * math.Sqrt(s)

	rhoW := 999.842594 + 6.793952e-2*t - 9.095290e-3*t2 +
		1.001685e-4*t3 - 1.120083e-6*t4 + 6.536332e-9*t4*t
	rho0 := rhoW +
		s*(8.24493e-1-4.0899e-3*t+7.6438e-5*t2-8.2467e-7*t3+5.3875e-9*t4) +
		s15*(-5.72466e-3+1.0227e-4*t-1.6546e-6*t2) +
		4.8314e-4*s*s
	if p == 0 {
		return rho0
	}

	kw := 19652.21 + 148.4206*t - 2.327105*t2 + 1.360477e-2*t3 - 5.155288e-5*t4
	k0 := kw +
		s*(54.6746-0.603459*t+1.09987e-2*t2-6.1670e-5*t3) +
		s15*(7.944e-2+1.6483e-2*t-5.3009e-4*t2)
	aw := 3.239908 + 1.43713e-3*t + 1.16092e-4*t2 - 5.77905e-7*t3
	a := aw + s*(2.2838e-3-1.0981e-5*t-1.6078e-6*t2) + 1.91075e-4*s15
	bw := 8.50935e-5 - 6.12293e-6*t + 5.2787e-8*t2
	b := bw + s*(-9.9348e-7+2.0816e-8*t+9.1697e-10*t2)
	k := k0 + a*p + b*p*p
	return rho0 / (1 - p/k)
}

// adiabaticGradient is the adiabatic temperature gradient
// [deg C/dbar] from Fofonoff and Millard (UNESCO 1983).
func adiabaticGradient(s, t, p float64) float64 {
	ds := s - 35
	return (((-2.1687e-16*t+1.8676e-14)*t-4.6206e-13)*p+
		((2.7759e-12*t-1.1351e-10)*ds+
			((-5.4481e-14*t+8.733e-12)*t-6.7795e-10)*t+
			1.8741e-8))*p +
		(-4.2393e-8*t+1.8932e-6)*ds +
		((6.6228e-10*t-6.836e-8)*t+8.5258e-6)*t + 3.5803e-5
}

// potentialTemperature computes potential temperature [deg C]
// referenced to the surface, integrating the adiabatic gradient with
// the Runge-Kutta scheme of the UNESCO 1983 algorithms.
func potentialTemperature(s, t, p float64) float64 {
	dp := -p // reference pressure 0 dbar
	dth := dp * adiabaticGradient(s, t, p)
	th := t + 0.5*dth
	q := dth

	dth = dp * adiabaticGradient(s, th, p+0.5*dp)
	th += (1 - 1/math.Sqrt2) * (dth - q)
	q = (2-math.Sqrt2)*dth + (-2+3/math.Sqrt2)*q

	dth = dp * adiabaticGradient(s, th, p+0.5*dp)
	th += (1 + 1/math.Sqrt2) * (dth - q)
	q = (2+math.Sqrt2)*dth + (-2-3/math.Sqrt2)*q

	dth = dp * adiabaticGradient(s, th, p+dp)
	return th + (dth-2*q)/6
}
