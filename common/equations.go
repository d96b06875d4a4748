package common

import "math"

// StandardQNH is the ICAO standard sea level pressure in Pa.
const StandardQNH = 101325.0

// Altitude returns the pressure altitude in metres for pressure press and sea
// level pressure qnh, both in Pa, using the standard atmosphere below 11 km.
func Altitude(press, qnh float64) float64 {
	return 44307.694 * (1.0 - math.Pow(press/qnh, 0.190284))
}

// Mean returns the arithmetic mean of x.
func Mean(x []float64) (float64, bool) {
	if len(x) < 1 {
		return math.NaN(), false
	}
	sum := 0.0
	for i := range x {
		sum += x[i]
	}
	return sum / float64(len(x)), true
}

// Stdev estimates the sample standard deviation of x.
func Stdev(x []float64) (float64, bool) {
	if len(x) < 2 {
		return math.NaN(), false
	}
	nf := float64(len(x))
	xbar, _ := Mean(x)

	sumsq := 0.0
	for i := range x {
		sumsq += (x[i] - xbar) * (x[i] - xbar)
	}
	return math.Sqrt(sumsq / (nf - 1)), true
}

// ArrayRange returns max(x) - min(x).
func ArrayRange(x []float64) (float64, bool) {
	if len(x) < 1 {
		return math.NaN(), false
	}
	min, max := x[0], x[0]
	for _, v := range x[1:] {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return max - min, true
}

// VerticalSpeed smooths climb rate with an exponential moving average. vs is
// the previous value, dAlt the altitude change over dt, tau the decay time.
func VerticalSpeed(vs, dAlt float64, dt, tau float64) float64 {
	if dt <= 0 {
		return vs
	}
	u := tau / (tau + dt)
	return u*vs + (1-u)*dAlt/dt
}
