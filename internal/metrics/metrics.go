// Package metrics summarizes a finished run from the sample history.
package metrics

import (
	"math"

	"github.com/proforce-air/pidlink/internal/loop"
)

// Effort is the mean absolute control output over a run.
func Effort(samples []loop.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += math.Abs(s.Control)
	}
	return sum / float64(len(samples))
}

// RMSError is the root-mean-square tracking error.
func RMSError(samples []loop.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Err * s.Err
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Overshoot is the largest excursion of the measurement past the
// setpoint, expressed in measurement units. Zero if the measurement
// never crosses the setpoint.
func Overshoot(samples []loop.Sample, setpoint float64) float64 {
	max := 0.0
	for _, s := range samples {
		var over float64
		if setpoint >= 0 {
			over = s.Measurement - setpoint
		} else {
			over = setpoint - s.Measurement
		}
		if over > max {
			max = over
		}
	}
	return max
}

// SettlingTime returns the elapsed time after which the error stays
// within tolerance for the rest of the run, or -1 if it never settles.
func SettlingTime(samples []loop.Sample, tolerance float64) float64 {
	settled := -1.0
	for _, s := range samples {
		if math.Abs(s.Err) > tolerance {
			settled = -1
		} else if settled < 0 {
			settled = s.T
		}
	}
	return settled
}
