// Package pid implements the feedback law at the heart of the control
// loop. The controller is a pure state machine: it owns its gains and
// accumulator state and performs no I/O and no output clamping.
package pid

import "errors"

// ErrBadTimestep reports a non-positive dt passed to Update. This is a
// caller bug, not a runtime condition to tolerate.
var ErrBadTimestep = errors.New("pid: non-positive timestep")

type PID struct {
	Kp float64
	Ki float64
	Kd float64

	integral float64
	prevErr  float64
	hasPrev  bool
}

func New(kp, ki, kd float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd}
}

// Update advances the controller by dt seconds and returns the raw
// control output. The first update after creation or Reset has no
// derivative contribution.
func (p *PID) Update(setpoint, measurement, dt float64) (float64, error) {
	if dt <= 0 {
		return 0, ErrBadTimestep
	}

	err := setpoint - measurement
	p.integral += err * dt

	derivative := 0.0
	if p.hasPrev {
		derivative = (err - p.prevErr) / dt
	}

	p.prevErr = err
	p.hasPrev = true

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative, nil
}

// Reset clears the accumulator and derivative state. Gains are kept.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.hasPrev = false
}

// SetGains retunes the controller without discarding accumulated
// state, so live adjustment does not kick the output.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.Kp = kp
	p.Ki = ki
	p.Kd = kd
}

// Integral returns the accumulated integral term state.
func (p *PID) Integral() float64 {
	return p.integral
}
