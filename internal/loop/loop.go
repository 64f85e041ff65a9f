// Package loop ties the PID controller and the device link together
// into the periodic sampling/actuation cycle, and enforces the safety
// interlocks: output clamping, emergency stop, and controller reset.
package loop

import (
	"context"
	"math"
	"time"

	"github.com/proforce-air/pidlink/internal/link"
	"github.com/proforce-air/pidlink/internal/pid"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateEmergencyStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEmergencyStopped:
		return "emergency-stopped"
	default:
		return "idle"
	}
}

// Status is the per-tick view exposed to the front end.
type Status struct {
	State           State
	Connected       bool
	Degraded        bool
	LastErr         string
	Measurement     float64
	Control         float64
	Characteristics []string
}

// Loop owns the PID state, the (optional) device link, and the sample
// history. It is single-threaded: ticks never overlap.
type Loop struct {
	pid     *pid.PID
	link    link.Link
	history *History

	start time.Time
	state State
	chars []string

	status Status

	now func() time.Time
}

// New creates a loop. lnk may be nil, in which case every tick runs in
// the no-hardware fallback mode against the last logged measurement.
func New(lnk link.Link) *Loop {
	return &Loop{
		pid:     pid.New(0, 0, 0),
		link:    lnk,
		history: NewHistory(),
		now:     time.Now,
	}
}

func (l *Loop) History() *History { return l.history }
func (l *Loop) Link() link.Link   { return l.link }
func (l *Loop) Status() Status    { return l.status }

// ConnectLink establishes the device link. No-op when already
// connected or when no link is configured; a failure leaves the loop
// in fallback mode. On a GATT link the discovered characteristics are
// surfaced through Status so the operator can select one.
func (l *Loop) ConnectLink(ctx context.Context) error {
	if l.link == nil {
		return nil
	}
	if err := l.link.Connect(ctx); err != nil {
		return err
	}
	if g, ok := l.link.(*link.GATT); ok {
		l.chars = g.Characteristics()
	}
	return nil
}

// Shutdown closes the link. The in-band emergency stop only zeroes
// actuation; this ends the session.
func (l *Loop) Shutdown() error {
	if l.link == nil {
		return nil
	}
	return l.link.Close()
}

// Tick runs one control cycle with the given configuration snapshot
// and elapsed seconds since the previous tick.
//
// Order is fixed: a requested reset is processed first (so a reset
// also clears an emergency-stopped session), then the emergency-stop
// check, then the normal read-compute-clamp-write-log cycle. During
// emergency stop the control is forced to zero and the link write path
// is skipped entirely: the device sees silence, not a zero command,
// and the tick is not logged.
func (l *Loop) Tick(ctx context.Context, cfg Config, dt float64) error {
	if cfg.ResetRequested {
		l.history.Clear()
		l.start = time.Time{}
		l.pid.Reset()
		l.state = StateIdle
	}

	var connectErr error
	if cfg.ConnectRequested {
		connectErr = l.ConnectLink(ctx)
	}

	if cfg.EmergencyStop {
		l.state = StateEmergencyStopped
		l.pid.Reset()
		l.status = Status{
			State:           l.state,
			Connected:       l.connected(),
			Measurement:     l.lastMeasurement(),
			Control:         0,
			Characteristics: l.chars,
		}
		if connectErr != nil {
			l.status.LastErr = connectErr.Error()
		}
		return nil
	}

	if l.start.IsZero() {
		l.start = l.now()
	}

	l.pid.SetGains(cfg.Kp, cfg.Ki, cfg.Kd)

	measurement, readErr := l.readMeasurement(ctx)

	control, err := l.pid.Update(cfg.Setpoint, measurement, dt)
	if err != nil {
		// misconfigured timing: skip the tick, log nothing
		l.status.LastErr = err.Error()
		return err
	}
	control = clamp(control, cfg.OutputLimit)

	var writeErr error
	if l.connected() {
		writeErr = l.link.WriteValue(ctx, control)
	}

	// a failed delivery still logs the computed output as attempted
	l.history.Append(Sample{
		T:           l.now().Sub(l.start).Seconds(),
		Measurement: measurement,
		Control:     control,
		Err:         cfg.Setpoint - measurement,
	})

	l.state = StateRunning
	l.status = Status{
		State:           l.state,
		Connected:       l.connected(),
		Degraded:        readErr != nil || writeErr != nil,
		Measurement:     measurement,
		Control:         control,
		Characteristics: l.chars,
	}
	switch {
	case connectErr != nil:
		l.status.LastErr = connectErr.Error()
	case readErr != nil:
		l.status.LastErr = readErr.Error()
	case writeErr != nil:
		l.status.LastErr = writeErr.Error()
	}
	return nil
}

// readMeasurement obtains this tick's measurement. Without a connected
// link the loop runs against the last logged measurement (simulation
// mode, not an error). A failed or malformed read reuses the last good
// measurement and marks the tick degraded; it never substitutes zero
// for bad data.
func (l *Loop) readMeasurement(ctx context.Context) (float64, error) {
	if !l.connected() {
		return l.lastMeasurement(), nil
	}
	v, err := l.link.ReadValue(ctx)
	if err != nil {
		return l.lastMeasurement(), err
	}
	return v, nil
}

func (l *Loop) lastMeasurement() float64 {
	if s, ok := l.history.Last(); ok {
		return s.Measurement
	}
	return 0
}

func (l *Loop) connected() bool {
	return l.link != nil && l.link.Connected()
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
