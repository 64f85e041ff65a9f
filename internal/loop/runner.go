package loop

import (
	"context"
	"time"
)

const (
	// DefaultPeriod is the nominal tick period.
	DefaultPeriod = 20 * time.Millisecond

	// defaultIOTimeout bounds one tick's worth of link I/O so an
	// unresponsive device degrades to a reported error instead of
	// stalling the loop.
	defaultIOTimeout = 500 * time.Millisecond
)

// Runner drives a Loop at a fixed period until the context is
// cancelled. Cancelling the context is the process-level shutdown,
// distinct from the in-band emergency-stop flag which only zeroes
// actuation while the loop keeps ticking.
type Runner struct {
	loop      *Loop
	src       ConfigSource
	period    time.Duration
	ioTimeout time.Duration
	onTick    func(Status)
}

func NewRunner(l *Loop, src ConfigSource, period time.Duration) *Runner {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Runner{
		loop:      l,
		src:       src,
		period:    period,
		ioTimeout: defaultIOTimeout,
	}
}

// OnTick registers an observer called after every tick with the
// current status. Must be set before Run.
func (r *Runner) OnTick(fn func(Status)) {
	r.onTick = fn
}

// Run ticks the loop until ctx is cancelled. Each tick reads a fresh
// configuration snapshot and passes the measured wall-clock dt, so the
// controller tolerates scheduling jitter. Transport failures are
// absorbed per tick; only a timing fault ends the run.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	defer r.loop.Shutdown()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt <= 0 {
				continue
			}

			cfg := r.src.Snapshot()
			tickCtx, cancel := context.WithTimeout(ctx, r.ioTimeout)
			err := r.loop.Tick(tickCtx, cfg, dt)
			cancel()
			if err != nil {
				return err
			}
			if r.onTick != nil {
				r.onTick(r.loop.Status())
			}
		}
	}
}
