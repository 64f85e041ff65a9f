package loop

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/proforce-air/pidlink/internal/link"
	"github.com/proforce-air/pidlink/internal/pid"
)

// fakeLink scripts measurements and records writes.
type fakeLink struct {
	connected  bool
	value      float64
	connectErr error
	readErr    error
	writeErr   error
	writes     []float64
}

func (f *fakeLink) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeLink) Close() error { f.connected = false; return nil }
func (f *fakeLink) Connected() bool { return f.connected }
func (f *fakeLink) Addr() string { return "AA:BB:CC:DD:EE:FF" }

func (f *fakeLink) ReadValue(ctx context.Context) (float64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.value, nil
}

func (f *fakeLink) WriteValue(ctx context.Context, v float64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, v)
	return nil
}

var _ = Describe("Loop", func() {
	const dt = 0.02

	var (
		ctx   context.Context
		lnk   *fakeLink
		l     *Loop
		clock time.Time
	)

	tick := func(cfg Config) error {
		clock = clock.Add(20 * time.Millisecond)
		return l.Tick(ctx, cfg, dt)
	}

	BeforeEach(func() {
		ctx = context.Background()
		lnk = &fakeLink{}
		l = New(lnk)
		clock = time.Unix(1000, 0)
		l.now = func() time.Time { return clock }
		Expect(l.ConnectLink(ctx)).To(Succeed())
	})

	It("starts idle", func() {
		Expect(New(nil).Status().State).To(Equal(StateIdle))
	})

	It("runs the step-response scenario", func() {
		// kp=20 kd=2, setpoint 10, measurement 0, limit 50
		cfg := Config{Kp: 20, Kd: 2, Setpoint: 10, OutputLimit: 50}
		Expect(tick(cfg)).To(Succeed())

		Expect(l.Status().State).To(Equal(StateRunning))
		Expect(l.History().Len()).To(Equal(1))
		s, _ := l.History().Last()
		Expect(s.T).To(BeNumerically("~", 0, 1e-9))
		Expect(s.Measurement).To(Equal(0.0))
		Expect(s.Control).To(Equal(50.0))
		Expect(s.Err).To(Equal(10.0))
		Expect(lnk.writes).To(Equal([]float64{50}))
	})

	It("keeps the output within the configured limit on every tick", func() {
		cfg := Config{Kp: 500, Ki: 100, Kd: 200, Setpoint: 100, OutputLimit: 25}
		for i := 0; i < 50; i++ {
			lnk.value = float64(i%7) - 3
			Expect(tick(cfg)).To(Succeed())
		}
		for _, s := range l.History().Snapshot() {
			Expect(s.Control).To(BeNumerically(">=", -25))
			Expect(s.Control).To(BeNumerically("<=", 25))
		}
	})

	It("appends samples in non-decreasing time order", func() {
		cfg := Config{Kp: 1, Setpoint: 1, OutputLimit: 10}
		for i := 0; i < 20; i++ {
			Expect(tick(cfg)).To(Succeed())
		}
		samples := l.History().Snapshot()
		for i := 1; i < len(samples); i++ {
			Expect(samples[i].T).To(BeNumerically(">=", samples[i-1].T))
		}
	})

	It("refreshes gains from the configuration every tick", func() {
		Expect(tick(Config{Kp: 1, Setpoint: 10, OutputLimit: 1000})).To(Succeed())
		s, _ := l.History().Last()
		Expect(s.Control).To(Equal(10.0))

		Expect(tick(Config{Kp: 5, Setpoint: 10, OutputLimit: 1000})).To(Succeed())
		s, _ = l.History().Last()
		Expect(s.Control).To(Equal(50.0))
	})

	Describe("emergency stop", func() {
		It("forces zero output, resets the integral, and suppresses logging", func() {
			run := Config{Kp: 1, Ki: 10, Setpoint: 50, OutputLimit: 100}
			for i := 0; i < 5; i++ {
				Expect(tick(run)).To(Succeed())
			}
			logged := l.History().Len()
			writes := len(lnk.writes)

			stop := run
			stop.EmergencyStop = true
			Expect(tick(stop)).To(Succeed())

			st := l.Status()
			Expect(st.State).To(Equal(StateEmergencyStopped))
			Expect(st.Control).To(BeZero())
			Expect(l.pid.Integral()).To(BeZero())
			Expect(l.History().Len()).To(Equal(logged), "stopped tick must not be logged")
			Expect(lnk.writes).To(HaveLen(writes), "stopped tick must not write to the link")

			// re-asserting the same configuration is a no-op transition
			Expect(tick(stop)).To(Succeed())
			Expect(l.Status().State).To(Equal(StateEmergencyStopped))
		})

		It("holds the last known measurement while stopped", func() {
			lnk.value = 42
			Expect(tick(Config{Kp: 1, Setpoint: 50, OutputLimit: 100})).To(Succeed())

			Expect(tick(Config{EmergencyStop: true})).To(Succeed())
			Expect(l.Status().Measurement).To(Equal(42.0))
		})

		It("reports zero measurement when stopped with empty history", func() {
			Expect(tick(Config{EmergencyStop: true})).To(Succeed())
			Expect(l.Status().Measurement).To(BeZero())
		})

		It("resumes cleanly after the stop is released", func() {
			Expect(tick(Config{Kp: 1, Ki: 5, Setpoint: 10, OutputLimit: 100, EmergencyStop: true})).To(Succeed())
			Expect(tick(Config{Kp: 1, Setpoint: 10, OutputLimit: 100})).To(Succeed())
			Expect(l.Status().State).To(Equal(StateRunning))
		})
	})

	Describe("reset", func() {
		It("clears history, controller state, and the reference time", func() {
			cfg := Config{Kp: 1, Ki: 10, Setpoint: 10, OutputLimit: 100}
			for i := 0; i < 10; i++ {
				Expect(tick(cfg)).To(Succeed())
			}
			Expect(l.History().Len()).To(Equal(10))

			reset := cfg
			reset.ResetRequested = true
			Expect(tick(reset)).To(Succeed())

			// the reset tick itself runs and logs the first fresh sample
			Expect(l.History().Len()).To(Equal(1))
			s, _ := l.History().Last()
			Expect(s.T).To(BeNumerically("~", 0, 1e-9))
		})

		It("is processed before the emergency-stop check", func() {
			cfg := Config{Kp: 1, Setpoint: 10, OutputLimit: 100}
			for i := 0; i < 3; i++ {
				Expect(tick(cfg)).To(Succeed())
			}

			both := Config{EmergencyStop: true, ResetRequested: true}
			Expect(tick(both)).To(Succeed())
			Expect(l.History().Len()).To(BeZero(), "reset must clear history even when stopping")
			Expect(l.Status().State).To(Equal(StateEmergencyStopped))
		})
	})

	Describe("degraded ticks", func() {
		It("reuses the last good measurement on a failed read", func() {
			lnk.value = 7.5
			cfg := Config{Kp: 2, Setpoint: 10, OutputLimit: 100}
			Expect(tick(cfg)).To(Succeed())

			lnk.readErr = errors.New("att timeout")
			Expect(tick(cfg)).To(Succeed())

			st := l.Status()
			Expect(st.Degraded).To(BeTrue())
			Expect(st.LastErr).NotTo(BeEmpty())
			s, _ := l.History().Last()
			Expect(s.Measurement).To(Equal(7.5), "must not substitute zero for bad data")
			Expect(l.History().Len()).To(Equal(2))
		})

		It("still logs the computed output when delivery fails", func() {
			lnk.writeErr = link.ErrWriteFailed
			Expect(tick(Config{Kp: 1, Setpoint: 5, OutputLimit: 100})).To(Succeed())

			Expect(l.History().Len()).To(Equal(1))
			s, _ := l.History().Last()
			Expect(s.Control).To(Equal(5.0))
			Expect(l.Status().Degraded).To(BeTrue())
		})
	})

	Describe("connection requests", func() {
		It("connects the link when requested in the configuration", func() {
			fresh := &fakeLink{}
			l = New(fresh)
			l.now = func() time.Time { return clock }

			Expect(tick(Config{Kp: 1, Setpoint: 1, OutputLimit: 10})).To(Succeed())
			Expect(fresh.connected).To(BeFalse())

			Expect(tick(Config{Kp: 1, Setpoint: 1, OutputLimit: 10, ConnectRequested: true})).To(Succeed())
			Expect(fresh.connected).To(BeTrue())
			Expect(l.Status().Connected).To(BeTrue())
		})

		It("keeps running in fallback mode when the connect fails", func() {
			fresh := &fakeLink{connectErr: link.ErrUnavailable}
			l = New(fresh)
			l.now = func() time.Time { return clock }

			Expect(tick(Config{Kp: 1, Setpoint: 1, OutputLimit: 10, ConnectRequested: true})).To(Succeed())
			st := l.Status()
			Expect(st.Connected).To(BeFalse())
			Expect(st.LastErr).NotTo(BeEmpty())
			Expect(l.History().Len()).To(Equal(1), "the tick still runs and logs")
		})
	})

	Describe("without a link", func() {
		It("falls back to the last logged measurement", func() {
			l = New(nil)
			l.now = func() time.Time { return clock }

			cfg := Config{Kp: 1, Setpoint: 10, OutputLimit: 100}
			Expect(tick(cfg)).To(Succeed())
			s, _ := l.History().Last()
			Expect(s.Measurement).To(BeZero())
			Expect(l.Status().Degraded).To(BeFalse(), "no link is simulation mode, not an error")
		})
	})

	It("skips the tick and logs nothing on a non-positive dt", func() {
		err := l.Tick(ctx, Config{Kp: 1, Setpoint: 1, OutputLimit: 10}, 0)
		Expect(err).To(MatchError(pid.ErrBadTimestep))
		Expect(l.History().Len()).To(BeZero())
	})
})

var _ = Describe("Store", func() {
	It("delivers the reset request in exactly one snapshot", func() {
		s := NewStore(Config{})
		s.RequestReset()
		Expect(s.Snapshot().ResetRequested).To(BeTrue())
		Expect(s.Snapshot().ResetRequested).To(BeFalse())
	})

	It("delivers the connect request in exactly one snapshot", func() {
		s := NewStore(Config{})
		s.RequestConnect()
		Expect(s.Snapshot().ConnectRequested).To(BeTrue())
		Expect(s.Snapshot().ConnectRequested).To(BeFalse())
	})

	It("applies setter updates to following snapshots", func() {
		s := NewStore(Config{})
		s.SetGains(1, 2, 3)
		s.SetSetpoint(4)
		s.SetOutputLimit(-5)
		s.SetEmergencyStop(true)

		cfg := s.Snapshot()
		Expect(cfg.Kp).To(Equal(1.0))
		Expect(cfg.Ki).To(Equal(2.0))
		Expect(cfg.Kd).To(Equal(3.0))
		Expect(cfg.Setpoint).To(Equal(4.0))
		Expect(cfg.OutputLimit).To(BeZero(), "negative limits are clamped to zero")
		Expect(cfg.EmergencyStop).To(BeTrue())
	})
})

var _ = Describe("Runner", func() {
	It("ticks until the context is cancelled", func() {
		lnk := &fakeLink{value: 1}
		l := New(lnk)
		Expect(l.ConnectLink(context.Background())).To(Succeed())

		src := NewStore(Config{Kp: 1, Setpoint: 5, OutputLimit: 10})
		r := NewRunner(l, src, time.Millisecond)

		var ticks int
		r.OnTick(func(Status) { ticks++ })

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := r.Run(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(ticks).To(BeNumerically(">", 0))
		Expect(l.History().Len()).To(Equal(ticks))
		Expect(lnk.connected).To(BeFalse(), "shutdown closes the link")
	})
})
