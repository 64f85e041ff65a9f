package pid_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/proforce-air/pidlink/internal/pid"
)

var _ = Describe("PID", func() {
	const dt = 0.02

	It("rejects non-positive timesteps", func() {
		p := pid.New(1, 1, 1)
		_, err := p.Update(1, 0, 0)
		Expect(err).To(MatchError(pid.ErrBadTimestep))
		_, err = p.Update(1, 0, -dt)
		Expect(err).To(MatchError(pid.ErrBadTimestep))
	})

	It("reduces to the pure proportional law with ki=kd=0", func() {
		p := pid.New(3.5, 0, 0)
		for i := 0; i < 50; i++ {
			m := float64(i) * 0.1
			u, err := p.Update(10, m, dt)
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(Equal(3.5 * (10 - m)))
		}
	})

	It("accumulates the integral term as ki*err*n*dt under constant error", func() {
		p := pid.New(0, 2.0, 0)
		const errVal = 4.0
		for n := 1; n <= 100; n++ {
			u, err := p.Update(errVal, 0, dt)
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(BeNumerically("~", 2.0*errVal*float64(n)*dt, 1e-9))
		}
	})

	It("has no derivative contribution on the first update after Reset", func() {
		p := pid.New(0, 0, 5)
		_, err := p.Update(10, 3, dt)
		Expect(err).NotTo(HaveOccurred())
		_, err = p.Update(10, 7, dt)
		Expect(err).NotTo(HaveOccurred())

		p.Reset()
		u, err := p.Update(10, 0, dt)
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(BeZero())
	})

	It("zeroes the accumulator on Reset but keeps gains", func() {
		p := pid.New(1, 1, 1)
		for i := 0; i < 10; i++ {
			_, err := p.Update(5, 0, dt)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(p.Integral()).NotTo(BeZero())

		p.Reset()
		p.Reset() // idempotent
		Expect(p.Integral()).To(BeZero())
		Expect(p.Kp).To(Equal(1.0))
		Expect(p.Ki).To(Equal(1.0))
		Expect(p.Kd).To(Equal(1.0))
	})

	It("applies retuned gains without discarding the integral", func() {
		p := pid.New(0, 1, 0)
		_, err := p.Update(1, 0, 1.0)
		Expect(err).NotTo(HaveOccurred())
		acc := p.Integral()

		p.SetGains(2, 1, 0)
		Expect(p.Integral()).To(Equal(acc))
		u, err := p.Update(1, 0, 1.0)
		Expect(err).NotTo(HaveOccurred())
		// kp*err + ki*(acc + err*dt)
		Expect(u).To(BeNumerically("~", 2*1.0+1.0*(acc+1.0), 1e-12))
	})

	It("matches the step-response scenario kp=20 kd=2", func() {
		p := pid.New(20, 0, 2)
		u, err := p.Update(10, 0, dt)
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal(200.0))
	})
})
