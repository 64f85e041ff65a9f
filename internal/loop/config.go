package loop

import "sync"

// Config is the control configuration read fresh each tick. It is
// supplied by the front end; the loop never mutates it.
type Config struct {
	Kp               float64
	Ki               float64
	Kd               float64
	Setpoint         float64
	OutputLimit      float64
	EmergencyStop    bool
	ResetRequested   bool
	ConnectRequested bool
}

// ConfigSource yields one consistent configuration snapshot per tick.
type ConfigSource interface {
	Snapshot() Config
}

// Store is the shared mutable configuration between a front end and
// the runner. ResetRequested and ConnectRequested are one-shot
// latches: each is delivered in exactly one snapshot and then cleared.
type Store struct {
	mu  sync.Mutex
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	s.cfg.ResetRequested = false
	s.cfg.ConnectRequested = false
	return cfg
}

func (s *Store) SetGains(kp, ki, kd float64) {
	s.mu.Lock()
	s.cfg.Kp, s.cfg.Ki, s.cfg.Kd = kp, ki, kd
	s.mu.Unlock()
}

func (s *Store) SetSetpoint(v float64) {
	s.mu.Lock()
	s.cfg.Setpoint = v
	s.mu.Unlock()
}

func (s *Store) SetOutputLimit(v float64) {
	s.mu.Lock()
	if v < 0 {
		v = 0
	}
	s.cfg.OutputLimit = v
	s.mu.Unlock()
}

func (s *Store) SetEmergencyStop(on bool) {
	s.mu.Lock()
	s.cfg.EmergencyStop = on
	s.mu.Unlock()
}

func (s *Store) RequestReset() {
	s.mu.Lock()
	s.cfg.ResetRequested = true
	s.mu.Unlock()
}

func (s *Store) RequestConnect() {
	s.mu.Lock()
	s.cfg.ConnectRequested = true
	s.mu.Unlock()
}

// Current returns the configuration without consuming the reset latch.
func (s *Store) Current() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
