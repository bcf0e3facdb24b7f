package logic

import "time"

// LifecycleConfig holds the lifecycle timing.
type LifecycleConfig struct {
	Preheat    time.Duration
	Stabilize  time.Duration
	ErrorDwell time.Duration
}

// DefaultLifecycleConfig returns the sensor warm-up timing of the CO2 sensor.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		Preheat:    60 * time.Second,
		Stabilize:  240 * time.Second,
		ErrorDwell: 10 * time.Second,
	}
}

// TickInput is one supervisor sample.
type TickInput struct {
	Now time.Time
	// SensorReady reports that first-boot sensor bring-up has completed.
	SensorReady bool
	// Healthy is the sensor health verdict.
	Healthy bool
}

// Step describes what a supervisor call did.
type Step struct {
	Changed bool
	From    Lifecycle
	To      Lifecycle
	// EnteredError is true only on the call that entered ERROR.
	EnteredError bool
	// ReinitDue asks the caller to reinitialize the sensors and report the
	// outcome through ReinitDone.
	ReinitDue bool
}

// Supervisor is the lifecycle state machine. It is not safe for concurrent
// use; a single goroutine owns it.
type Supervisor struct {
	cfg   LifecycleConfig
	state Lifecycle
	// deadline is when the current timed state completes. Reset on every
	// transition; zero in untimed states.
	deadline time.Time
	// recovered skips the first-boot wait on the next INIT.
	recovered bool
}

// NewSupervisor creates a supervisor in INIT.
func NewSupervisor(cfg LifecycleConfig) *Supervisor {
	return &Supervisor{cfg: cfg, state: LifecycleInit}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() Lifecycle {
	return s.state
}

// Deadline returns when the current timed state (PREHEATING, STABILIZING,
// ERROR dwell) completes. Zero in other states.
func (s *Supervisor) Deadline() time.Time {
	return s.deadline
}

// Tick advances the state machine by at most one transition.
func (s *Supervisor) Tick(in TickInput) Step {
	switch s.state {
	case LifecycleInit:
		if s.recovered {
			s.recovered = false
			return s.enter(LifecyclePreheating, in.Now)
		}
		if in.SensorReady {
			return s.enter(LifecyclePreheating, in.Now)
		}

	case LifecyclePreheating:
		if !in.Now.Before(s.deadline) {
			return s.enter(LifecycleStabilizing, in.Now)
		}

	case LifecycleStabilizing:
		if !in.Now.Before(s.deadline) {
			return s.enter(LifecycleRunning, in.Now)
		}

	case LifecycleRunning:
		if !in.Healthy {
			return s.enter(LifecycleError, in.Now)
		}

	case LifecycleError:
		if !in.Now.Before(s.deadline) {
			return Step{From: s.state, To: s.state, ReinitDue: true}
		}
	}

	return Step{From: s.state, To: s.state}
}

// Fail forces ERROR from any state. Used when sensor bring-up fails at boot.
func (s *Supervisor) Fail(now time.Time) Step {
	if s.state == LifecycleError {
		return Step{From: s.state, To: s.state}
	}
	return s.enter(LifecycleError, now)
}

// ReinitDone reports the outcome of a reinitialization requested by ReinitDue.
// On failure the supervisor stays in ERROR and waits another dwell.
// On success it returns to INIT and skips the first-boot wait.
func (s *Supervisor) ReinitDone(now time.Time, err error) Step {
	if s.state != LifecycleError {
		return Step{From: s.state, To: s.state}
	}
	if err != nil {
		s.deadline = now.Add(s.cfg.ErrorDwell)
		return Step{From: s.state, To: s.state}
	}
	s.recovered = true
	return s.enter(LifecycleInit, now)
}

func (s *Supervisor) enter(to Lifecycle, now time.Time) Step {
	from := s.state
	s.state = to

	switch to {
	case LifecyclePreheating:
		s.deadline = now.Add(s.cfg.Preheat)
	case LifecycleStabilizing:
		s.deadline = now.Add(s.cfg.Stabilize)
	case LifecycleError:
		s.deadline = now.Add(s.cfg.ErrorDwell)
	default:
		s.deadline = time.Time{}
	}

	return Step{
		Changed:      true,
		From:         from,
		To:           to,
		EnteredError: to == LifecycleError,
	}
}
