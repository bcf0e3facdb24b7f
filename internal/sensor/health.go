package sensor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// FailureLimit is the number of consecutive unusable pollutant readings
// after which the sensors are reported unhealthy and the cache is used.
const FailureLimit = 3

// HealthTracker runs one sensor read cycle at a time and keeps the
// pollutant failure counter and last-good cache. Only Healthy and Failures
// are meant to be called from other goroutines.
type HealthTracker struct {
	pollutant Pollutant
	climate   Climate
	bus       *Bus
	now       func() time.Time

	mu          sync.Mutex // serializes ReadCycle, Init and Reinit
	lastGood    float64
	hasLastGood bool

	failures atomic.Int32
}

// NewHealthTracker creates a tracker. The climate sensor is read while
// holding bus; pass nil if the climate sensor has a bus of its own.
func NewHealthTracker(p Pollutant, c Climate, bus *Bus, now func() time.Time) *HealthTracker {
	if bus == nil {
		bus = &Bus{}
	}
	if now == nil {
		now = time.Now
	}
	return &HealthTracker{pollutant: p, climate: c, bus: bus, now: now}
}

// Init performs first-boot bring-up of both sensors.
func (t *HealthTracker) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initLocked()
}

// Reinit clears the failure counter and cache and re-establishes both sensors.
// It returns an error if either sensor fails to come back.
func (t *HealthTracker) Reinit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures.Store(0)
	t.lastGood = 0
	t.hasLastGood = false

	return t.initLocked()
}

func (t *HealthTracker) initLocked() error {
	var errs []error
	if err := t.pollutant.Init(); err != nil {
		errs = append(errs, fmt.Errorf("init pollutant sensor: %w", err))
	}
	err := t.bus.Do(t.climate.Init)
	if err != nil {
		errs = append(errs, fmt.Errorf("init climate sensor: %w", err))
	}
	return errors.Join(errs...)
}

// Healthy reports whether fewer than FailureLimit consecutive pollutant
// readings have been unusable.
func (t *HealthTracker) Healthy() bool {
	return t.failures.Load() < FailureLimit
}

// Failures returns the current consecutive failure count.
func (t *HealthTracker) Failures() int {
	return int(t.failures.Load())
}

// LastGood returns the cached last-good pollutant reading.
func (t *HealthTracker) LastGood() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastGood, t.hasLastGood
}

// ReadCycle reads both sensors once and returns the snapshot together with
// the health verdict for this cycle.
//
// An unusable pollutant reading (error or implausible) increments the
// failure counter; once the counter reaches FailureLimit the cached value
// is substituted and the snapshot is marked Degraded. A climate failure
// invalidates the snapshot without touching the counter.
func (t *HealthTracker) ReadCycle() (logic.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := logic.Snapshot{CapturedAt: t.now()}

	ppm, perr := t.pollutant.ReadPPM()
	pollutantUsable := perr == nil && logic.CO2Plausible(ppm)

	if pollutantUsable {
		t.failures.Store(0)
		t.lastGood = ppm
		t.hasLastGood = true
		snap.CO2 = ppm
	} else {
		n := t.failures.Add(1)
		if perr == nil {
			snap.CO2 = ppm
		}
		if n >= FailureLimit && t.hasLastGood {
			snap.CO2 = t.lastGood
			snap.Degraded = true
			pollutantUsable = true
		}
	}

	var temp, hum float64
	cerr := t.bus.Do(func() error {
		var err error
		temp, hum, err = t.climate.ReadClimate()
		return err
	})
	if cerr == nil {
		snap.Temperature = temp
		snap.Humidity = hum
	}

	snap.Valid = pollutantUsable && cerr == nil && logic.ClimatePlausible(temp, hum)

	return snap, t.Healthy()
}
