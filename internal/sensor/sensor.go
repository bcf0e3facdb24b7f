// Package sensor wraps the pollutant and climate sensors behind a health
// tracker that counts consecutive failures and caches the last good reading.
package sensor

import (
	"errors"
	"sync"
)

// ErrNotReady is returned by sensors that have not been initialized.
var ErrNotReady = errors.New("sensor not initialized")

// Pollutant reads the CO2 sensor.
type Pollutant interface {
	// Init (re)establishes communication with the sensor.
	Init() error
	// ReadPPM returns the CO2 concentration. An implausible value is
	// returned as-is; the tracker decides whether it is usable.
	ReadPPM() (float64, error)
}

// Climate reads the temperature/humidity sensor.
type Climate interface {
	Init() error
	// ReadClimate returns (temperature °C, relative humidity %).
	ReadClimate() (float64, float64, error)
}

// Bus serializes access to a physical bus shared by the climate sensor and
// the display. Decision logic never takes it.
type Bus struct {
	mu sync.Mutex
}

// Do runs fn while holding the bus.
func (b *Bus) Do(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn()
}
