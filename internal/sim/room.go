// Package sim provides a simulated room for running the controller without
// hardware. The room is both the sensor pair and the fan hardware: fan duty
// pulls CO2 and temperature toward outdoor values.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// Simulation constants.
const (
	OutdoorCO2      = 420.0 // ppm
	OutdoorTempC    = 12.0
	IndoorTempC     = 22.0
	BaseHumidity    = 45.0
	OccupantPPMPerS = 0.8   // CO2 generated per occupant per second
	VentRatePerS    = 0.004 // air-change fraction per second per fan at full duty
	LeakRatePerS    = 0.0002
	HeatingRatePerS = 0.001 // pull back toward IndoorTempC
)

// Room is a well-mixed single-zone air model.
type Room struct {
	mu sync.Mutex

	now       func() time.Time
	updatedAt time.Time

	co2       float64
	tempC     float64
	occupants int
	duties    [logic.FanCount]uint8
	ready     bool
}

// NewRoom creates a room starting at the given CO2 concentration.
func NewRoom(startPPM float64, occupants int, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	return &Room{
		now:       now,
		updatedAt: now(),
		co2:       startPPM,
		tempC:     IndoorTempC,
		occupants: occupants,
	}
}

// Init implements sensor.Pollutant and sensor.Climate.
func (r *Room) Init() error {
	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
	return nil
}

// ReadPPM implements sensor.Pollutant.
func (r *Room) ReadPPM() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return r.co2, nil
}

// ReadClimate implements sensor.Climate.
func (r *Room) ReadClimate() (float64, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	// Humidity tracks occupancy loosely.
	hum := math.Min(BaseHumidity+float64(r.occupants)*2, 95)
	return r.tempC, hum, nil
}

// SetDuty implements fan.Driver.
func (r *Room) SetDuty(channel int, duty uint8) error {
	if channel < 0 || channel >= logic.FanCount {
		return fmt.Errorf("sim: channel %d out of range", channel)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.duties[channel] = duty
	return nil
}

// Close implements fan.Driver.
func (r *Room) Close() error { return nil }

// SetOccupants changes the number of people in the room.
func (r *Room) SetOccupants(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.occupants = n
}

// CO2 returns the current concentration without advancing time.
func (r *Room) CO2() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.co2
}

// advance integrates the model up to now. Caller holds mu.
func (r *Room) advance() {
	now := r.now()
	elapsed := now.Sub(r.updatedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	r.updatedAt = now

	vent := LeakRatePerS
	for _, d := range r.duties {
		vent += VentRatePerS * float64(d) / 255
	}

	// Integrate in one-second steps so large gaps stay stable.
	for elapsed > 0 {
		dt := math.Min(elapsed, 1)
		r.co2 += (float64(r.occupants)*OccupantPPMPerS - vent*(r.co2-OutdoorCO2)) * dt
		r.tempC += (vent*(OutdoorTempC-r.tempC) + HeatingRatePerS*(IndoorTempC-r.tempC)) * dt
		elapsed -= dt
	}
}
