// Package status provides a thread-safe diagnostics tracker for the
// vent-controller daemon. It is read by the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Profile       string
	Fans          int
	Simulate      bool
	Broker        string
	HTTPAddr      string
	Report        time.Duration
	Preheat       time.Duration
	Stabilize     time.Duration
	LowThreshold  float64
	HighThreshold float64
}

// Counts are running totals since start.
type Counts struct {
	Transitions    int
	Alerts         int
	Reinits        int
	ActuatorErrors int
	SkippedCycles  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Lifecycle      logic.Lifecycle
	Mode           logic.Mode
	Reading        logic.Snapshot
	HasReading     bool
	SensorFailures int
	Intents        logic.Intents
	Duties         []uint8
	Night          bool
	Weather        logic.Weather
	LastAlert      string
	LastAlertAt    time.Time
	Counts         Counts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      logic.ModeSafeStop,
			Intents:   logic.AllOff(),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetLifecycle records a lifecycle transition.
func (t *Tracker) SetLifecycle(l logic.Lifecycle) {
	t.mu.Lock()
	if l != t.snap.Lifecycle {
		t.snap.Counts.Transitions++
	}
	t.snap.Lifecycle = l
	t.mu.Unlock()
}

// SetMode sets the operating mode.
func (t *Tracker) SetMode(m logic.Mode) {
	t.mu.Lock()
	t.snap.Mode = m
	t.mu.Unlock()
}

// SetReading records the latest acquisition result.
func (t *Tracker) SetReading(s logic.Snapshot, valid bool, failures int) {
	t.mu.Lock()
	if valid {
		t.snap.Reading = s
		t.snap.HasReading = true
	}
	t.snap.SensorFailures = failures
	t.mu.Unlock()
}

// SetFans records the applied intents and the resulting duties.
func (t *Tracker) SetFans(intents logic.Intents, duties []uint8, night bool) {
	d := make([]uint8, len(duties))
	copy(d, duties)

	t.mu.Lock()
	t.snap.Intents = intents
	t.snap.Duties = d
	t.snap.Night = night
	t.mu.Unlock()
}

// SetWeather records the cached outdoor observation.
func (t *Tracker) SetWeather(w logic.Weather) {
	t.mu.Lock()
	t.snap.Weather = w
	t.mu.Unlock()
}

// RecordAlert stores the most recent alert.
func (t *Tracker) RecordAlert(msg string, at time.Time) {
	t.mu.Lock()
	t.snap.LastAlert = msg
	t.snap.LastAlertAt = at
	t.snap.Counts.Alerts++
	t.mu.Unlock()
}

// CountReinit counts a sensor reinitialization attempt.
func (t *Tracker) CountReinit() {
	t.mu.Lock()
	t.snap.Counts.Reinits++
	t.mu.Unlock()
}

// CountActuatorError counts a failed fan write.
func (t *Tracker) CountActuatorError() {
	t.mu.Lock()
	t.snap.Counts.ActuatorErrors++
	t.mu.Unlock()
}

// CountSkipped counts a cycle skipped on lock contention.
func (t *Tracker) CountSkipped() {
	t.mu.Lock()
	t.snap.Counts.SkippedCycles++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Duties = append([]uint8(nil), t.snap.Duties...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
