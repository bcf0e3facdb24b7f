// Package logic contains the pure control logic of the ventilation controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// FanCount is the number of fan channels a controller build drives at most.
// Deployments with fewer fans leave the trailing channels unused.
const FanCount = 3

// Intent is the logical speed requested for a fan.
type Intent string

const (
	IntentOff  Intent = "OFF"
	IntentLow  Intent = "LOW"
	IntentHigh Intent = "HIGH"
)

// ParseIntent converts a wire string into an Intent.
// Unknown strings map to OFF and report ok=false.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentOff, IntentLow, IntentHigh:
		return Intent(s), true
	}
	return IntentOff, false
}

// Intents is the per-fan intent vector, indexed by fan id.
type Intents [FanCount]Intent

// AllOff returns a vector with every fan OFF.
func AllOff() Intents {
	return Uniform(IntentOff)
}

// Uniform returns a vector with every fan set to i.
func Uniform(i Intent) Intents {
	var v Intents
	for n := range v {
		v[n] = i
	}
	return v
}

// Normalize replaces empty entries with OFF.
func (v Intents) Normalize() Intents {
	for n := range v {
		if v[n] == "" {
			v[n] = IntentOff
		}
	}
	return v
}

// Mode is the operating mode selected by the mode detector.
type Mode string

const (
	ModeNormal   Mode = "NORMAL"
	ModeRemote   Mode = "REMOTE"
	ModeDegraded Mode = "DEGRADED"
	ModeLocal    Mode = "LOCAL"
	ModeSafeStop Mode = "SAFE_STOP"
)

// Profile selects which external signal a deployment is built around.
// The two profiles are never active together.
type Profile string

const (
	// ProfileRemote drives fans from MQTT remote commands.
	ProfileRemote Profile = "remote"
	// ProfileWeather drives fans from the benefit-cost index over an outdoor weather feed.
	ProfileWeather Profile = "weather"
)

// ParseProfile validates a configured profile name.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileRemote, ProfileWeather:
		return Profile(s), nil
	}
	return "", fmt.Errorf("unknown profile %q (want %q or %q)", s, ProfileRemote, ProfileWeather)
}

// Lifecycle is the system lifecycle state. Values are ordered so that
// callers can gate on "at least RUNNING".
type Lifecycle int

const (
	LifecycleInit Lifecycle = iota
	LifecyclePreheating
	LifecycleStabilizing
	LifecycleRunning
	LifecycleError
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInit:
		return "INIT"
	case LifecyclePreheating:
		return "PREHEATING"
	case LifecycleStabilizing:
		return "STABILIZING"
	case LifecycleRunning:
		return "RUNNING"
	case LifecycleError:
		return "ERROR"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// Snapshot is one acquisition cycle's sensor readings. It is a value type
// and is replaced, never mutated, once published.
type Snapshot struct {
	CO2         float64 // ppm
	Temperature float64 // °C
	Humidity    float64 // %RH
	CapturedAt  time.Time
	Valid       bool
	// Degraded is set when CO2 holds the cached last-good value.
	Degraded bool
}

// Weather is one outdoor observation from the weather feed.
type Weather struct {
	PM25        float64 // µg/m³
	OutdoorTemp float64 // °C
	WindSpeed   float64 // km/h
	CapturedAt  time.Time
	Valid       bool
}

// Signal is the external input to the ventilation policy: either a
// RemoteCommand or a WeatherSignal, depending on the profile.
type Signal interface {
	isSignal()
}

// RemoteCommand carries the latest fan intents received from the remote side.
type RemoteCommand struct {
	Intents Intents
	// Received is false until the first command has arrived.
	Received bool
}

// WeatherSignal carries the latest cached weather observation.
type WeatherSignal struct {
	Weather Weather
}

func (RemoteCommand) isSignal() {}
func (WeatherSignal) isSignal() {}

// Physical plausibility ranges.
const (
	CO2MinValid      = 300.0
	CO2MaxValid      = 5000.0
	TempMinValid     = -10.0
	TempMaxValid     = 50.0
	HumidityMinValid = 0.0
	HumidityMaxValid = 100.0
)

// CO2Plausible reports whether ppm lies within the physical plausibility range.
func CO2Plausible(ppm float64) bool {
	return ppm >= CO2MinValid && ppm <= CO2MaxValid
}

// ClimatePlausible reports whether temperature and humidity are both plausible.
func ClimatePlausible(tempC, humidity float64) bool {
	return tempC >= TempMinValid && tempC <= TempMaxValid &&
		humidity >= HumidityMinValid && humidity <= HumidityMaxValid
}
