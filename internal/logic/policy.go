package logic

import "math"

// ModeInputs are the signals the mode detector looks at.
type ModeInputs struct {
	SensorOK  bool
	Connected bool
	// CacheFresh reports that the weather cache is younger than its
	// staleness threshold. Ignored by the remote profile.
	CacheFresh bool
}

// DetectMode maps the inputs to an operating mode. Sensor health takes
// precedence over connectivity, connectivity over cache freshness.
func DetectMode(p Profile, in ModeInputs) Mode {
	if !in.SensorOK {
		return ModeSafeStop
	}
	if in.Connected {
		if p == ProfileRemote {
			return ModeRemote
		}
		return ModeNormal
	}
	if p == ProfileWeather && in.CacheFresh {
		return ModeDegraded
	}
	return ModeLocal
}

// Params holds the ventilation policy constants.
type Params struct {
	LowThreshold  float64 // ppm
	HighThreshold float64 // ppm

	CO2Baseline float64
	CO2Range    float64
	PM25Range   float64
	WBenefit    float64
	WPM25Cost   float64
	WTempCost   float64
	HighCut     float64
	LowCut      float64
}

// DefaultParams returns the factory policy constants.
func DefaultParams() Params {
	return Params{
		LowThreshold:  1000,
		HighThreshold: 1200,
		CO2Baseline:   400,
		CO2Range:      1600,
		PM25Range:     100,
		WBenefit:      10,
		WPM25Cost:     5,
		WTempCost:     2,
		HighCut:       3.0,
		LowCut:        1.0,
	}
}

// Decide computes the fan intents for one decision cycle.
//
// SAFE_STOP and invalid snapshots always yield all-OFF. LOCAL uses the CO2
// thresholds; REMOTE passes the remote command through; NORMAL and DEGRADED
// use the benefit-cost index over the weather signal.
func Decide(snap Snapshot, mode Mode, sig Signal, p Params) Intents {
	if mode == ModeSafeStop || !snap.Valid {
		return AllOff()
	}

	switch mode {
	case ModeRemote:
		cmd, ok := sig.(RemoteCommand)
		if !ok || !cmd.Received {
			return AllOff()
		}
		return cmd.Intents.Normalize()

	case ModeNormal, ModeDegraded:
		ws, ok := sig.(WeatherSignal)
		if !ok || !ws.Weather.Valid {
			return Uniform(Threshold(snap.CO2, p))
		}
		return Uniform(BenefitCost(snap, ws.Weather, p))
	}

	return Uniform(Threshold(snap.CO2, p))
}

// Threshold is the CO2-only strategy. Both comparisons are strict.
func Threshold(co2 float64, p Params) Intent {
	switch {
	case co2 > p.HighThreshold:
		return IntentHigh
	case co2 > p.LowThreshold:
		return IntentLow
	default:
		return IntentOff
	}
}

// Index computes the benefit-cost index of ventilating now.
func Index(snap Snapshot, w Weather, p Params) float64 {
	iq := (snap.CO2 - p.CO2Baseline) / p.CO2Range
	oq := w.PM25 / p.PM25Range

	benefit := iq * p.WBenefit
	cost := oq*p.WPM25Cost + math.Abs(snap.Temperature-w.OutdoorTemp)*p.WTempCost
	return benefit - cost
}

// BenefitCost is the weather strategy.
func BenefitCost(snap Snapshot, w Weather, p Params) Intent {
	idx := Index(snap, w, p)
	switch {
	case idx > p.HighCut:
		return IntentHigh
	case idx > p.LowCut:
		return IntentLow
	default:
		return IntentOff
	}
}
