package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Lifecycle     string       `json:"lifecycle"`
	Mode          string       `json:"mode"`
	Sensor        SensorJSON   `json:"sensor"`
	Fans          []FanJSON    `json:"fans"`
	Night         bool         `json:"night"`
	Weather       *WeatherJSON `json:"weather,omitempty"`
	LastAlert     *AlertJSON   `json:"last_alert,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports the last published reading.
type SensorJSON struct {
	Valid       bool    `json:"valid"`
	Degraded    bool    `json:"degraded"`
	CO2         float64 `json:"co2"`
	Temperature float64 `json:"temp"`
	Humidity    float64 `json:"humi"`
	CapturedAt  string  `json:"captured_at,omitempty"`
	Failures    int     `json:"consecutive_failures"`
}

// FanJSON reports one fan channel.
type FanJSON struct {
	ID     int    `json:"id"`
	Intent string `json:"intent"`
	Duty   uint8  `json:"duty"`
}

// WeatherJSON reports the cached outdoor observation.
type WeatherJSON struct {
	PM25        float64 `json:"pm25"`
	OutdoorTemp float64 `json:"outdoor_temp"`
	WindSpeed   float64 `json:"wind_speed"`
	CapturedAt  string  `json:"captured_at"`
}

// AlertJSON reports the most recent alert.
type AlertJSON struct {
	Message string `json:"message"`
	At      string `json:"at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Transitions    int `json:"transitions"`
	Alerts         int `json:"alerts"`
	Reinits        int `json:"reinits"`
	ActuatorErrors int `json:"actuator_errors"`
	SkippedCycles  int `json:"skipped_cycles"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Profile        string  `json:"profile"`
	Fans           int     `json:"fans"`
	Simulate       bool    `json:"simulate"`
	Broker         string  `json:"broker"`
	HTTPAddr       string  `json:"http_addr"`
	ReportSeconds  int64   `json:"report_s"`
	PreheatSeconds int64   `json:"preheat_s"`
	StabilizeSecs  int64   `json:"stabilize_s"`
	LowThreshold   float64 `json:"low_threshold"`
	HighThreshold  float64 `json:"high_threshold"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Lifecycle: snap.Lifecycle.String(),
		Mode:      string(snap.Mode),
		Sensor: SensorJSON{
			Valid:       snap.HasReading && snap.Reading.Valid,
			Degraded:    snap.Reading.Degraded,
			CO2:         snap.Reading.CO2,
			Temperature: snap.Reading.Temperature,
			Humidity:    snap.Reading.Humidity,
			Failures:    snap.SensorFailures,
		},
		Night:         snap.Night,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions:    snap.Counts.Transitions,
			Alerts:         snap.Counts.Alerts,
			Reinits:        snap.Counts.Reinits,
			ActuatorErrors: snap.Counts.ActuatorErrors,
			SkippedCycles:  snap.Counts.SkippedCycles,
		},
		Config: ConfigJSON{
			Profile:        snap.Config.Profile,
			Fans:           snap.Config.Fans,
			Simulate:       snap.Config.Simulate,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			ReportSeconds:  int64(snap.Config.Report.Seconds()),
			PreheatSeconds: int64(snap.Config.Preheat.Seconds()),
			StabilizeSecs:  int64(snap.Config.Stabilize.Seconds()),
			LowThreshold:   snap.Config.LowThreshold,
			HighThreshold:  snap.Config.HighThreshold,
		},
	}
	if snap.HasReading {
		inner.Sensor.CapturedAt = snap.Reading.CapturedAt.UTC().Format(time.RFC3339)
	}

	fans := snap.Config.Fans
	if fans <= 0 || fans > logic.FanCount {
		fans = logic.FanCount
	}
	intents := snap.Intents.Normalize()
	inner.Fans = make([]FanJSON, fans)
	for i := range inner.Fans {
		inner.Fans[i] = FanJSON{ID: i, Intent: string(intents[i])}
		if i < len(snap.Duties) {
			inner.Fans[i].Duty = snap.Duties[i]
		}
	}

	if snap.Weather.Valid {
		inner.Weather = &WeatherJSON{
			PM25:        snap.Weather.PM25,
			OutdoorTemp: snap.Weather.OutdoorTemp,
			WindSpeed:   snap.Weather.WindSpeed,
			CapturedAt:  snap.Weather.CapturedAt.UTC().Format(time.RFC3339),
		}
	}
	if snap.LastAlert != "" {
		inner.LastAlert = &AlertJSON{
			Message: snap.LastAlert,
			At:      snap.LastAlertAt.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompact returns the single-line JSON status for the live feed.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
	return data
}
