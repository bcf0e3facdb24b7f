// Package config loads controller configuration from defaults, an optional
// YAML file, VENT_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/vent-controller/internal/logic"
)

// EnvPrefix prefixes every environment override (VENT_MQTT_BROKER, ...).
const EnvPrefix = "VENT"

// Config is the complete controller configuration.
type Config struct {
	Profile  string `mapstructure:"profile"`
	Fans     int    `mapstructure:"fans"`
	Simulate bool   `mapstructure:"simulate"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`

	MQTT     MQTT     `mapstructure:"mqtt"`
	Weather  Weather  `mapstructure:"weather"`
	Kafka    Kafka    `mapstructure:"kafka"`
	EventLog EventLog `mapstructure:"eventlog"`
	Display  Display  `mapstructure:"display"`
	Hardware Hardware `mapstructure:"hardware"`
	Timing   Timing   `mapstructure:"timing"`
	Policy   Policy   `mapstructure:"policy"`
	Night    Night    `mapstructure:"night"`
}

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
}

type Weather struct {
	AirQualityURL string        `mapstructure:"air_quality_url"`
	ForecastURL   string        `mapstructure:"forecast_url"`
	Latitude      float64       `mapstructure:"latitude"`
	Longitude     float64       `mapstructure:"longitude"`
	FetchInterval time.Duration `mapstructure:"fetch_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

// Kafka telemetry is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// EventLog history is disabled when Path is empty.
type EventLog struct {
	Path string `mapstructure:"path"`
}

// Display frames are not rendered when Output is empty. "-" selects stdout;
// anything else is a file or terminal device opened for writing.
type Display struct {
	Output string `mapstructure:"output"`
}

type Hardware struct {
	GPIOChip   string `mapstructure:"gpio_chip"`
	PWMChip    string `mapstructure:"pwm_chip"`
	EnablePins []int  `mapstructure:"enable_pins"`
	PeriodNs   int    `mapstructure:"period_ns"`
}

type Timing struct {
	Preheat        time.Duration `mapstructure:"preheat"`
	Stabilize      time.Duration `mapstructure:"stabilize"`
	ErrorDwell     time.Duration `mapstructure:"error_dwell"`
	Acquire        time.Duration `mapstructure:"acquire"`
	Decide         time.Duration `mapstructure:"decide"`
	Report         time.Duration `mapstructure:"report"`
	Present        time.Duration `mapstructure:"present"`
	Supervise      time.Duration `mapstructure:"supervise"`
	SnapshotMaxAge time.Duration `mapstructure:"snapshot_max_age"`
	AlertHold      time.Duration `mapstructure:"alert_hold"`
	AlertRepeat    time.Duration `mapstructure:"alert_repeat"`
	LockWait       time.Duration `mapstructure:"lock_wait"`
}

type Policy struct {
	LowThreshold   float64 `mapstructure:"low_threshold"`
	HighThreshold  float64 `mapstructure:"high_threshold"`
	AlertThreshold float64 `mapstructure:"alert_threshold"`
	CO2Baseline    float64 `mapstructure:"co2_baseline"`
	CO2Range       float64 `mapstructure:"co2_range"`
	PM25Range      float64 `mapstructure:"pm25_range"`
	WBenefit       float64 `mapstructure:"w_benefit"`
	WPM25Cost      float64 `mapstructure:"w_pm25_cost"`
	WTempCost      float64 `mapstructure:"w_temp_cost"`
	HighCut        float64 `mapstructure:"high_cut"`
	LowCut         float64 `mapstructure:"low_cut"`
}

type Night struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// SetDefaults registers the factory defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("profile", string(logic.ProfileRemote))
	v.SetDefault("fans", logic.FanCount)
	v.SetDefault("simulate", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "vent-controller")

	v.SetDefault("weather.air_quality_url", "https://air-quality-api.open-meteo.com/v1/air-quality")
	v.SetDefault("weather.forecast_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.fetch_interval", 600*time.Second)
	v.SetDefault("weather.stale_after", 1800*time.Second)

	v.SetDefault("kafka.topic", "ventilation.telemetry")

	v.SetDefault("display.output", "")

	v.SetDefault("hardware.gpio_chip", "gpiochip0")
	v.SetDefault("hardware.pwm_chip", "pwmchip0")
	v.SetDefault("hardware.enable_pins", []int{17, 27, 22})
	v.SetDefault("hardware.period_ns", 40000)

	lc := logic.DefaultLifecycleConfig()
	v.SetDefault("timing.preheat", lc.Preheat)
	v.SetDefault("timing.stabilize", lc.Stabilize)
	v.SetDefault("timing.error_dwell", lc.ErrorDwell)
	v.SetDefault("timing.acquire", time.Second)
	v.SetDefault("timing.decide", time.Second)
	v.SetDefault("timing.report", 30*time.Second)
	v.SetDefault("timing.present", 2*time.Second)
	v.SetDefault("timing.supervise", time.Second)
	v.SetDefault("timing.snapshot_max_age", 5*time.Second)
	v.SetDefault("timing.alert_hold", 4*time.Second)
	v.SetDefault("timing.alert_repeat", 60*time.Second)
	v.SetDefault("timing.lock_wait", 100*time.Millisecond)

	p := logic.DefaultParams()
	v.SetDefault("policy.low_threshold", p.LowThreshold)
	v.SetDefault("policy.high_threshold", p.HighThreshold)
	v.SetDefault("policy.alert_threshold", 1500.0)
	v.SetDefault("policy.co2_baseline", p.CO2Baseline)
	v.SetDefault("policy.co2_range", p.CO2Range)
	v.SetDefault("policy.pm25_range", p.PM25Range)
	v.SetDefault("policy.w_benefit", p.WBenefit)
	v.SetDefault("policy.w_pm25_cost", p.WPM25Cost)
	v.SetDefault("policy.w_temp_cost", p.WTempCost)
	v.SetDefault("policy.high_cut", p.HighCut)
	v.SetDefault("policy.low_cut", p.LowCut)

	v.SetDefault("night.start_hour", 22)
	v.SetDefault("night.end_hour", 8)
}

// Load reads configuration into a Config. An explicit path must exist;
// otherwise ./configs/vent.yaml and /etc/vent-controller/vent.yaml are
// tried and a missing file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("vent")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath("/etc/vent-controller")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the controller cannot run with.
func (c Config) Validate() error {
	var errs []error

	if _, err := logic.ParseProfile(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.Fans < 1 || c.Fans > logic.FanCount {
		errs = append(errs, fmt.Errorf("fans must be 1..%d, got %d", logic.FanCount, c.Fans))
	}
	if c.Policy.LowThreshold >= c.Policy.HighThreshold {
		errs = append(errs, fmt.Errorf("policy.low_threshold (%v) must be below policy.high_threshold (%v)",
			c.Policy.LowThreshold, c.Policy.HighThreshold))
	}
	if c.Policy.CO2Range <= 0 || c.Policy.PM25Range <= 0 {
		errs = append(errs, errors.New("policy ranges must be positive"))
	}
	if c.Night.StartHour < 0 || c.Night.StartHour > 23 || c.Night.EndHour < 0 || c.Night.EndHour > 23 {
		errs = append(errs, fmt.Errorf("night hours must be 0..23, got %d-%d", c.Night.StartHour, c.Night.EndHour))
	}
	if !c.Simulate && len(c.Hardware.EnablePins) < c.Fans {
		errs = append(errs, fmt.Errorf("hardware.enable_pins has %d pins for %d fans", len(c.Hardware.EnablePins), c.Fans))
	}

	for name, d := range map[string]time.Duration{
		"timing.acquire":          c.Timing.Acquire,
		"timing.decide":           c.Timing.Decide,
		"timing.report":           c.Timing.Report,
		"timing.present":          c.Timing.Present,
		"timing.supervise":        c.Timing.Supervise,
		"timing.snapshot_max_age": c.Timing.SnapshotMaxAge,
		"timing.error_dwell":      c.Timing.ErrorDwell,
		"weather.fetch_interval":  c.Weather.FetchInterval,
		"weather.stale_after":     c.Weather.StaleAfter,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}

	return errors.Join(errs...)
}

// ProfileValue returns the parsed profile. Call after Validate.
func (c Config) ProfileValue() logic.Profile {
	p, _ := logic.ParseProfile(c.Profile)
	return p
}

// LifecycleConfig returns the supervisor timings.
func (c Config) LifecycleConfig() logic.LifecycleConfig {
	return logic.LifecycleConfig{
		Preheat:    c.Timing.Preheat,
		Stabilize:  c.Timing.Stabilize,
		ErrorDwell: c.Timing.ErrorDwell,
	}
}

// Params returns the policy constants.
func (c Config) Params() logic.Params {
	return logic.Params{
		LowThreshold:  c.Policy.LowThreshold,
		HighThreshold: c.Policy.HighThreshold,
		CO2Baseline:   c.Policy.CO2Baseline,
		CO2Range:      c.Policy.CO2Range,
		PM25Range:     c.Policy.PM25Range,
		WBenefit:      c.Policy.WBenefit,
		WPM25Cost:     c.Policy.WPM25Cost,
		WTempCost:     c.Policy.WTempCost,
		HighCut:       c.Policy.HighCut,
		LowCut:        c.Policy.LowCut,
	}
}

// NightWindow returns the configured night window.
func (c Config) NightWindow() logic.NightWindow {
	return logic.NightWindow{StartHour: c.Night.StartHour, EndHour: c.Night.EndHour}
}
