// Command vent-controller runs the ventilation control loop and serves its
// status over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/controller"
	"github.com/sweeney/vent-controller/internal/display"
	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/fan"
	"github.com/sweeney/vent-controller/internal/logger"
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/metrics"
	"github.com/sweeney/vent-controller/internal/mqtt"
	"github.com/sweeney/vent-controller/internal/report"
	"github.com/sweeney/vent-controller/internal/sensor"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/telemetry"
	"github.com/sweeney/vent-controller/internal/weather"
	"github.com/sweeney/vent-controller/internal/web"
)

// eventRetention is how long event history is kept.
const eventRetention = 30 * 24 * time.Hour

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgPath string

	root := &cobra.Command{
		Use:   "vent-controller",
		Short: "Ventilation controller",
		Long: `vent-controller reads CO2, temperature and humidity, decides fan speeds
from the configured profile and reports status over MQTT and HTTP.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger.New(cfg.LogLevel))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default ./configs/vent.yaml or /etc/vent-controller/vent.yaml)")
	pf.String("profile", string(logic.ProfileRemote), "decision profile (remote|weather)")
	pf.Int("fans", logic.FanCount, "number of fans fitted (1-3)")
	pf.Bool("simulate", false, "run against a simulated room")
	pf.String("log-level", logger.InfoLevel, "log level (debug|info|warn|error)")
	pf.String("http", ":8080", "HTTP status address (empty to disable)")
	pf.String("broker", "tcp://localhost:1883", "MQTT broker address")
	pf.String("eventlog", "", "SQLite event history path (empty to disable)")
	pf.String("display", "", `display output: "-" for stdout, a file or tty path, empty to disable`)

	for key, flag := range map[string]string{
		"profile":        "profile",
		"fans":           "fans",
		"simulate":       "simulate",
		"log_level":      "log-level",
		"http_addr":      "http",
		"mqtt.broker":    "broker",
		"eventlog.path":  "eventlog",
		"display.output": "display",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(newReadCmd(v, &cfgPath))
	return root
}

func newReadCmd(v *viper.Viper, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read the sensors once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgPath)
			if err != nil {
				return err
			}
			hw, err := openHardware(cfg, zap.NewNop().Sugar())
			if err != nil {
				return err
			}
			defer hw.driver.Close()

			health := sensor.NewHealthTracker(hw.pollutant, hw.climate, hw.bus, nil)
			if err := health.Init(); err != nil {
				return fmt.Errorf("init sensors: %w", err)
			}
			snap, healthy := health.ReadCycle()
			return printReading(cmd.OutOrStdout(), snap, healthy)
		},
	}
}

func printReading(w io.Writer, snap logic.Snapshot, healthy bool) error {
	if !snap.Valid {
		_, err := fmt.Fprintf(w, "reading invalid (healthy=%v)\n", healthy)
		return err
	}
	_, err := fmt.Fprintf(w, "CO2: %.0f ppm, Temp: %.1f C, Humidity: %.0f %%\n", snap.CO2, snap.Temperature, snap.Humidity)
	return err
}

func run(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) error {
	defer func() { _ = log.Sync() }()

	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.driver.Close(); err != nil {
			log.Warnw("fan driver close failed", "error", err)
		}
	}()

	actuator, err := fan.NewActuator(hw.driver, cfg.Fans)
	if err != nil {
		return fmt.Errorf("init fans: %w", err)
	}
	health := sensor.NewHealthTracker(hw.pollutant, hw.climate, hw.bus, nil)

	set := settingsFrom(cfg)

	tracker := status.NewTracker(time.Now(), status.Config{
		Profile:       cfg.Profile,
		Fans:          cfg.Fans,
		Simulate:      cfg.Simulate,
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		Report:        set.Report,
		Preheat:       set.Lifecycle.Preheat,
		Stabilize:     set.Lifecycle.Stabilize,
		LowThreshold:  set.Params.LowThreshold,
		HighThreshold: set.Params.HighThreshold,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	collector := metrics.NewCollector()

	client, err := mqtt.NewClient(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Fans:     cfg.Fans,
	}, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	sinks := report.Fanout{client}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := telemetry.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.MQTT.ClientID, cfg.Fans)
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
		log.Infow("kafka telemetry enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	deps := controller.Deps{
		Health:   health,
		Actuator: actuator,
		Link:     client,
		Reporter: sinks,
		Tracker:  tracker,
		Metrics:  collector,
		Log:      log,
	}
	out, closeOut, err := openDisplayOutput(cfg.Display.Output)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	defer closeOut()
	if out != nil {
		deps.Display = display.NewTextDisplay(out, hw.bus)
		log.Infow("display enabled", "output", cfg.Display.Output)
	}

	switch set.Profile {
	case logic.ProfileRemote:
		deps.Commands = client
	case logic.ProfileWeather:
		deps.Weather = weather.NewClient(weather.Config{
			AirQualityURL: cfg.Weather.AirQualityURL,
			ForecastURL:   cfg.Weather.ForecastURL,
			Latitude:      cfg.Weather.Latitude,
			Longitude:     cfg.Weather.Longitude,
			StaleAfter:    cfg.Weather.StaleAfter,
		}, nil, nil)
	}

	var store *eventlog.Store
	if cfg.EventLog.Path != "" {
		store, err = eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			return fmt.Errorf("init event log: %w", err)
		}
		defer store.Close()
		deps.Events = store
		pruneEvents(ctx, store, log)
	}

	ctrl, err := controller.New(set, deps)
	if err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		opts := web.Options{Metrics: collector.Handler(), Log: log.Named("web")}
		if store != nil {
			opts.Events = store
		}
		srv := web.New(cfg.HTTPAddr, tracker, opts)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"profile", cfg.Profile,
		"fans", cfg.Fans,
		"simulate", cfg.Simulate,
		"broker", cfg.MQTT.Broker,
	)
	err = ctrl.Run(ctx)
	log.Infow("shutting down", "lifecycle", ctrl.Lifecycle())
	return err
}

// settingsFrom maps configuration onto controller settings.
func settingsFrom(cfg config.Config) controller.Settings {
	set := controller.DefaultSettings(cfg.ProfileValue(), cfg.Fans)
	set.Lifecycle = cfg.LifecycleConfig()
	set.Params = cfg.Params()
	set.Night = cfg.NightWindow()
	set.AlertThreshold = cfg.Policy.AlertThreshold

	set.Acquire = cfg.Timing.Acquire
	set.Decide = cfg.Timing.Decide
	set.Report = cfg.Timing.Report
	set.Present = cfg.Timing.Present
	set.Supervise = cfg.Timing.Supervise
	set.SnapshotMaxAge = cfg.Timing.SnapshotMaxAge
	set.WeatherFetch = cfg.Weather.FetchInterval
	if cfg.Timing.AlertHold > 0 {
		set.AlertHold = cfg.Timing.AlertHold
	}
	if cfg.Timing.AlertRepeat > 0 {
		set.AlertRepeat = cfg.Timing.AlertRepeat
	}
	if cfg.Timing.LockWait > 0 {
		set.LockWait = cfg.Timing.LockWait
	}
	return set
}

// openDisplayOutput resolves the display output setting. It returns a nil
// writer when the display is disabled.
func openDisplayOutput(path string) (io.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// pruneEvents drops history older than eventRetention.
func pruneEvents(ctx context.Context, store *eventlog.Store, log *zap.SugaredLogger) {
	n, err := store.Prune(ctx, time.Now().Add(-eventRetention))
	if err != nil {
		log.Warnw("event log prune failed", "error", err)
		return
	}
	if n > 0 {
		log.Infow("event log pruned", "removed", n)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
