package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/vent-controller/internal/controller"
	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/fan"
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/metrics"
	"github.com/sweeney/vent-controller/internal/mqtt"
	"github.com/sweeney/vent-controller/internal/sensor"
	"github.com/sweeney/vent-controller/internal/sim"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/web"
)

// fastSettings shrinks every period so a full lifecycle runs in well under
// a second of wall time.
func fastSettings(p logic.Profile, fans int) controller.Settings {
	set := controller.DefaultSettings(p, fans)
	set.Lifecycle = logic.LifecycleConfig{
		Preheat:    30 * time.Millisecond,
		Stabilize:  30 * time.Millisecond,
		ErrorDwell: 30 * time.Millisecond,
	}
	set.Acquire = 5 * time.Millisecond
	set.Decide = 5 * time.Millisecond
	set.Supervise = 5 * time.Millisecond
	set.Report = 20 * time.Millisecond
	set.Present = 20 * time.Millisecond
	set.SnapshotMaxAge = time.Second
	set.AlertHold = 10 * time.Millisecond
	set.Night = logic.NightWindow{}
	return set
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// start runs ctrl in the background and returns a stop function that
// cancels it and reports Run's error.
func start(t *testing.T, ctrl *controller.Controller) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	var stopped bool
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(3 * time.Second):
			return errors.New("controller did not stop")
		}
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

// TestIntegrationSimulatedRoom runs the whole controller against the room
// model, from warm-up through local and remote control, and checks that the
// history and status surfaces see the same run.
func TestIntegrationSimulatedRoom(t *testing.T) {
	room := sim.NewRoom(1300, 2, nil)
	health := sensor.NewHealthTracker(room, room, nil, nil)
	actuator, err := fan.NewActuator(room, logic.FanCount)
	if err != nil {
		t.Fatal(err)
	}

	store, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer store.Close()

	link := mqtt.NewFakeClient()
	link.SetConnected(false)
	tracker := status.NewTracker(time.Now(), status.Config{Profile: "remote", Fans: logic.FanCount, Simulate: true})
	collector := metrics.NewCollector()

	ctrl, err := controller.New(fastSettings(logic.ProfileRemote, logic.FanCount), controller.Deps{
		Health:   health,
		Actuator: actuator,
		Link:     link,
		Commands: link,
		Reporter: link,
		Tracker:  tracker,
		Metrics:  collector,
		Events:   store,
		Log:      zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatal(err)
	}
	stop := start(t, ctrl)

	if !ctrl.WaitRunning(context.Background(), 3*time.Second) {
		t.Fatalf("controller did not reach RUNNING, lifecycle %s", ctrl.Lifecycle())
	}

	// Offline: the threshold strategy sees 1300 ppm.
	waitFor(t, "local HIGH", func() bool {
		return ctrl.View().Intents == logic.Uniform(logic.IntentHigh)
	})
	if ctrl.Mode() != logic.ModeLocal {
		t.Errorf("mode = %s, want LOCAL", ctrl.Mode())
	}
	high := fan.DutyFor(logic.IntentHigh, false)
	for i, d := range actuator.Duties() {
		if d != high {
			t.Errorf("fan %d duty = %d, want %d", i, d, high)
		}
	}

	// Online with a command: per-fan intents pass through.
	link.SetConnected(true)
	if err := link.Deliver([]byte(`{"fan_0":"LOW","fan_2":"HIGH"}`)); err != nil {
		t.Fatal(err)
	}
	want := logic.Intents{logic.IntentLow, logic.IntentOff, logic.IntentHigh}
	waitFor(t, "remote intents", func() bool {
		return ctrl.View().Intents == want
	})
	if ctrl.Mode() != logic.ModeRemote {
		t.Errorf("mode = %s, want REMOTE", ctrl.Mode())
	}
	waitFor(t, "status report", func() bool { return link.StatusCount() > 0 })

	srv := httptest.NewServer(web.New("", tracker, web.Options{
		Events:  store,
		Metrics: collector.Handler(),
	}).Handler())
	defer srv.Close()

	var body struct {
		Status struct {
			Lifecycle string `json:"lifecycle"`
			Mode      string `json:"mode"`
		} `json:"status"`
	}
	getJSON(t, srv.URL+"/index.json", &body)
	if body.Status.Lifecycle != "RUNNING" || body.Status.Mode != "REMOTE" {
		t.Errorf("status = %+v", body.Status)
	}

	var history web.EventsJSON
	getJSON(t, srv.URL+"/events", &history)
	kinds := map[eventlog.Kind]bool{}
	for _, e := range history.Events {
		kinds[e.Kind] = true
	}
	for _, k := range []eventlog.Kind{eventlog.KindLifecycle, eventlog.KindFan, eventlog.KindMode} {
		if !kinds[k] {
			t.Errorf("no %s event in history", k)
		}
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}

	if err := stop(); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, d := range actuator.Duties() {
		if d != 0 {
			t.Errorf("fan %d duty after shutdown = %d, want 0", i, d)
		}
	}
}

// TestIntegrationSensorFaultAndRecovery drives the pollutant sensor into a
// sustained failure and back.
func TestIntegrationSensorFaultAndRecovery(t *testing.T) {
	poll := sensor.NewFakePollutant(1100)
	climate := sensor.NewFakeClimate(21, 45)
	driver := fan.NewFakeDriver()
	actuator, err := fan.NewActuator(driver, 2)
	if err != nil {
		t.Fatal(err)
	}
	link := mqtt.NewFakeClient()
	link.SetConnected(false)

	ctrl, err := controller.New(fastSettings(logic.ProfileRemote, 2), controller.Deps{
		Health:   sensor.NewHealthTracker(poll, climate, nil, nil),
		Actuator: actuator,
		Link:     link,
		Commands: link,
		Reporter: link,
		Log:      zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatal(err)
	}
	stop := start(t, ctrl)

	if !ctrl.WaitRunning(context.Background(), 3*time.Second) {
		t.Fatalf("controller did not reach RUNNING, lifecycle %s", ctrl.Lifecycle())
	}
	low := fan.DutyFor(logic.IntentLow, false)
	waitFor(t, "fans LOW", func() bool { return driver.Duty(0) == low && driver.Duty(1) == low })

	poll.Script(sensor.Reading{Err: errors.New("uart timeout")})
	waitFor(t, "ERROR", func() bool { return ctrl.Lifecycle() == logic.LifecycleError })
	waitFor(t, "fans stopped", func() bool { return driver.Duty(0) == 0 && driver.Duty(1) == 0 })
	waitFor(t, "fault alert", func() bool {
		for _, m := range link.AlertMessages() {
			if strings.Contains(m, "Sensor fault") {
				return true
			}
		}
		return false
	})

	// The sensor comes back; dwell, reinit and warm-up follow.
	poll.Script(sensor.Reading{PPM: 1100})
	waitFor(t, "RUNNING again", func() bool { return ctrl.Lifecycle() == logic.LifecycleRunning })
	waitFor(t, "fans LOW again", func() bool { return driver.Duty(0) == low && driver.Duty(1) == low })
	if poll.InitCount() < 2 {
		t.Errorf("pollutant Init calls = %d, want reinit after fault", poll.InitCount())
	}

	if err := stop(); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
