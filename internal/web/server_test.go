package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/status"
)

type stubEvents struct {
	events    []eventlog.Event
	err       error
	lastLimit int
}

func (s *stubEvents) List(_ context.Context, limit int) ([]eventlog.Event, error) {
	s.lastLimit = limit
	return s.events, s.err
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Profile:       "remote",
		Fans:          3,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":8080",
		Report:        30 * time.Second,
		LowThreshold:  1000,
		HighThreshold: 1200,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.SetLifecycle(logic.LifecycleRunning)
	tr.SetMode(logic.ModeRemote)
	tr.SetFans(logic.Intents{logic.IntentHigh, logic.IntentLow, logic.IntentOff}, []uint8{255, 180, 0}, false)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Lifecycle != "RUNNING" {
		t.Errorf("Lifecycle: got %q, want RUNNING", sj.Status.Lifecycle)
	}
	if sj.Status.Mode != "REMOTE" {
		t.Errorf("Mode: got %q, want REMOTE", sj.Status.Mode)
	}
	if len(sj.Status.Fans) != 3 || sj.Status.Fans[0].Duty != 255 || sj.Status.Fans[1].Intent != "LOW" {
		t.Errorf("Fans: got %+v", sj.Status.Fans)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
}

func TestJSONBeforeFirstDecision(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	sj := getStatus(t, ts.URL)

	if sj.Status.Lifecycle != "INIT" {
		t.Errorf("Lifecycle: got %q, want INIT", sj.Status.Lifecycle)
	}
	if sj.Status.Mode != "SAFE_STOP" {
		t.Errorf("Mode: got %q, want SAFE_STOP", sj.Status.Mode)
	}
	if sj.Status.Sensor.Valid {
		t.Error("expected no valid reading before the first cycle")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts.URL)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.SetReading(logic.Snapshot{CO2: 1234, Temperature: 21.5, Humidity: 40, Valid: true}, true, 0)
	tr.RecordAlert("CO2 high: 1234 ppm", time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"1234 ppm", "CO2 high", "fan-2"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	for _, path := range []string{"/nonexistent", "/events", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "vent_up 1\n")
	})
	ts, _ := newTestServer(t, Options{Metrics: metrics})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "vent_up 1") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestEventsEndpoint(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := &stubEvents{events: []eventlog.Event{
		{ID: "b", OccurredAt: at.Add(time.Minute), Kind: eventlog.KindAlert, Message: "sensor fault"},
		{ID: "a", OccurredAt: at, Kind: eventlog.KindLifecycle, Message: "RUNNING"},
	}}
	ts, _ := newTestServer(t, Options{Events: ev})

	resp, err := http.Get(ts.URL + "/events?limit=10")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	var got EventsJSON
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.lastLimit != 10 {
		t.Errorf("limit: got %d, want 10", ev.lastLimit)
	}
	if len(got.Events) != 2 || got.Events[0].ID != "b" || got.Events[0].Kind != eventlog.KindAlert {
		t.Errorf("events: got %+v", got.Events)
	}
}

func TestEventsEndpointErrors(t *testing.T) {
	ev := &stubEvents{}
	ts, _ := newTestServer(t, Options{Events: ev})

	resp, err := http.Get(ts.URL + "/events?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", resp.StatusCode)
	}

	ev.err = errors.New("disk full")
	resp, err = http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("store error: got %d, want 500", resp.StatusCode)
	}
	if ev.lastLimit != eventlog.DefaultListLimit {
		t.Errorf("default limit: got %d", ev.lastLimit)
	}
}

func TestEventsEmptyListIsArray(t *testing.T) {
	ts, _ := newTestServer(t, Options{Events: &stubEvents{}})

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"events":[]`) {
		t.Errorf("body: %s", body)
	}
}

func TestLiveFeed(t *testing.T) {
	ts, tr := newTestServer(t, Options{LiveInterval: 20 * time.Millisecond})
	tr.SetLifecycle(logic.LifecyclePreheating)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() status.StatusJSON {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var sj status.StatusJSON
		if err := json.Unmarshal(data, &sj); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return sj
	}

	if got := read().Status.Lifecycle; got != "PREHEATING" {
		t.Errorf("initial: got %q, want PREHEATING", got)
	}

	tr.SetLifecycle(logic.LifecycleRunning)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if read().Status.Lifecycle == "RUNNING" {
			return
		}
	}
	t.Error("live feed never reported RUNNING")
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, Options{})

	sj1 := getStatus(t, ts.URL)
	if sj1.Status.MQTT.Connected {
		t.Error("expected MQTT disconnected initially")
	}

	tr.SetLifecycle(logic.LifecycleError)
	tr.SetMode(logic.ModeSafeStop)
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts.URL)
	if sj2.Status.Lifecycle != "ERROR" {
		t.Errorf("Lifecycle: got %q, want ERROR", sj2.Status.Lifecycle)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
	if sj2.Status.Counts.Transitions != 1 {
		t.Errorf("Transitions: got %d, want 1", sj2.Status.Counts.Transitions)
	}
}
