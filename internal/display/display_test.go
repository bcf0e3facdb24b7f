package display

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sweeney/vent-controller/internal/logic"
)

var _ Sink = (*TextDisplay)(nil)
var _ Sink = (*FakeSink)(nil)

func TestMainLinesValid(t *testing.T) {
	f := Frame{
		Snapshot:  logic.Snapshot{CO2: 1234, Temperature: 21.5, Humidity: 44, Valid: true},
		Intents:   logic.Intents{logic.IntentHigh, logic.IntentLow, logic.IntentOff},
		Fans:      3,
		Mode:      logic.ModeLocal,
		Lifecycle: logic.LifecycleRunning,
	}
	lines := MainLines(f, nil)

	if len(lines) != Height {
		t.Fatalf("expected %d lines, got %d", Height, len(lines))
	}
	if !strings.HasPrefix(lines[0], "LOCAL") || !strings.Contains(lines[0], "RUNNING") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "CO2 1234 ppm" {
		t.Errorf("co2 line = %q", lines[1])
	}
	if lines[3] != "Fan 0  HIGH" || lines[5] != "Fan 2  OFF" {
		t.Errorf("fan lines = %q", lines[3:6])
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) > Width {
			t.Errorf("line too wide: %q", l)
		}
	}
}

func TestMainLinesInvalidAndDegraded(t *testing.T) {
	lines := MainLines(Frame{Fans: 1, Mode: logic.ModeSafeStop}, nil)
	if lines[1] != "CO2 ---- ppm" {
		t.Errorf("invalid snapshot line = %q", lines[1])
	}

	lines = MainLines(Frame{Fans: 1, Snapshot: logic.Snapshot{CO2: 900, Valid: true, Degraded: true}}, nil)
	if !strings.HasSuffix(lines[1], "(c)") {
		t.Errorf("degraded reading should be marked, got %q", lines[1])
	}
}

func TestAlertLinesWrap(t *testing.T) {
	lines := AlertLines("Sensor fault: fans stopped, recovery pending after dwell")
	if lines[0] != "!! ALERT !!" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) < 4 {
		t.Fatalf("expected wrapped lines, got %q", lines)
	}
	for _, l := range lines {
		if len(l) > Width {
			t.Errorf("line too wide: %q", l)
		}
	}
}

func TestSparklineClamps(t *testing.T) {
	got := Sparkline([]float64{300, 400, 2000, 5000})
	if got != "▁▁██" {
		t.Errorf("Sparkline = %q", got)
	}
}

func TestTextDisplayWritesFramesAndHistory(t *testing.T) {
	var buf bytes.Buffer
	d := NewTextDisplay(&buf, nil)

	for i := 0; i < HistoryLen+5; i++ {
		d.ShowMain(Frame{Fans: 1, Snapshot: logic.Snapshot{CO2: 800, Valid: true}})
	}
	if len(d.history) != HistoryLen {
		t.Errorf("history len = %d, want %d", len(d.history), HistoryLen)
	}

	buf.Reset()
	if err := d.ShowAlert("CO2 high"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "CO2 high") {
		t.Errorf("alert not written: %q", buf.String())
	}
}

func TestFakeSink(t *testing.T) {
	f := &FakeSink{}
	f.ShowMain(Frame{})
	f.ShowAlert("a")
	f.ShowAlert("b")

	frames, alerts := f.Counts()
	if frames != 1 || alerts != 2 {
		t.Errorf("Counts() = %d, %d", frames, alerts)
	}
	if f.LastAlert() != "b" {
		t.Errorf("LastAlert() = %q", f.LastAlert())
	}
}
