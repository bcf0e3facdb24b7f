// Package display renders the controller state to a small character display.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/sensor"
)

// Width and Height of the character grid (128x64 OLED with a 6x8 font).
const (
	Width  = 21
	Height = 8
)

// HistoryLen is the number of CO2 points kept for the trend line.
const HistoryLen = Width

// Frame is what the main page shows.
type Frame struct {
	Snapshot  logic.Snapshot
	Intents   logic.Intents
	Fans      int
	Mode      logic.Mode
	Lifecycle logic.Lifecycle
}

// Sink shows the main page or an alert.
type Sink interface {
	ShowMain(f Frame) error
	ShowAlert(msg string) error
}

// TextDisplay renders frames as fixed-size text blocks. Writes go through
// the shared bus lock because the panel sits on the sensor bus.
type TextDisplay struct {
	out io.Writer
	bus *sensor.Bus

	mu      sync.Mutex
	history []float64
}

// NewTextDisplay creates a display writing to out. bus may be nil.
func NewTextDisplay(out io.Writer, bus *sensor.Bus) *TextDisplay {
	if bus == nil {
		bus = &sensor.Bus{}
	}
	return &TextDisplay{out: out, bus: bus}
}

// ShowMain renders the main page and records the CO2 trend.
func (d *TextDisplay) ShowMain(f Frame) error {
	d.mu.Lock()
	if f.Snapshot.Valid {
		d.history = append(d.history, f.Snapshot.CO2)
		if len(d.history) > HistoryLen {
			d.history = d.history[len(d.history)-HistoryLen:]
		}
	}
	lines := MainLines(f, d.history)
	d.mu.Unlock()

	return d.write(lines)
}

// ShowAlert renders msg full-screen.
func (d *TextDisplay) ShowAlert(msg string) error {
	return d.write(AlertLines(msg))
}

func (d *TextDisplay) write(lines []string) error {
	frame := strings.Join(lines, "\n") + "\n\n"
	return d.bus.Do(func() error {
		_, err := io.WriteString(d.out, frame)
		return err
	})
}

// MainLines lays out the main page.
func MainLines(f Frame, history []float64) []string {
	lines := make([]string, 0, Height)
	lines = append(lines, fit(fmt.Sprintf("%-9s %s", f.Mode, f.Lifecycle)))

	if f.Snapshot.Valid {
		co2 := fmt.Sprintf("CO2 %4.0f ppm", f.Snapshot.CO2)
		if f.Snapshot.Degraded {
			co2 += " (c)"
		}
		lines = append(lines, fit(co2))
		lines = append(lines, fit(fmt.Sprintf("T %4.1fC  H %3.0f%%", f.Snapshot.Temperature, f.Snapshot.Humidity)))
	} else {
		lines = append(lines, fit("CO2 ---- ppm"), fit("T ---   H ---"))
	}

	fans := f.Fans
	if fans <= 0 || fans > logic.FanCount {
		fans = 1
	}
	intents := f.Intents.Normalize()
	for i := 0; i < fans; i++ {
		lines = append(lines, fit(fmt.Sprintf("Fan %d  %s", i, intents[i])))
	}

	for len(lines) < Height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, Sparkline(history))
	return lines
}

// AlertLines lays out an alert page with msg word-wrapped.
func AlertLines(msg string) []string {
	lines := []string{"!! ALERT !!", ""}
	line := ""
	for _, word := range strings.Fields(msg) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= Width:
			line += " " + word
		default:
			lines = append(lines, fit(line))
			line = word
		}
	}
	if line != "" {
		lines = append(lines, fit(line))
	}
	if len(lines) > Height {
		lines = lines[:Height]
	}
	return lines
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders CO2 points on a 400..2000 ppm scale.
func Sparkline(points []float64) string {
	const lo, hi = 400.0, 2000.0
	var b strings.Builder
	for _, p := range points {
		n := int((p - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		if n < 0 {
			n = 0
		}
		if n >= len(sparkLevels) {
			n = len(sparkLevels) - 1
		}
		b.WriteRune(sparkLevels[n])
	}
	return b.String()
}

func fit(s string) string {
	if len(s) > Width {
		return s[:Width]
	}
	return s
}
