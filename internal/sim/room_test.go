package sim

import (
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *manualClock {
	return &manualClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRoomCO2RisesWithOccupants(t *testing.T) {
	clk := newClock()
	r := NewRoom(600, 4, clk.now)

	clk.advance(10 * time.Minute)
	got, err := r.ReadPPM()
	if err != nil {
		t.Fatalf("ReadPPM: %v", err)
	}
	if got <= 600 {
		t.Errorf("expected CO2 to rise with occupants, got %v", got)
	}
}

func TestRoomFansPullTowardOutdoor(t *testing.T) {
	clk := newClock()
	r := NewRoom(2000, 0, clk.now)
	for ch := 0; ch < 3; ch++ {
		if err := r.SetDuty(ch, 255); err != nil {
			t.Fatalf("SetDuty: %v", err)
		}
	}

	clk.advance(30 * time.Minute)
	got, _ := r.ReadPPM()
	if got >= 1000 {
		t.Errorf("expected ventilation to lower CO2 well below 1000, got %v", got)
	}
	if got < OutdoorCO2 {
		t.Errorf("CO2 undershot outdoor level: %v", got)
	}
}

func TestRoomClimate(t *testing.T) {
	clk := newClock()
	r := NewRoom(600, 2, clk.now)
	temp, hum, err := r.ReadClimate()
	if err != nil {
		t.Fatalf("ReadClimate: %v", err)
	}
	if temp != IndoorTempC {
		t.Errorf("temp: got %v, want %v", temp, IndoorTempC)
	}
	if hum != BaseHumidity+4 {
		t.Errorf("humidity: got %v, want %v", hum, BaseHumidity+4)
	}
}

func TestRoomSetDutyRange(t *testing.T) {
	r := NewRoom(600, 0, newClock().now)
	if err := r.SetDuty(3, 100); err == nil {
		t.Error("expected error for out-of-range channel")
	}
	if err := r.SetDuty(-1, 100); err == nil {
		t.Error("expected error for negative channel")
	}
}
