package logic

import "time"

// NightWindow is a local-time window in whole hours. A window whose start is
// after its end wraps midnight (22 -> 8). Equal hours disable night mode.
type NightWindow struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t falls inside the window.
func (w NightWindow) Contains(t time.Time) bool {
	if w.StartHour == w.EndHour {
		return false
	}
	h := t.Hour()
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}
