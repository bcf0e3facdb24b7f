package display

import "sync"

// FakeSink records rendered pages.
type FakeSink struct {
	mu sync.Mutex

	// Frames holds every main page shown.
	Frames []Frame

	// Alerts holds every alert shown.
	Alerts []string

	// Err, if set, is returned by both methods.
	Err error
}

// ShowMain records f.
func (f *FakeSink) ShowMain(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Frames = append(f.Frames, fr)
	return nil
}

// ShowAlert records msg.
func (f *FakeSink) ShowAlert(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Alerts = append(f.Alerts, msg)
	return nil
}

// Counts returns the number of main pages and alerts shown.
func (f *FakeSink) Counts() (frames, alerts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Frames), len(f.Alerts)
}

// LastAlert returns the most recent alert, or "".
func (f *FakeSink) LastAlert() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Alerts) == 0 {
		return ""
	}
	return f.Alerts[len(f.Alerts)-1]
}
