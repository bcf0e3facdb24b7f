package fan

import "sync"

// FakeDriver is a test double that records duty writes per channel.
type FakeDriver struct {
	mu sync.Mutex

	// Duties holds the last duty written per channel.
	Duties map[int]uint8

	// Writes counts successful SetDuty calls.
	Writes int

	// FailChannels makes SetDuty fail for the listed channels.
	FailChannels map[int]error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver with no writes recorded.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Duties:       make(map[int]uint8),
		FailChannels: make(map[int]error),
	}
}

// SetDuty records the write or returns the configured failure.
func (f *FakeDriver) SetDuty(channel int, duty uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailChannels[channel]; err != nil {
		return err
	}
	f.Duties[channel] = duty
	f.Writes++
	return nil
}

// Fail makes channel fail with err; nil clears the failure.
func (f *FakeDriver) Fail(channel int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.FailChannels, channel)
		return
	}
	f.FailChannels[channel] = err
}

// Duty returns the last duty written to channel.
func (f *FakeDriver) Duty(channel int) uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Duties[channel]
}

// WriteCount returns the number of successful writes.
func (f *FakeDriver) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Writes
}

// Close marks the driver closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
