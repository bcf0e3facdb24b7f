package sensor

import (
	"errors"
	"sync"
)

// Reading is a single scripted pollutant reading.
type Reading struct {
	PPM float64
	Err error
}

// FakePollutant is a test double that returns scripted readings.
type FakePollutant struct {
	mu sync.Mutex

	// Readings contains scripted values. Each ReadPPM consumes the next one;
	// once exhausted the last reading repeats.
	Readings []Reading
	index    int

	// InitError, if set, is returned by Init.
	InitError error
	// InitCalls counts calls to Init.
	InitCalls int
}

// NewFakePollutant creates a FakePollutant returning the given ppm values.
func NewFakePollutant(ppm ...float64) *FakePollutant {
	f := &FakePollutant{}
	for _, v := range ppm {
		f.Readings = append(f.Readings, Reading{PPM: v})
	}
	return f
}

// Init records the call.
func (f *FakePollutant) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitError
}

// ReadPPM returns the next scripted reading.
func (f *FakePollutant) ReadPPM() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r.PPM, r.Err
}

// Script replaces the remaining readings.
func (f *FakePollutant) Script(readings ...Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Readings = readings
	f.index = 0
}

// FakeClimate is a test double returning a fixed climate reading.
type FakeClimate struct {
	mu sync.Mutex

	Temperature float64
	Humidity    float64

	// ReadError, if set, is returned by ReadClimate.
	ReadError error
	InitError error
	InitCalls int
}

// NewFakeClimate creates a FakeClimate with the given reading.
func NewFakeClimate(tempC, humidity float64) *FakeClimate {
	return &FakeClimate{Temperature: tempC, Humidity: humidity}
}

// Init records the call.
func (f *FakeClimate) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitError
}

// ReadClimate returns the configured reading.
func (f *FakeClimate) ReadClimate() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, 0, f.ReadError
	}
	return f.Temperature, f.Humidity, nil
}

// SetReadError changes the scripted error.
func (f *FakeClimate) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// SetInitError changes the error returned by Init.
func (f *FakePollutant) SetInitError(err error) {
	f.mu.Lock()
	f.InitError = err
	f.mu.Unlock()
}

// InitCount returns the number of Init calls.
func (f *FakePollutant) InitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InitCalls
}
