//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, pins []int) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (r *RealLines) Set(index int, on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
