//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives output lines on the Linux GPIO character device.
type RealLines struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealLines requests each pin as an output, initially low.
func NewRealLines(chipName string, pins []int) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealLines{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request enable pin %d: %w", pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Set drives line index high or low.
func (r *RealLines) Set(index int, on bool) error {
	if index < 0 || index >= len(r.lines) {
		return fmt.Errorf("gpio: line %d not configured", index)
	}
	v := 0
	if on {
		v = 1
	}
	if err := r.lines[index].SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", index, err)
	}
	return nil
}

// Close drives every line low, then reconfigures it as input with pull-down
// (matching Pi boot defaults) before releasing it.
func (r *RealLines) Close() error {
	var errs []error

	for i, line := range r.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear line %d: %w", i, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", i, err))
		}
	}
	r.lines = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	return errors.Join(errs...)
}
