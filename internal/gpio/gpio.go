// Package gpio drives the fan power-enable lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Lines sets the logical state of a bank of output lines.
type Lines interface {
	// Set drives line index high (on) or low (off).
	Set(index int, on bool) error

	// Close releases GPIO resources, leaving every line off.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// DefaultEnablePins are the BCM pins switching fan power, indexed by fan id.
var DefaultEnablePins = []int{17, 27, 22}
