package fan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sweeney/vent-controller/internal/gpio"
)

// DefaultPeriodNs is a 25 kHz PWM period, the 4-wire fan standard.
const DefaultPeriodNs = 40000

// PWMDriver drives fans through the Linux sysfs PWM interface, with a GPIO
// line per fan switching its power.
type PWMDriver struct {
	root     string // e.g. /sys/class/pwm/pwmchip0
	periodNs int
	enable   gpio.Lines
}

// NewPWMDriver exports and enables channels PWM outputs on chip.
func NewPWMDriver(chip string, channels, periodNs int, enable gpio.Lines) (*PWMDriver, error) {
	if periodNs <= 0 {
		periodNs = DefaultPeriodNs
	}
	d := &PWMDriver{
		root:     filepath.Join("/sys/class/pwm", chip),
		periodNs: periodNs,
		enable:   enable,
	}
	for ch := 0; ch < channels; ch++ {
		if err := d.setup(ch); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *PWMDriver) setup(ch int) error {
	dir := d.channelDir(ch)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeSysfs(filepath.Join(d.root, "export"), strconv.Itoa(ch)); err != nil {
			return fmt.Errorf("export pwm %d: %w", ch, err)
		}
	}
	if err := writeSysfs(filepath.Join(dir, "period"), strconv.Itoa(d.periodNs)); err != nil {
		return fmt.Errorf("pwm %d period: %w", ch, err)
	}
	if err := writeSysfs(filepath.Join(dir, "duty_cycle"), "0"); err != nil {
		return fmt.Errorf("pwm %d duty: %w", ch, err)
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
		return fmt.Errorf("pwm %d enable: %w", ch, err)
	}
	return nil
}

// SetDuty scales duty (0..255) to the PWM period and switches the fan's
// power line on for any nonzero duty.
func (d *PWMDriver) SetDuty(channel int, duty uint8) error {
	ns := d.periodNs * int(duty) / 255
	if err := writeSysfs(filepath.Join(d.channelDir(channel), "duty_cycle"), strconv.Itoa(ns)); err != nil {
		return err
	}
	if d.enable != nil {
		return d.enable.Set(channel, duty > 0)
	}
	return nil
}

// Close stops every fan and releases the enable lines.
func (d *PWMDriver) Close() error {
	var errs []error
	entries, _ := filepath.Glob(filepath.Join(d.root, "pwm[0-9]*"))
	for _, dir := range entries {
		if err := writeSysfs(filepath.Join(dir, "duty_cycle"), "0"); err != nil {
			errs = append(errs, err)
		}
	}
	if d.enable != nil {
		if err := d.enable.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *PWMDriver) channelDir(ch int) string {
	return filepath.Join(d.root, "pwm"+strconv.Itoa(ch))
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
