package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/fan"
	"github.com/sweeney/vent-controller/internal/gpio"
	"github.com/sweeney/vent-controller/internal/sensor"
	"github.com/sweeney/vent-controller/internal/sim"
)

// Simulated room defaults.
const (
	simStartPPM  = 800
	simOccupants = 2
)

// hardware is the set of device collaborators the controller runs against.
type hardware struct {
	pollutant sensor.Pollutant
	climate   sensor.Climate
	bus       *sensor.Bus
	driver    fan.Driver
}

// openHardware builds the device collaborators. With simulate set the room
// model stands in for everything. Otherwise fans are driven through PWM and
// GPIO enable lines; the room model still supplies readings since no
// sensor bus driver is built in, and it follows the real fan duties.
func openHardware(cfg config.Config, log *zap.SugaredLogger) (*hardware, error) {
	room := sim.NewRoom(simStartPPM, simOccupants, nil)
	hw := &hardware{pollutant: room, climate: room, bus: &sensor.Bus{}, driver: room}
	if cfg.Simulate {
		log.Infow("running against simulated room", "start_ppm", simStartPPM, "occupants", simOccupants)
		return hw, nil
	}

	lines, err := gpio.NewRealLines(cfg.Hardware.GPIOChip, cfg.Hardware.EnablePins[:cfg.Fans])
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	pwm, err := fan.NewPWMDriver(cfg.Hardware.PWMChip, cfg.Fans, cfg.Hardware.PeriodNs, lines)
	if err != nil {
		_ = lines.Close()
		return nil, fmt.Errorf("init pwm: %w", err)
	}
	log.Warnw("no sensor bus driver available, readings come from the room model",
		"gpio_chip", cfg.Hardware.GPIOChip, "pwm_chip", cfg.Hardware.PWMChip)
	hw.driver = teeDriver{pwm, room}
	return hw, nil
}

// teeDriver writes every duty to all of its drivers.
type teeDriver []fan.Driver

func (t teeDriver) SetDuty(channel int, duty uint8) error {
	var errs []error
	for _, d := range t {
		if err := d.SetDuty(channel, duty); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeDriver) Close() error {
	var errs []error
	for _, d := range t {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
