package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/b3nn0/baro/sensors"
	"github.com/b3nn0/baro/sensors/bosch"
	logger "github.com/d2r2/go-logger"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
)

// probe brings up the first generation whose chip id matches.
func probe(t bosch.Transport, gens []bosch.Generation, dc bosch.Config) (*bosch.Device, error) {
	var tried []string
	for _, g := range gens {
		d, err := bosch.New(t, g, dc)
		if err == nil {
			lg.Infof("found %s, chip id %#02x", g, d.ChipID())
			return d, nil
		}
		if !errors.Is(err, bosch.ErrUnexpectedChipID) {
			return nil, err
		}
		lg.Debugf("%v", err)
		tried = append(tried, g.String())
	}
	return nil, fmt.Errorf("no sensor found, tried %v: %w", tried, bosch.ErrUnexpectedChipID)
}

// openDevice opens the configured bus and probes for a sensor. The returned
// closer, if any, must be closed after the Device.
func openDevice(cfg Config) (*bosch.Device, io.Closer, error) {
	gens, err := cfg.Generations()
	if err != nil {
		return nil, nil, err
	}
	dc, err := cfg.DeviceConfig()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Driver {
	case "", "embd":
		bus := bosch.NewBus(embd.NewI2CBus(byte(cfg.Bus)))
		d, err := probe(bus.Transport(cfg.Address), gens, dc)
		if err != nil {
			bus.Close()
			return nil, nil, err
		}
		return d, bus, nil
	case "go-i2c":
		// go-i2c logs every transfer at debug level
		logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
		t, err := bosch.OpenI2C(cfg.Address, cfg.Bus)
		if err != nil {
			return nil, nil, err
		}
		d, err := probe(t, gens, dc)
		if err != nil {
			t.Close()
			return nil, nil, err
		}
		// Device.Close closes t
		return d, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown i2c driver %q", cfg.Driver)
}

// setupInterrupts routes the event acquisition a waits for to the INT pin.
func setupInterrupts(d *bosch.Device, a sensors.Acquisition, watermark uint16) error {
	ic := bosch.InterruptConfig{ActiveHigh: true}
	if a == sensors.FIFO {
		ic.FIFOWatermark, ic.FIFOFull = true, true
	} else {
		ic.DataReady = true
	}
	if err := d.SetInterrupts(ic); err != nil {
		if errors.Is(err, bosch.ErrUnsupported) {
			return fmt.Errorf("int_pin is set but the %s has no INT output", d.Generation())
		}
		return err
	}
	if ic.FIFOWatermark {
		return d.SetFIFOWatermark(watermark)
	}
	return nil
}
