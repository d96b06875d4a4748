package bosch

import (
	"io"
	"time"

	logger "github.com/d2r2/go-logger"
)

var lg = logger.NewPackageLogger("bosch", logger.InfoLevel)

// replaced in tests
var sleep = time.Sleep

// Config holds the measurement settings applied by New. The zero value is x1
// oversampling, no IIR filter, the fastest output data rate and the shortest
// standby time.
type Config struct {
	Pressure    Oversampling
	Temperature Oversampling
	Humidity    Oversampling // BME280
	IIR         FilterCoefficient
	ODR         OutputDataRate // BMP388
	Standby     StandbyTime    // BMP280 family, normal mode only

	// SettleDelay overrides the wait after soft reset. Zero uses the
	// generation's delay.
	SettleDelay time.Duration
}

// Device is one sensor reached through a Transport. It is not safe for
// concurrent use; callers sharing a Device between goroutines must serialize
// access themselves.
type Device struct {
	t    Transport
	gen  *generation
	id   byte
	cal  Calibration
	cfg  Config
	mode Mode

	fifoTime bool // sensor time enabled by the last ConfigureFIFO
}

// New verifies the chip id, resets the sensor, reads its calibration and
// applies cfg. The device is left in sleep mode with pressure and temperature
// enabled.
func New(t Transport, gen Generation, cfg Config) (*Device, error) {
	g := gen.params()

	id, err := t.ReadRegU8(g.idReg)
	if err != nil {
		return nil, transportErr("read chip id", g.idReg, err)
	}
	if !g.identifies(id) {
		return nil, &ChipIDError{Generation: g.name, Got: id, Want: g.ids}
	}
	lg.Debugf("%s: chip id %#02x", g, id)

	if err := t.WriteRegU8(g.resetReg, cmdSoftReset); err != nil {
		return nil, transportErr("soft reset", g.resetReg, err)
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = g.settle
	}
	sleep(settle)

	blocks, err := g.layout.read(t)
	if err != nil {
		return nil, err
	}
	cal := g.layout.decode(blocks)
	cal.Humidity = g.humidity

	d := &Device{
		t:    t,
		gen:  g,
		id:   id,
		cal:  cal,
		cfg:  cfg,
		mode: Mode{Power: Sleep, Pressure: true, Temperature: true},
	}
	if err := d.configure(); err != nil {
		return nil, err
	}
	return d, nil
}

// configure writes every setting in d.cfg followed by the power register.
func (d *Device) configure() error {
	switch d.gen.family {
	case family388:
		if err := d.SetOversampling(d.cfg.Pressure, d.cfg.Temperature); err != nil {
			return err
		}
		if err := d.SetOutputDataRate(d.cfg.ODR); err != nil {
			return err
		}
		if err := d.SetFilter(d.cfg.IIR); err != nil {
			return err
		}
		if err := d.SetMode(d.mode); err != nil {
			return err
		}
		e, err := d.ConfigError()
		if err != nil {
			return err
		}
		if e.Any() {
			return e
		}
	case family280:
		if d.gen.humidity {
			if err := d.writeReg("write ctrl_hum", reg280CtrlHum, osr280(d.cfg.Humidity, true)&hum280Mask); err != nil {
				return err
			}
		}
		if err := d.writeConfig280(); err != nil {
			return err
		}
		// ctrl_meas last, it latches ctrl_hum
		if err := d.SetMode(d.mode); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) Generation() Generation { return d.gen }

// ChipID is the identity byte read during New.
func (d *Device) ChipID() byte { return d.id }

// Calibration returns a copy of the decoded coefficients.
func (d *Device) Calibration() Calibration { return d.cal }

// ReadRaw reads pressure, temperature and (on a BME280) humidity counts in one
// block transfer so they belong to the same conversion.
func (d *Device) ReadRaw() (RawSample, error) {
	var s RawSample
	switch d.gen.family {
	case family388:
		b, err := readExact(d.t, reg388Press, 6)
		if err != nil {
			return s, err
		}
		s.Pressure = u24At(b, 0)
		s.Temperature = u24At(b, 3)
	case family280:
		n := 6
		if d.gen.humidity {
			n = 8
		}
		b, err := readExact(d.t, reg280Data, n)
		if err != nil {
			return s, err
		}
		s.Pressure = u20At(b, 0)
		s.Temperature = u20At(b, 3)
		if d.gen.humidity {
			s.Humidity = uint32(b[6])<<8 | uint32(b[7])
			s.HasHumidity = true
		}
	}
	return s, nil
}

func (d *Device) ReadRawPressure() (uint32, error) {
	if d.gen.family == family388 {
		return d.readTriple(reg388Press)
	}
	return d.readTriple(reg280Data)
}

func (d *Device) ReadRawTemperature() (uint32, error) {
	if d.gen.family == family388 {
		return d.readTriple(reg388Temp)
	}
	return d.readTriple(reg280Data + 3)
}

func (d *Device) readTriple(reg byte) (uint32, error) {
	b, err := readExact(d.t, reg, 3)
	if err != nil {
		return 0, err
	}
	if d.gen.family == family388 {
		return u24At(b, 0), nil
	}
	return u20At(b, 0), nil
}

// Compensate converts raw counts with this device's calibration. Temperature is
// computed first since pressure and humidity depend on it.
func (d *Device) Compensate(raw RawSample) Reading {
	return d.gen.compensate(&d.cal, raw)
}

// Read is ReadRaw followed by Compensate. It does not trigger a conversion; in
// forced mode call SetMode first and wait until Mode reads back Sleep.
func (d *Device) Read() (Reading, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return Reading{}, err
	}
	return d.Compensate(raw), nil
}

// Close puts the sensor to sleep and closes the transport if it can be closed.
func (d *Device) Close() error {
	err := d.SetMode(Mode{Power: Sleep, Pressure: d.mode.Pressure, Temperature: d.mode.Temperature})
	if c, ok := d.t.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *Device) readReg(op string, reg byte) (byte, error) {
	v, err := d.t.ReadRegU8(reg)
	if err != nil {
		return 0, transportErr(op, reg, err)
	}
	return v, nil
}

func (d *Device) writeReg(op string, reg, value byte) error {
	lg.Debugf("%s: %s %#02x <- %#02x", d.gen, op, reg, value)
	return transportErr(op, reg, d.t.WriteRegU8(reg, value))
}
