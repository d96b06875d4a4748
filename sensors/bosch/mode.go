package bosch

import "fmt"

// Mode is the power mode together with the measurements that are enabled.
type Mode struct {
	Power       PowerMode
	Pressure    bool
	Temperature bool
}

func (m Mode) String() string {
	return fmt.Sprintf("%s (pressure %t, temperature %t)", m.Power, m.Pressure, m.Temperature)
}

// Status is the decoded status register.
//
// On the BMP280 family Measuring and Updating are read from the register, and
// the ready flags are derived from them: the command decoder is ready unless
// calibration is being copied, data is ready unless a conversion is running.
type Status struct {
	CommandReady     bool
	PressureReady    bool
	TemperatureReady bool

	Measuring bool // BMP280 family
	Updating  bool // BMP280 family, NVM copy in progress

	Raw byte
}

// InterruptConfig drives the BMP388 INT pin.
type InterruptConfig struct {
	OpenDrain     bool
	ActiveHigh    bool
	Latch         bool
	FIFOWatermark bool
	FIFOFull      bool
	DataReady     bool
}

// SetMode writes the power control register. A forced conversion drops back to
// sleep once it is done; use Mode to see what the device is actually doing.
func (d *Device) SetMode(m Mode) error {
	switch d.gen.family {
	case family388:
		v := encodePower(m.Power) << pwrModeShift
		if m.Pressure {
			v |= pwrPress
		}
		if m.Temperature {
			v |= pwrTemp
		}
		if err := d.writeReg("write pwr_ctrl", reg388PwrCtrl, v); err != nil {
			return err
		}
	case family280:
		if err := d.writeReg("write ctrl_meas", reg280CtrlMeas, d.ctrlMeas(m)); err != nil {
			return err
		}
	}
	d.mode = m
	return nil
}

func (d *Device) ctrlMeas(m Mode) byte {
	return osr280(d.cfg.Temperature, m.Temperature)<<meas280TempPos |
		osr280(d.cfg.Pressure, m.Pressure)<<meas280PressPos |
		encodePower(m.Power)
}

// Mode reads the power mode back from the device.
func (d *Device) Mode() (Mode, error) {
	switch d.gen.family {
	case family388:
		v, err := d.readReg("read pwr_ctrl", reg388PwrCtrl)
		if err != nil {
			return Mode{}, err
		}
		return Mode{
			Power:       decodePower(v >> pwrModeShift),
			Pressure:    v&pwrPress != 0,
			Temperature: v&pwrTemp != 0,
		}, nil
	default:
		v, err := d.readReg("read ctrl_meas", reg280CtrlMeas)
		if err != nil {
			return Mode{}, err
		}
		return Mode{
			Power:       decodePower(v & meas280ModeMask),
			Pressure:    v&meas280PressMask != 0,
			Temperature: v&meas280TempMask != 0,
		}, nil
	}
}

// Status reads the status register once. There is no wait; poll as needed.
func (d *Device) Status() (Status, error) {
	if d.gen.family == family388 {
		v, err := d.readReg("read status", reg388Stat)
		if err != nil {
			return Status{}, err
		}
		return Status{
			CommandReady:     v&statCmdReady != 0,
			PressureReady:    v&statDRDYPress != 0,
			TemperatureReady: v&statDRDYTemp != 0,
			Raw:              v,
		}, nil
	}
	v, err := d.readReg("read status", reg280Stat)
	if err != nil {
		return Status{}, err
	}
	s := Status{
		Measuring: v&stat280Measuring != 0,
		Updating:  v&stat280ImUpdate != 0,
		Raw:       v,
	}
	s.CommandReady = !s.Updating
	s.PressureReady = !s.Measuring
	s.TemperatureReady = !s.Measuring
	return s, nil
}

// DataReady reports whether a new conversion has completed. On the BMP388
// reading the interrupt status register clears it, and the bit is only set
// while the data ready interrupt is enabled with SetInterrupts.
func (d *Device) DataReady() (bool, error) {
	if d.gen.family == family388 {
		v, err := d.readReg("read int_status", reg388IntStat)
		if err != nil {
			return false, err
		}
		return v&intStatDRDY != 0, nil
	}
	s, err := d.Status()
	if err != nil {
		return false, err
	}
	return !s.Measuring, nil
}

// SetOversampling takes effect the next time the device leaves sleep mode. On
// the BMP280 family it also puts the device to sleep.
func (d *Device) SetOversampling(pressure, temperature Oversampling) error {
	d.cfg.Pressure, d.cfg.Temperature = pressure, temperature
	if d.gen.family == family388 {
		return d.writeReg("write osr", reg388OSR, byte(temperature)<<3|byte(pressure))
	}
	return d.rewriteCtrlMeas()
}

// rewriteCtrlMeas writes the BMP280 oversampling fields, which share a
// register with the power mode. The device is put to sleep.
func (d *Device) rewriteCtrlMeas() error {
	return d.SetMode(Mode{Power: Sleep, Pressure: d.mode.Pressure, Temperature: d.mode.Temperature})
}

// SetHumidityOversampling is BME280 only. The ctrl_meas write that follows
// makes the new value effective and puts the device to sleep.
func (d *Device) SetHumidityOversampling(o Oversampling) error {
	if !d.gen.humidity {
		return ErrUnsupported
	}
	d.cfg.Humidity = o
	if err := d.writeReg("write ctrl_hum", reg280CtrlHum, osr280(o, true)&hum280Mask); err != nil {
		return err
	}
	return d.rewriteCtrlMeas()
}

// SetFilter sets the IIR filter coefficient. The BMP280 family stops at
// Coeff15.
func (d *Device) SetFilter(c FilterCoefficient) error {
	d.cfg.IIR = c
	if d.gen.family == family388 {
		return d.writeReg("write config", reg388Config, byte(c)<<1)
	}
	return d.writeConfig280()
}

// SetOutputDataRate is BMP388 only.
func (d *Device) SetOutputDataRate(odr OutputDataRate) error {
	if d.gen.family != family388 {
		return ErrUnsupported
	}
	d.cfg.ODR = odr
	return d.writeReg("write odr", reg388ODR, byte(odr))
}

// SetStandby is BMP280 family only.
func (d *Device) SetStandby(t StandbyTime) error {
	if d.gen.family != family280 {
		return ErrUnsupported
	}
	d.cfg.Standby = t
	return d.writeConfig280()
}

func (d *Device) writeConfig280() error {
	v := byte(d.cfg.Standby&0x07)<<5 | filter280(d.cfg.IIR)<<2
	return d.writeReg("write config", reg280Config, v)
}

// ConfigError reads the BMP388 error register. Reading clears it.
func (d *Device) ConfigError() (ConfigError, error) {
	if d.gen.family != family388 {
		return ConfigError{}, ErrUnsupported
	}
	v, err := d.readReg("read err", reg388Err)
	if err != nil {
		return ConfigError{}, err
	}
	return ConfigError{
		Fatal:   v&errFatal != 0,
		Command: v&errCmd != 0,
		Config:  v&errConf != 0,
	}, nil
}

// SetInterrupts configures the BMP388 INT pin.
func (d *Device) SetInterrupts(c InterruptConfig) error {
	if d.gen.family != family388 {
		return ErrUnsupported
	}
	var v byte
	for _, b := range []struct {
		on  bool
		bit byte
	}{
		{c.OpenDrain, intOpenDrain},
		{c.ActiveHigh, intActiveHigh},
		{c.Latch, intLatch},
		{c.FIFOWatermark, intFwtmEn},
		{c.FIFOFull, intFfullEn},
		{c.DataReady, intDRDYEn},
	} {
		if b.on {
			v |= b.bit
		}
	}
	return d.writeReg("write int_ctrl", reg388IntCtrl, v)
}
