package bosch

import "fmt"

// FIFOConfig selects what the BMP388 queues. Subsampling stores every
// 2^Subsampling-th sample (0..7). Filtered queues IIR filtered data instead of
// unfiltered data.
type FIFOConfig struct {
	StopOnFull  bool
	Pressure    bool
	Temperature bool
	SensorTime  bool
	Filtered    bool
	Subsampling uint8
}

// FIFOFrame is one decoded queue record. A field is only meaningful when its
// Has flag is set.
type FIFOFrame struct {
	Pressure    uint32
	Temperature uint32
	SensorTime  uint32

	HasPressure    bool
	HasTemperature bool
	HasSensorTime  bool

	// ConfigChange marks a control frame written after the FIFO configuration
	// changed. It carries no data.
	ConfigChange bool

	// ShortRead is set when the bus delivered fewer bytes than the frame
	// needed, leaving one or more fields absent.
	ShortRead bool
}

// Raw returns the frame's counts as a RawSample for Compensate.
func (f FIFOFrame) Raw() RawSample {
	return RawSample{Pressure: f.Pressure, Temperature: f.Temperature}
}

func (f FIFOFrame) String() string {
	switch {
	case f.ConfigChange:
		return "fifo config change"
	case !f.HasPressure && !f.HasTemperature && !f.HasSensorTime:
		return "fifo empty frame"
	}
	s := "fifo frame"
	if f.HasPressure {
		s += fmt.Sprintf(" pressure %d", f.Pressure)
	}
	if f.HasTemperature {
		s += fmt.Sprintf(" temperature %d", f.Temperature)
	}
	if f.HasSensorTime {
		s += fmt.Sprintf(" time %d", f.SensorTime)
	}
	return s
}

const (
	fifoFieldLen = 3 // xlsb, lsb, msb
	fifoTimeLen  = 1 + fifoFieldLen
)

func (d *Device) fifoSupported() error {
	if d.gen.family != family388 {
		return ErrFIFOUnsupported
	}
	return nil
}

// ConfigureFIFO flushes the queue and enables it with c. Whether sensor time
// frames are expected is remembered only if the configuration was accepted by
// the bus.
func (d *Device) ConfigureFIFO(c FIFOConfig) error {
	if err := d.FlushFIFO(); err != nil {
		return err
	}
	cfg2 := c.Subsampling & 0x07
	if c.Filtered {
		cfg2 |= 1 << fifoDataSelect
	}
	if err := d.writeReg("write fifo_config_2", reg388FifoCfg2, cfg2); err != nil {
		return err
	}
	cfg1 := fifoEnable
	for _, b := range []struct {
		on  bool
		bit byte
	}{
		{c.StopOnFull, fifoStopOnFull},
		{c.SensorTime, fifoTimeEn},
		{c.Pressure, fifoPressEn},
		{c.Temperature, fifoTempEn},
	} {
		if b.on {
			cfg1 |= b.bit
		}
	}
	if err := d.writeReg("write fifo_config_1", reg388FifoCfg1, cfg1); err != nil {
		return err
	}
	d.fifoTime = c.SensorTime
	return nil
}

func (d *Device) DisableFIFO() error {
	if err := d.fifoSupported(); err != nil {
		return err
	}
	return d.writeReg("write fifo_config_1", reg388FifoCfg1, 0)
}

// FlushFIFO discards everything queued. The configuration is kept.
func (d *Device) FlushFIFO() error {
	if err := d.fifoSupported(); err != nil {
		return err
	}
	return d.writeReg("fifo flush", reg388Cmd, cmdFifoFlush)
}

// FIFOLength returns the number of bytes queued.
func (d *Device) FIFOLength() (uint16, error) {
	if err := d.fifoSupported(); err != nil {
		return 0, err
	}
	n, err := d.t.ReadRegU16LE(reg388FifoLen)
	if err != nil {
		return 0, transportErr("read fifo_length", reg388FifoLen, err)
	}
	return n, nil
}

func (d *Device) FIFOWatermark() (uint16, error) {
	if err := d.fifoSupported(); err != nil {
		return 0, err
	}
	n, err := d.t.ReadRegU16LE(reg388FifoWtm)
	if err != nil {
		return 0, transportErr("read fifo_wtm", reg388FifoWtm, err)
	}
	return n, nil
}

// SetFIFOWatermark sets the fill level in bytes that raises the watermark
// interrupt. Only the low 9 bits are used.
func (d *Device) SetFIFOWatermark(n uint16) error {
	if err := d.fifoSupported(); err != nil {
		return err
	}
	lg.Debugf("%s: write fifo_wtm %#02x <- %d", d.gen, reg388FifoWtm, n&0x01FF)
	return transportErr("write fifo_wtm", reg388FifoWtm, d.t.WriteRegU16LE(reg388FifoWtm, n&0x01FF))
}

// NextFIFOFrame consumes one record from the queue.
//
// The header byte is read on its own, which pops it. Control frames and empty
// sensor frames are followed by a word that is read and dropped. For sensor
// frames the body is read in one block whose first byte repeats the header.
//
// Sensor time frames are not announced by the data header. A trailing time
// record is expected only if it was enabled in ConfigureFIFO and the queue
// holds exactly the data frame, meaning the sensor appended its time after the
// last sample. The queue length is read after the header, so in normal mode a
// conversion landing in between hides the time record.
func (d *Device) NextFIFOFrame() (FIFOFrame, error) {
	var f FIFOFrame
	if err := d.fifoSupported(); err != nil {
		return f, err
	}
	header, err := d.readReg("read fifo_data", reg388FifoData)
	if err != nil {
		return f, err
	}

	switch {
	case header&fifoControlFrame != 0:
		switch {
		case header&fifoCfgError != 0:
			if err := d.discardFIFOWord(); err != nil {
				return f, err
			}
			return f, ErrFIFOConfig
		case header&fifoCfgChange != 0:
			if err := d.discardFIFOWord(); err != nil {
				return f, err
			}
			f.ConfigChange = true
			return f, nil
		}
		return f, fmt.Errorf("%w: control frame %#08b", ErrUnknownFIFOHeader, header)

	case header&fifoSensorFrame != 0:
		length, err := d.FIFOLength()
		if err != nil {
			return f, err
		}
		temp := header&fifoHdrTemp != 0
		press := header&fifoHdrPress != 0
		if !temp && !press {
			return f, d.discardFIFOWord()
		}
		size := 1
		if temp {
			size += fifoFieldLen
		}
		if press {
			size += fifoFieldLen
		}
		withTime := d.fifoTime && int(length) == size
		if withTime {
			size += fifoTimeLen
		}
		buf, got, err := d.t.ReadRegBytes(reg388FifoData, size)
		if err != nil {
			return f, transportErr("read fifo frame", reg388FifoData, err)
		}
		if got > len(buf) {
			got = len(buf)
		}
		lg.Debugf("%s: read %d of %d fifo bytes, header %#08b", d.gen, got, size, header)
		return decodeSensorFrame(buf[:got], temp, press, withTime), nil
	}
	return f, fmt.Errorf("%w: %#08b", ErrUnknownFIFOHeader, header)
}

// decodeSensorFrame slices a sensor frame body: header, temperature, pressure,
// then an optional time header and time. Fields that did not arrive, or whose
// flag is missing from the header, are left absent.
func decodeSensorFrame(b []byte, temp, press, withTime bool) FIFOFrame {
	var f FIFOFrame
	off := 1
	field := func(name string, flagByte int, flag byte) (uint32, bool) {
		defer func() { off += fifoFieldLen }()
		if len(b) < off+fifoFieldLen {
			lg.Warnf("not enough bytes available for %s", name)
			f.ShortRead = true
			return 0, false
		}
		if b[flagByte]&flag == 0 {
			lg.Warnf("%s flag expected in header but not set: %#08b", name, b[flagByte])
			return 0, false
		}
		return u24At(b, off), true
	}
	if temp {
		f.Temperature, f.HasTemperature = field("temperature", 0, fifoHdrTemp)
	}
	if press {
		f.Pressure, f.HasPressure = field("pressure", 0, fifoHdrPress)
	}
	if withTime {
		hdr := off
		off++
		if len(b) <= hdr {
			lg.Warnf("not enough bytes available for sensor time")
			f.ShortRead = true
		} else {
			f.SensorTime, f.HasSensorTime = field("sensor time", hdr, fifoHdrTime)
		}
	}
	return f
}

func (d *Device) discardFIFOWord() error {
	_, err := d.t.ReadRegU16LE(reg388FifoData)
	return transportErr("read fifo_data", reg388FifoData, err)
}

// DrainFIFO reads frames until the queue reports empty and hands each one to
// fn. It returns the number of frames read. A non-nil error from fn stops the
// loop and is returned. ErrFIFOConfig ends the drain but the Device stays
// usable; the caller decides whether to reconfigure.
func (d *Device) DrainFIFO(fn func(FIFOFrame) error) (int, error) {
	n := 0
	for {
		length, err := d.FIFOLength()
		if err != nil {
			return n, err
		}
		if length == 0 {
			return n, nil
		}
		f, err := d.NextFIFOFrame()
		if err != nil {
			return n, err
		}
		n++
		if fn == nil {
			continue
		}
		if err := fn(f); err != nil {
			return n, err
		}
	}
}
