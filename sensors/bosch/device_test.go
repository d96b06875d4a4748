package bosch

import (
	"errors"
	"testing"
	"time"
)

func TestNewBMP388(t *testing.T) {
	var slept []time.Duration
	defer noSleep(&slept)()

	m := mock388()
	d, err := New(m, BMP388, Config{Pressure: Sampling8X, Temperature: Sampling2X, IIR: Coeff3, ODR: Odr50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.ChipID() != ChipID388 {
		t.Errorf("chip id = %#02x, want %#02x", d.ChipID(), ChipID388)
	}
	if len(slept) != 1 || slept[0] != 2*time.Millisecond {
		t.Errorf("settle sleeps = %v, want [2ms]", slept)
	}

	w := m.writes()
	if len(w) == 0 || w[0].reg != reg388Cmd || w[0].value != uint16(cmdSoftReset) {
		t.Fatalf("first write = %v, want soft reset", w)
	}
	if got := m.mem[reg388OSR]; got != 0x0B {
		t.Errorf("osr = %#02x, want 0x0b", got)
	}
	if got := m.mem[reg388ODR]; got != byte(Odr50) {
		t.Errorf("odr = %#02x, want %#02x", got, byte(Odr50))
	}
	if got := m.mem[reg388Config]; got != 0x04 {
		t.Errorf("config = %#02x, want 0x04", got)
	}

	mode, err := d.Mode()
	if err != nil {
		t.Fatal(err)
	}
	if mode != (Mode{Power: Sleep, Pressure: true, Temperature: true}) {
		t.Errorf("mode after New = %v, want sleep with both enabled", mode)
	}
}

func TestNewSettleDelayOverride(t *testing.T) {
	var slept []time.Duration
	defer noSleep(&slept)()

	if _, err := New(mock388(), BMP388, Config{SettleDelay: 10 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Errorf("settle sleeps = %v, want [10ms]", slept)
	}
}

func TestNewWrongChipID(t *testing.T) {
	var slept []time.Duration
	defer noSleep(&slept)()

	for _, tc := range []struct {
		gen Generation
		reg byte
		id  byte
	}{
		{BMP388, reg388ChipID, ChipID280},
		{BMP388, reg388ChipID, 0x00},
		{BMP280, reg280ChipID, ChipIDBME},
		{BME280, reg280ChipID, ChipID280},
		{BME280, reg280ChipID, 0xFF},
	} {
		m := newMockBus()
		m.mem[tc.reg] = tc.id
		_, err := New(m, tc.gen, Config{})
		if !errors.Is(err, ErrUnexpectedChipID) {
			t.Errorf("%s with id %#02x: err = %v, want ErrUnexpectedChipID", tc.gen, tc.id, err)
		}
		var idErr *ChipIDError
		if !errors.As(err, &idErr) || idErr.Got != tc.id {
			t.Errorf("%s with id %#02x: err = %#v, want *ChipIDError", tc.gen, tc.id, err)
		}
		if w := m.writes(); len(w) != 0 {
			t.Errorf("%s with id %#02x: writes after failed identity check: %v", tc.gen, tc.id, w)
		}
	}
	if len(slept) != 0 {
		t.Errorf("slept %v after failed identity check", slept)
	}
}

func TestNewAcceptsBMP390(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	m.mem[reg388ChipID] = ChipID390
	if _, err := New(m, BMP388, Config{}); err != nil {
		t.Errorf("New with BMP390 id: %v", err)
	}
}

func TestNewTransportFailure(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	for _, reg := range []byte{reg388ChipID, reg388Cmd, reg388Cali, reg388OSR, reg388PwrCtrl} {
		m := mock388()
		m.fail[reg] = errBus
		_, err := New(m, BMP388, Config{})
		if !errors.Is(err, ErrTransport) {
			t.Errorf("failing reg %#02x: err = %v, want ErrTransport", reg, err)
		}
		if !errors.Is(err, errBus) {
			t.Errorf("failing reg %#02x: err = %v does not wrap the bus error", reg, err)
		}
		var te *TransportError
		if errors.As(err, &te) && te.Reg != reg {
			t.Errorf("failing reg %#02x: error names register %#02x", reg, te.Reg)
		}
	}
}

func TestNewShortCalibrationRead(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	m.blocks[reg388Cali] = [][]byte{cali388[:20]}
	_, err := New(m, BMP388, Config{})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrShortRead) {
		t.Errorf("err = %v, want short read transport failure", err)
	}
}

func TestNewConfigurationRejected(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	m.bytes[reg388Err] = []byte{errConf}
	_, err := New(m, BMP388, Config{Pressure: Sampling32X, Temperature: Sampling32X, ODR: Odr200})
	var ce ConfigError
	if !errors.As(err, &ce) || !ce.Config {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestNewBMP280(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock280()
	d, err := New(m, BMP280, Config{Pressure: Sampling16X, Temperature: Sampling2X, IIR: Coeff15, Standby: Standby125ms})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.mem[reg280Reset]; got != cmdSoftReset {
		t.Errorf("reset register = %#02x, want %#02x", got, cmdSoftReset)
	}
	if got := m.mem[reg280Config]; got != 0x50 {
		t.Errorf("config = %#02x, want 0x50", got)
	}
	// osrs_t x2, osrs_p x16, sleep
	if got := m.mem[reg280CtrlMeas]; got != 0x54 {
		t.Errorf("ctrl_meas = %#02x, want 0x54", got)
	}
	if m.count("writeU8", reg280CtrlHum) != 0 {
		t.Error("ctrl_hum written on a BMP280")
	}
	if d.Calibration().Humidity {
		t.Error("BMP280 calibration claims humidity coefficients")
	}
}

func TestNewBME280LatchesHumidity(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mockBME()
	d, err := New(m, BME280, Config{Humidity: Sampling4X})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.mem[reg280CtrlHum]; got != 0x03 {
		t.Errorf("ctrl_hum = %#02x, want 0x03", got)
	}
	hum, meas := -1, -1
	for i, c := range m.calls {
		if c.op != "writeU8" {
			continue
		}
		switch c.reg {
		case reg280CtrlHum:
			hum = i
		case reg280CtrlMeas:
			meas = i
		}
	}
	if hum < 0 || meas < hum {
		t.Errorf("ctrl_meas (call %d) must follow ctrl_hum (call %d)", meas, hum)
	}
	if !d.Calibration().Humidity {
		t.Error("BME280 calibration has no humidity coefficients")
	}
}

func TestReadRaw388(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	d, err := New(m, BMP388, Config{})
	if err != nil {
		t.Fatal(err)
	}
	m.reset()
	m.blocks[reg388Press] = [][]byte{{0x40, 0xB5, 0x64, 0x80, 0x2C, 0x80}}

	raw, err := d.ReadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if raw.Pressure != 6600000 || raw.Temperature != 8400000 {
		t.Errorf("raw = %+v, want pressure 6600000 temperature 8400000", raw)
	}
	if n := len(m.calls); n != 1 || m.calls[0].n != 6 {
		t.Errorf("calls = %v, want one 6 byte block read", m.calls)
	}

	r := d.Compensate(raw)
	if !closeTo(r.Temperature, 24.85882079374278, 1e-12) || !closeTo(r.Pressure, 129482.46468524069, 1e-9) {
		t.Errorf("reading = %+v", r)
	}
}

func TestReadRawSingle388(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	d, err := New(m, BMP388, Config{})
	if err != nil {
		t.Fatal(err)
	}
	copy(m.mem[reg388Press:], []byte{0x40, 0xB5, 0x64, 0x80, 0x2C, 0x80})
	p, err := d.ReadRawPressure()
	if err != nil || p != 6600000 {
		t.Errorf("ReadRawPressure = %d, %v", p, err)
	}
	tr, err := d.ReadRawTemperature()
	if err != nil || tr != 8400000 {
		t.Errorf("ReadRawTemperature = %d, %v", tr, err)
	}
}

func TestReadBME280(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mockBME()
	d, err := New(m, BME280, Config{})
	if err != nil {
		t.Fatal(err)
	}
	copy(m.mem[reg280Data:], []byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00, 0x75, 0x30})

	r, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(r.Temperature, 25.08247793081682, 1e-12) {
		t.Errorf("temperature = %v", r.Temperature)
	}
	if !closeTo(r.Pressure, 100653.26677582515, 1e-9) {
		t.Errorf("pressure = %v", r.Pressure)
	}
	if !closeTo(r.Humidity, 55.00071477602678, 1e-9) {
		t.Errorf("humidity = %v", r.Humidity)
	}
	if m.count("readBlock", reg280Data) != 1 {
		t.Errorf("data reads = %d, want 1", m.count("readBlock", reg280Data))
	}
}

func TestReadShortBlock(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock280()
	d, err := New(m, BMP280, Config{})
	if err != nil {
		t.Fatal(err)
	}
	m.blocks[reg280Data] = [][]byte{{0x65, 0x5A, 0xC0, 0x7E}}
	if _, err := d.ReadRaw(); !errors.Is(err, ErrShortRead) {
		t.Errorf("err = %v, want ErrShortRead", err)
	}
}

func TestClose(t *testing.T) {
	defer noSleep(new([]time.Duration))()

	m := mock388()
	d, err := New(m, BMP388, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(Mode{Power: Normal, Pressure: true, Temperature: true}); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if got := m.mem[reg388PwrCtrl]; got != pwrPress|pwrTemp {
		t.Errorf("pwr_ctrl after Close = %#02x, want sleep", got)
	}
	if !m.closed {
		t.Error("transport not closed")
	}
}
