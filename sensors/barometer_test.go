package sensors

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/b3nn0/baro/sensors/bosch"
)

// fakeBMP388 models the registers a Barometer touches, including a FIFO that
// pops bytes from its data register and a forced conversion that returns the
// power mode to sleep after a few reads. INT_STATUS is never set.
type fakeBMP388 struct {
	mu     sync.Mutex
	mem    [256]byte
	fifo   []byte
	header byte
	writes map[byte][]byte

	converting int  // pwr_ctrl reads left before a forced conversion ends
	stuck      bool // forced conversions never end
}

var cali388 = []byte{
	0xB4, 0x6A, 0x3F, 0x4A, 0xF9, 0xB8, 0x0B, 0xF0, 0x0A, 0x23, 0xFE,
	0x9C, 0x63, 0x24, 0x77, 0x05, 0xF8, 0xB8, 0x3D, 0x03, 0xC4,
}

var (
	rawPress = []byte{0x40, 0xB5, 0x64} // 6600000
	rawTemp  = []byte{0x80, 0x2C, 0x80} // 8400000
)

const (
	wantTemp  = 24.85882079374278
	wantPress = 129482.46468524069
)

func newFakeBMP388() *fakeBMP388 {
	f := &fakeBMP388{writes: map[byte][]byte{}}
	f.mem[0x00] = bosch.ChipID388
	copy(f.mem[0x31:], cali388)
	copy(f.mem[0x04:], rawPress)
	copy(f.mem[0x07:], rawTemp)
	return f
}

func (f *fakeBMP388) pop(n int) []byte {
	if n > len(f.fifo) {
		n = len(f.fifo)
	}
	b := f.fifo[:n]
	f.fifo = f.fifo[n:]
	return b
}

func (f *fakeBMP388) load(b ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fifo = append(f.fifo, b...)
}

func (f *fakeBMP388) ReadRegU8(reg byte) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg == 0x14 {
		if b := f.pop(1); len(b) == 1 {
			f.header = b[0]
			return b[0], nil
		}
		return 0x80, nil
	}
	if reg == 0x1B && f.mem[reg]&0x30 == 0x10 && !f.stuck {
		if f.converting > 0 {
			f.converting--
		} else {
			f.mem[reg] &^= 0x30
		}
	}
	return f.mem[reg], nil
}

func (f *fakeBMP388) ReadRegU16LE(reg byte) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch reg {
	case 0x12:
		return uint16(len(f.fifo)), nil
	case 0x14:
		f.pop(2)
		return 0, nil
	}
	return uint16(f.mem[reg+1])<<8 | uint16(f.mem[reg]), nil
}

func (f *fakeBMP388) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg == 0x14 {
		b := append([]byte{f.header}, f.pop(n-1)...)
		return b, len(b), nil
	}
	b := make([]byte, n)
	return b, copy(b, f.mem[reg:]), nil
}

func (f *fakeBMP388) WriteRegU8(reg byte, value byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[reg] = value
	f.writes[reg] = append(f.writes[reg], value)
	if reg == 0x1B && value&0x30 == 0x10 {
		f.converting = 2
	}
		if reg == 0x7E && value == 0xB0 {
		f.fifo = nil
	}
	return nil
}

func (f *fakeBMP388) WriteRegU16LE(reg byte, value uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[reg], f.mem[reg+1] = byte(value), byte(value>>8)
	return nil
}

func (f *fakeBMP388) written(reg byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.writes[reg]...)
}

func newTestBarometer(t *testing.T, cfg BarometerConfig) (*Barometer, *fakeBMP388, *[]Sample) {
	t.Helper()
	chip := newFakeBMP388()
	dev, err := bosch.New(chip, bosch.BMP388, bosch.Config{})
	if err != nil {
		t.Fatalf("bosch.New: %v", err)
	}
	var samples []Sample
	cfg.OnSample = func(s Sample) { samples = append(samples, s) }
	if cfg.Poll == 0 {
		cfg.Poll = time.Millisecond
	}
	b := &Barometer{dev: dev, cfg: cfg, running: true}
	if err := b.setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return b, chip, &samples
}

func checkReading(t *testing.T, s Sample) {
	t.Helper()
	if math.Abs(s.Temperature-wantTemp) > 1e-9 || math.Abs(s.Pressure-wantPress) > 1e-6 {
		t.Errorf("sample = %+v, want %v C %v Pa", s, wantTemp, wantPress)
	}
}

func TestBarometerForced(t *testing.T) {
	b, chip, samples := newTestBarometer(t, BarometerConfig{Acquisition: Forced})

	if _, err := b.Last(); err != errNoSample {
		t.Errorf("Last before first sample: %v", err)
	}
	if err := b.acquire(); err != nil {
		t.Fatal(err)
	}
	w := chip.written(0x1B)
	if len(w) == 0 || w[len(w)-1] != 0x13 {
		t.Errorf("pwr_ctrl writes = % x, want forced last", w)
	}
	chip.mu.Lock()
	if chip.mem[0x1B] != 0x03 || chip.mem[0x19] != 0 {
		t.Errorf("pwr_ctrl = %#02x, int_ctrl = %#02x after conversion", chip.mem[0x1B], chip.mem[0x19])
	}
	chip.mu.Unlock()
	if len(*samples) != 1 {
		t.Fatalf("%d samples, want 1", len(*samples))
	}
	checkReading(t, (*samples)[0])

	p, err := b.Pressure()
	if err != nil || p != (*samples)[0].Pressure {
		t.Errorf("Pressure = %v, %v", p, err)
	}
	if err := b.acquire(); err != nil {
		t.Fatalf("second forced cycle: %v", err)
	}
	if len(*samples) != 2 {
		t.Errorf("%d samples after two cycles, want 2", len(*samples))
	}
}

func TestBarometerForcedTimeout(t *testing.T) {
	b, chip, samples := newTestBarometer(t, BarometerConfig{Acquisition: Forced, Poll: 50 * time.Millisecond})
	chip.mu.Lock()
	chip.stuck = true
	chip.mu.Unlock()

	if err := b.acquire(); err != errTimeout {
		t.Errorf("err = %v, want timeout", err)
	}
	if len(*samples) != 0 {
		t.Errorf("published %d samples", len(*samples))
	}
}

func TestBarometerNormal(t *testing.T) {
	b, chip, samples := newTestBarometer(t, BarometerConfig{Acquisition: Normal})
	if w := chip.written(0x1B); len(w) == 0 || w[len(w)-1] != 0x33 {
		t.Errorf("pwr_ctrl writes = % x, want normal", w)
	}
	for i := 0; i < 3; i++ {
		if err := b.acquire(); err != nil {
			t.Fatal(err)
		}
	}
	if len(*samples) != 3 {
		t.Fatalf("%d samples, want 3", len(*samples))
	}
	checkReading(t, (*samples)[2])
}

func TestBarometerFIFO(t *testing.T) {
	b, chip, samples := newTestBarometer(t, BarometerConfig{Acquisition: FIFO})

	if w := chip.written(0x17); len(w) != 1 || w[0] != 0x19 {
		t.Errorf("fifo_config_1 writes = % x, want 19", w)
	}

	// pressure before any temperature is dropped, the last one borrows the
	// temperature of the frame before it
	chip.load(0x84)
	chip.load(rawPress...)
	chip.load(0x94)
	chip.load(rawTemp...)
	chip.load(rawPress...)
	chip.load(0x84)
	chip.load(rawPress...)

	if err := b.acquire(); err != nil {
		t.Fatal(err)
	}
	if len(*samples) != 2 {
		t.Fatalf("%d samples, want 2", len(*samples))
	}
	for _, s := range *samples {
		if !s.FromFIFO {
			t.Errorf("sample %+v not marked as from fifo", s)
		}
		checkReading(t, s)
	}
}

func TestBarometerFIFOReconfiguresAfterError(t *testing.T) {
	b, chip, _ := newTestBarometer(t, BarometerConfig{Acquisition: FIFO})
	chip.load(0x44, 0x00, 0x00)

	if err := b.acquire(); err != nil {
		t.Fatal(err)
	}
	if w := chip.written(0x17); len(w) != 2 {
		t.Errorf("fifo_config_1 written %d times, want 2", len(w))
	}
}

func TestBarometerRun(t *testing.T) {
	chip := newFakeBMP388()
	dev, err := bosch.New(chip, bosch.BMP388, bosch.Config{})
	if err != nil {
		t.Fatal(err)
	}
	trigger := make(chan struct{})
	got := make(chan Sample, 1)
	b, err := NewBarometer(dev, BarometerConfig{
		Acquisition: Normal,
		Trigger:     trigger,
		OnSample:    func(s Sample) { got <- s },
	})
	if err != nil {
		t.Fatal(err)
	}

	trigger <- struct{}{}
	select {
	case s := <-got:
		checkReading(t, s)
	case <-time.After(time.Second):
		t.Fatal("no sample")
	}

	b.Close()
	if _, err := b.Temperature(); err != errNotRunning {
		t.Errorf("Temperature after Close: %v", err)
	}
	if w := chip.written(0x1B); w[len(w)-1] != 0x03 {
		t.Errorf("pwr_ctrl after Close = %#02x, want sleep", w[len(w)-1])
	}
	b.Close()
}

func TestRunReportsErrors(t *testing.T) {
	chip := newFakeBMP388()
	chip.stuck = true
	dev, err := bosch.New(chip, bosch.BMP388, bosch.Config{})
	if err != nil {
		t.Fatal(err)
	}
	trigger := make(chan struct{})
	errs := make(chan error, 1)
	b, err := NewBarometer(dev, BarometerConfig{
		Acquisition: Forced,
		Poll:        50 * time.Millisecond,
		Trigger:     trigger,
		OnSample:    func(s Sample) { t.Errorf("unexpected sample %+v", s) },
		OnError:     func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	trigger <- struct{}{}
	select {
	case err := <-errs:
		if err != errTimeout {
			t.Errorf("OnError got %v, want timeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
	if b.Err() != errTimeout {
		t.Errorf("Err = %v", b.Err())
	}
}

func TestParseAcquisition(t *testing.T) {
	for _, a := range []Acquisition{Forced, Normal, FIFO} {
		got, err := ParseAcquisition(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAcquisition(%q) = %v, %v", a.String(), got, err)
		}
	}
	if _, err := ParseAcquisition("burst"); err == nil {
		t.Error("ParseAcquisition accepted burst")
	}
}
