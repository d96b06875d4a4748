package sensors

import (
	"errors"
	"sync"
	"time"

	"github.com/b3nn0/baro/sensors/bosch"
	logger "github.com/d2r2/go-logger"
)

var lg = logger.NewPackageLogger("sensors", logger.InfoLevel)

// Acquisition selects how a Barometer gets its samples.
type Acquisition int

const (
	// Forced triggers one conversion per tick and waits for it. Lowest power.
	Forced Acquisition = iota
	// Normal lets the sensor convert continuously and reads the data registers each tick.
	Normal
	// FIFO lets the sensor queue samples and drains the queue each tick. BMP388 only.
	FIFO
)

func (a Acquisition) String() string {
	switch a {
	case Forced:
		return "forced"
	case Normal:
		return "normal"
	case FIFO:
		return "fifo"
	}
	return "unknown"
}

// ParseAcquisition is the inverse of Acquisition.String.
func ParseAcquisition(s string) (Acquisition, error) {
	for _, a := range []Acquisition{Forced, Normal, FIFO} {
		if a.String() == s {
			return a, nil
		}
	}
	return Forced, errors.New("sensors: unknown acquisition mode " + s)
}

const (
	defaultInterval = 100 * time.Millisecond
	defaultPoll     = 5 * time.Millisecond
	forcedTimeout   = 500 * time.Millisecond
)

var (
	errNotRunning = errors.New("sensors: barometer is not running")
	errNoSample   = errors.New("sensors: no sample yet")
	errTimeout    = errors.New("sensors: conversion did not complete")
)

// Sample is one compensated reading and where it came from.
type Sample struct {
	Time time.Time
	bosch.Reading
	SensorTime    uint32
	HasSensorTime bool
	FromFIFO      bool
}

type BarometerConfig struct {
	Acquisition Acquisition
	Interval    time.Duration // between acquisitions, default 100ms
	Poll        time.Duration // between power mode checks in forced mode, default 5ms

	// FIFO is written to the sensor in FIFO acquisition. Pressure and
	// temperature are always enabled.
	FIFO bosch.FIFOConfig

	// Trigger, if set, replaces the interval ticker: one acquisition per
	// receive. A GPIO watcher on the INT pin feeds it.
	Trigger <-chan struct{}

	// OnSample is called from the acquisition goroutine for every sample.
	OnSample func(Sample)
	// OnError, if set, is called for every failed acquisition.
	OnError func(error)
}

// Barometer keeps the latest reading of a bosch.Device current from a
// background goroutine. It implements PressureReader and HumidityReader.
type Barometer struct {
	dev *bosch.Device
	cfg BarometerConfig

	mu       sync.Mutex
	last     Sample
	haveLast bool
	lastErr  error
	running  bool

	rawTemp  uint32 // last FIFO temperature, for pressure only frames
	haveTemp bool

	quit chan struct{}
	done chan struct{}
}

// NewBarometer puts dev into the acquisition mode and starts reading it.
func NewBarometer(dev *bosch.Device, cfg BarometerConfig) (*Barometer, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	b := &Barometer{
		dev:  dev,
		cfg:  cfg,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	if err := b.setup(); err != nil {
		return nil, err
	}
	b.running = true
	go b.run()
	return b, nil
}

func (b *Barometer) setup() error {
	both := bosch.Mode{Power: bosch.Normal, Pressure: true, Temperature: true}
	switch b.cfg.Acquisition {
	case Normal:
		return b.dev.SetMode(both)
	case FIFO:
		fc := b.cfg.FIFO
		fc.Pressure, fc.Temperature = true, true
		if err := b.dev.ConfigureFIFO(fc); err != nil {
			return err
		}
		return b.dev.SetMode(both)
	}
	return nil
}

func (b *Barometer) run() {
	defer close(b.done)

	trigger := b.cfg.Trigger
	if trigger == nil {
		clock := time.NewTicker(b.cfg.Interval)
		defer clock.Stop()
		ticks := make(chan struct{})
		go func() {
			for {
				select {
				case <-clock.C:
					select {
					case ticks <- struct{}{}:
					case <-b.quit:
						return
					}
				case <-b.quit:
					return
				}
			}
		}()
		trigger = ticks
	}

	for {
		select {
		case <-b.quit:
			return
		case _, ok := <-trigger:
			if !ok {
				return
			}
			if err := b.acquire(); err != nil {
				lg.Warnf("%s acquisition: %v", b.cfg.Acquisition, err)
				b.mu.Lock()
				b.lastErr = err
				b.mu.Unlock()
				if b.cfg.OnError != nil {
					b.cfg.OnError(err)
				}
			}
		}
	}
}

// acquire runs one acquisition cycle.
func (b *Barometer) acquire() error {
	switch b.cfg.Acquisition {
	case Forced:
		return b.acquireForced()
	case Normal:
		r, err := b.dev.Read()
		if err != nil {
			return err
		}
		b.publish(Sample{Time: time.Now(), Reading: r})
		return nil
	case FIFO:
		return b.acquireFIFO()
	}
	return nil
}

func (b *Barometer) acquireForced() error {
	err := b.dev.SetMode(bosch.Mode{Power: bosch.Forced, Pressure: true, Temperature: true})
	if err != nil {
		return err
	}
	// the device drops back to sleep when the conversion is done
	for waited := time.Duration(0); ; waited += b.cfg.Poll {
		m, err := b.dev.Mode()
		if err != nil {
			return err
		}
		if m.Power == bosch.Sleep {
			break
		}
		if waited >= forcedTimeout {
			return errTimeout
		}
		time.Sleep(b.cfg.Poll)
	}
	r, err := b.dev.Read()
	if err != nil {
		return err
	}
	b.publish(Sample{Time: time.Now(), Reading: r})
	return nil
}

func (b *Barometer) acquireFIFO() error {
	now := time.Now()
	_, err := b.dev.DrainFIFO(func(f bosch.FIFOFrame) error {
		b.frame(now, f)
		return nil
	})
	if errors.Is(err, bosch.ErrFIFOConfig) {
		lg.Warnf("fifo configuration error, reconfiguring")
		return b.setup()
	}
	return err
}

// frame publishes a FIFO frame. Pressure needs a temperature; a frame without
// one borrows the last temperature seen in the stream.
func (b *Barometer) frame(now time.Time, f bosch.FIFOFrame) {
	if f.HasTemperature {
		b.rawTemp, b.haveTemp = f.Temperature, true
	}
	if !f.HasPressure || !b.haveTemp {
		return
	}
	raw := bosch.RawSample{Pressure: f.Pressure, Temperature: b.rawTemp}
	b.publish(Sample{
		Time:          now,
		Reading:       b.dev.Compensate(raw),
		SensorTime:    f.SensorTime,
		HasSensorTime: f.HasSensorTime,
		FromFIFO:      true,
	})
}

func (b *Barometer) publish(s Sample) {
	b.mu.Lock()
	b.last, b.haveLast, b.lastErr = s, true, nil
	b.mu.Unlock()
	if b.cfg.OnSample != nil {
		b.cfg.OnSample(s)
	}
}

// Last returns the most recent sample.
func (b *Barometer) Last() (Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return Sample{}, errNotRunning
	}
	if !b.haveLast {
		if b.lastErr != nil {
			return Sample{}, b.lastErr
		}
		return Sample{}, errNoSample
	}
	return b.last, nil
}

// Temperature returns the current temperature in degrees C.
func (b *Barometer) Temperature() (float64, error) {
	s, err := b.Last()
	return s.Temperature, err
}

// Pressure returns the current pressure in Pa.
func (b *Barometer) Pressure() (float64, error) {
	s, err := b.Last()
	return s.Pressure, err
}

func (b *Barometer) Humidity() (float64, error) {
	s, err := b.Last()
	return s.Humidity, err
}

// Err returns the error of the last failed acquisition, cleared by the next
// successful one.
func (b *Barometer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Close stops the measurements and puts the sensor to sleep. The Device stays
// open.
func (b *Barometer) Close() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.quit)
	<-b.done
	if b.cfg.Acquisition == FIFO {
		if err := b.dev.DisableFIFO(); err != nil {
			lg.Warnf("disable fifo: %v", err)
		}
	}
	if err := b.dev.SetMode(bosch.Mode{Power: bosch.Sleep, Pressure: true, Temperature: true}); err != nil {
		lg.Warnf("sleep: %v", err)
	}
}

var (
	_ PressureReader = &Barometer{}
	_ HumidityReader = &Barometer{}
)
