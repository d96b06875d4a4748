package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/b3nn0/baro/sensors"
	"github.com/b3nn0/baro/sensors/bosch"
	logger "github.com/d2r2/go-logger"
	"github.com/ghodss/yaml"
)

// Duration reads "250ms" style strings from the config file.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration %s: want a string like \"100ms\"", b)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type OversamplingConfig struct {
	Pressure    uint8 `json:"pressure"` // 1, 2, 4 ... 32
	Temperature uint8 `json:"temperature"`
	Humidity    uint8 `json:"humidity"`
}

type FIFOSettings struct {
	SensorTime  bool   `json:"sensor_time"`
	Filtered    bool   `json:"filtered"`
	Subsampling uint8  `json:"subsampling"`
	Watermark   uint16 `json:"watermark"` // bytes, raises INT when int_pin is set
}

type NATSConfig struct {
	URL     string `json:"url"` // empty disables publishing
	Subject string `json:"subject"`
}

type DatalogConfig struct {
	Path      string `json:"path"` // empty disables the log
	MinFreeMB uint64 `json:"min_free_mb"`
}

// Config is the daemon configuration file, /etc/barod.yaml by default.
type Config struct {
	Generation   string             `json:"generation"` // bmp388, bmp280, bme280 or auto
	Driver       string             `json:"driver"`     // embd or go-i2c
	Bus          int                `json:"bus"`
	Address      uint8              `json:"address"`
	Acquisition  string             `json:"acquisition"` // forced, normal or fifo
	Interval     Duration           `json:"interval"`
	Oversampling OversamplingConfig `json:"oversampling"`
	IIR          uint8              `json:"iir"`      // filter coefficient, 0 (off) to 127
	ODR          float64            `json:"odr_hz"`   // BMP388 output data rate
	Standby      Duration           `json:"standby"`  // BMP280 family standby in normal mode
	FIFO         FIFOSettings       `json:"fifo"`
	IntPin       int                `json:"int_pin"` // BCM pin wired to INT, 0 to poll
	QNH          float64            `json:"qnh"`     // Pa, for the altitude
	Listen       string             `json:"listen"`
	NATS         NATSConfig         `json:"nats"`
	Datalog      DatalogConfig      `json:"datalog"`
	LogLevel     string             `json:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Generation:   "auto",
		Driver:       "embd",
		Bus:          1,
		Address:      bosch.AddressPrimary,
		Acquisition:  "forced",
		Interval:     Duration(100 * time.Millisecond),
		Oversampling: OversamplingConfig{Pressure: 8, Temperature: 1, Humidity: 1},
		IIR:          3,
		ODR:          50,
		Standby:      Duration(62500 * time.Microsecond),
		FIFO:         FIFOSettings{Watermark: 70},
		QNH:          101325,
		Listen:       ":9978",
		NATS:         NATSConfig{Subject: "baro.sample"},
		Datalog:      DatalogConfig{MinFreeMB: 50},
		LogLevel:     "info",
	}
}

// LoadConfig reads path over the defaults. A missing file leaves the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Generations returns the generations to probe, in order.
func (c Config) Generations() ([]bosch.Generation, error) {
	switch strings.ToLower(c.Generation) {
	case "bmp388", "bmp390":
		return []bosch.Generation{bosch.BMP388}, nil
	case "bmp280":
		return []bosch.Generation{bosch.BMP280}, nil
	case "bme280":
		return []bosch.Generation{bosch.BME280}, nil
	case "", "auto":
		return []bosch.Generation{bosch.BMP388, bosch.BME280, bosch.BMP280}, nil
	}
	return nil, fmt.Errorf("unknown sensor generation %q", c.Generation)
}

func oversampling(n uint8) (bosch.Oversampling, error) {
	for o := bosch.Sampling1X; o <= bosch.Sampling32X; o++ {
		if 1<<o == int(n) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("oversampling must be a power of two up to 32, got %d", n)
}

func filter(n uint8) (bosch.FilterCoefficient, error) {
	for c := bosch.Coeff0; c <= bosch.Coeff127; c++ {
		if 1<<c-1 == int(n) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("iir coefficient must be one of 0, 1, 3 ... 127, got %d", n)
}

// outputDataRate picks the fastest rate not above hz.
func outputDataRate(hz float64) (bosch.OutputDataRate, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("odr_hz must be positive, got %v", hz)
	}
	for r := bosch.Odr200; r <= bosch.Odr0p0015; r++ {
		if 200/float64(int(1)<<r) <= hz {
			return r, nil
		}
	}
	return bosch.Odr0p0015, nil
}

var standbyTimes = []struct {
	d time.Duration
	s bosch.StandbyTime
}{
	{500 * time.Microsecond, bosch.Standby0p5ms},
	{10 * time.Millisecond, bosch.Standby10ms},
	{20 * time.Millisecond, bosch.Standby20ms},
	{62500 * time.Microsecond, bosch.Standby62p5ms},
	{125 * time.Millisecond, bosch.Standby125ms},
	{250 * time.Millisecond, bosch.Standby250ms},
	{500 * time.Millisecond, bosch.Standby500ms},
	{time.Second, bosch.Standby1000ms},
}

// standby picks the longest standby time not above d.
func standby(d time.Duration) bosch.StandbyTime {
	s := bosch.Standby0p5ms
	for _, t := range standbyTimes {
		if t.d <= d {
			s = t.s
		}
	}
	return s
}

// DeviceConfig translates the file's human units into register settings.
func (c Config) DeviceConfig() (bosch.Config, error) {
	var (
		dc  bosch.Config
		err error
	)
	if dc.Pressure, err = oversampling(c.Oversampling.Pressure); err != nil {
		return dc, fmt.Errorf("pressure %w", err)
	}
	if dc.Temperature, err = oversampling(c.Oversampling.Temperature); err != nil {
		return dc, fmt.Errorf("temperature %w", err)
	}
	if dc.Humidity, err = oversampling(c.Oversampling.Humidity); err != nil {
		return dc, fmt.Errorf("humidity %w", err)
	}
	if dc.IIR, err = filter(c.IIR); err != nil {
		return dc, err
	}
	if dc.ODR, err = outputDataRate(c.ODR); err != nil {
		return dc, err
	}
	dc.Standby = standby(time.Duration(c.Standby))
	return dc, nil
}

func (c Config) BarometerConfig() (sensors.BarometerConfig, error) {
	a, err := sensors.ParseAcquisition(strings.ToLower(c.Acquisition))
	if err != nil {
		return sensors.BarometerConfig{}, err
	}
	if c.FIFO.Subsampling > 7 {
		return sensors.BarometerConfig{}, fmt.Errorf("fifo subsampling must be 0..7, got %d", c.FIFO.Subsampling)
	}
	return sensors.BarometerConfig{
		Acquisition: a,
		Interval:    time.Duration(c.Interval),
		FIFO: bosch.FIFOConfig{
			SensorTime:  c.FIFO.SensorTime,
			Filtered:    c.FIFO.Filtered,
			Subsampling: c.FIFO.Subsampling,
		},
	}, nil
}

func (c Config) Level() (logger.LogLevel, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logger.DebugLevel, nil
	case "", "info":
		return logger.InfoLevel, nil
	case "warn", "warning":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return logger.InfoLevel, fmt.Errorf("unknown log level %q", c.LogLevel)
}
