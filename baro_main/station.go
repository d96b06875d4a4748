package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/b3nn0/baro/common"
	"github.com/b3nn0/baro/datalog"
	"github.com/b3nn0/baro/sensors"
	humanize "github.com/dustin/go-humanize"
)

// vsDecay is the time constant of the vertical speed average, a little faster
// than a typical VSI.
const vsDecay = 5.0

// pressWindow is how many recent pressures the status page summarizes.
const pressWindow = 60

// station fans every sample out to the metrics, the message bus and the data
// log, and keeps what the status page shows.
type station struct {
	sensor   string
	source   string
	qnh      float64
	humidity bool

	m   *metrics
	pub publisher    // nil when disabled
	log *datalog.Log // nil when disabled
	err func() error // last acquisition error

	mu        sync.Mutex
	started   time.Time
	last      sensors.Sample
	haveLast  bool
	altitude  float64
	vspeed    float64
	published uint64
	cpuTemp   float32
	recent    []float64 // last pressWindow pressures, oldest first
}

func (s *station) onSample(smp sensors.Sample) {
	alt := common.Altitude(smp.Pressure, s.qnh)

	s.mu.Lock()
	if s.haveLast {
		dt := smp.Time.Sub(s.last.Time).Seconds()
		s.vspeed = common.VerticalSpeed(s.vspeed, alt-s.altitude, dt, vsDecay)
	}
	s.last, s.haveLast, s.altitude = smp, true, alt
	if len(s.recent) == pressWindow {
		s.recent = append(s.recent[:0], s.recent[1:]...)
	}
	s.recent = append(s.recent, smp.Pressure)
	vs := s.vspeed
	s.mu.Unlock()

	s.m.temperature.Set(smp.Temperature)
	s.m.pressure.Set(smp.Pressure)
	s.m.altitude.Set(alt)
	s.m.vspeed.Set(vs)
	if s.humidity {
		s.m.humidity.Set(smp.Humidity)
	}
	s.m.samples.WithLabelValues(s.source).Inc()

	if s.pub != nil {
		u := SampleUpdate{
			Sensor:        s.sensor,
			Source:        s.source,
			Time:          smp.Time,
			Temperature:   smp.Temperature,
			Pressure:      smp.Pressure,
			Altitude:      alt,
			VerticalSpeed: vs,
		}
		if s.humidity {
			h := smp.Humidity
			u.Humidity = &h
		}
		if smp.HasSensorTime {
			st := smp.SensorTime
			u.SensorTime = &st
		}
		if err := s.pub.Publish(u); err != nil {
			lg.Warnf("publish: %v", err)
		} else {
			s.mu.Lock()
			s.published++
			s.mu.Unlock()
		}
	}

	if s.log != nil {
		s.log.WriteReading(datalog.Reading{
			Time:        smp.Time,
			Temperature: smp.Temperature,
			Pressure:    smp.Pressure,
			Humidity:    smp.Humidity,
			Altitude:    alt,
			SensorTime:  smp.SensorTime,
			Source:      s.source,
		})
	}
}

func (s *station) onError(err error) {
	s.m.errors.Inc()
}

// updateStats runs once a second until quit is closed.
func (s *station) updateStats(quit <-chan struct{}) {
	updateTicker := time.NewTicker(1 * time.Second)
	defer updateTicker.Stop()
	for {
		select {
		case <-updateTicker.C:
		case <-quit:
			return
		}
		s.m.uptime.Inc()
		s.mu.Lock()
		s.m.cpuTemp.Set(float64(s.cpuTemp))
		s.mu.Unlock()
	}
}

func (s *station) setCPUTemp(t float32) {
	s.mu.Lock()
	s.cpuTemp = t
	s.mu.Unlock()
}

type statusReport struct {
	Sensor        string  `json:"sensor"`
	Acquisition   string  `json:"acquisition"`
	Uptime        string  `json:"uptime"`
	LastSample    string  `json:"last_sample"`
	Temperature   float64 `json:"temperature"`
	Pressure      float64 `json:"pressure"`
	Humidity      float64 `json:"humidity,omitempty"`
	PressureMean  float64 `json:"pressure_mean,omitempty"`
	PressureNoise float64 `json:"pressure_noise,omitempty"`
	PressureRange float64 `json:"pressure_range,omitempty"`
	Altitude      float64 `json:"altitude"`
	VerticalSpeed float64 `json:"vertical_speed"`
	CPUTemp       float32 `json:"cpu_temp,omitempty"`
	Published     string  `json:"published"`
	Logged        string  `json:"logged,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func (s *station) status(now time.Time) statusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := statusReport{
		Sensor:        s.sensor,
		Acquisition:   s.source,
		Uptime:        strings.TrimSpace(humanize.RelTime(s.started, now, "", "")),
		LastSample:    "never",
		Altitude:      s.altitude,
		VerticalSpeed: s.vspeed,
		CPUTemp:       s.cpuTemp,
		Published:     humanize.Comma(int64(s.published)),
	}
	if s.haveLast {
		r.LastSample = humanize.RelTime(s.last.Time, now, "ago", "from now")
		r.Temperature = s.last.Temperature
		r.Pressure = s.last.Pressure
		r.Humidity = s.last.Humidity
	}
	if v, ok := common.Mean(s.recent); ok {
		r.PressureMean = v
	}
	if v, ok := common.Stdev(s.recent); ok {
		r.PressureNoise = v
	}
	if v, ok := common.ArrayRange(s.recent); ok {
		r.PressureRange = v
	}
	if s.log != nil {
		w, d := s.log.Stats()
		r.Logged = humanize.Comma(int64(w)) + " rows, " + humanize.Comma(int64(d)) + " dropped"
	}
	if s.err != nil {
		if err := s.err(); err != nil {
			r.Error = err.Error()
		}
	}
	return r
}

func (s *station) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	statusJSON, _ := json.Marshal(s.status(time.Now()))
	w.Header().Set("Content-Type", "application/json")
	w.Write(statusJSON)
}
