package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	temperature prometheus.Gauge
	pressure    prometheus.Gauge
	humidity    prometheus.Gauge
	altitude    prometheus.Gauge
	vspeed      prometheus.Gauge
	cpuTemp     prometheus.Gauge

	samples *prometheus.CounterVec
	errors  prometheus.Counter
	uptime  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_temperature_celsius",
			Help: "Sensor temperature.",
		}),
		pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_pressure_pascals",
			Help: "Static pressure.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_humidity_percent",
			Help: "Relative humidity, BME280 only.",
		}),
		altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_pressure_altitude_meters",
			Help: "Pressure altitude for the configured QNH.",
		}),
		vspeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_vertical_speed_meters_per_second",
			Help: "Smoothed rate of climb.",
		}),
		cpuTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "current_temp",
			Help: "Current CPU temp.",
		}),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baro_samples_total",
				Help: "Samples read, by acquisition mode.",
			},
			[]string{"source"},
		),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baro_errors_total",
			Help: "Failed acquisitions.",
		}),
		uptime: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "total_uptime",
			Help: "Total uptime.",
		}),
	}
	reg.MustRegister(m.temperature, m.pressure, m.humidity, m.altitude, m.vspeed,
		m.cpuTemp, m.samples, m.errors, m.uptime)
	return m
}
