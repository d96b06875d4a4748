package main

import (
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
)

// SampleUpdate is the message published for every sample.
type SampleUpdate struct {
	Sensor        string    `json:"sensor"`
	Source        string    `json:"source"`
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	Pressure      float64   `json:"pressure"`
	Humidity      *float64  `json:"humidity,omitempty"`
	Altitude      float64   `json:"altitude"`
	VerticalSpeed float64   `json:"vertical_speed"`
	SensorTime    *uint32   `json:"sensor_time,omitempty"`
}

type publisher interface {
	Publish(u SampleUpdate) error
	Close()
}

type natsPublisher struct {
	nc      *nats.Conn
	subject string
}

func newNATSPublisher(url, subject string) (*natsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				lg.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsPublisher{nc: nc, subject: subject}, nil
}

func (p *natsPublisher) Publish(u SampleUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close flushes pending messages before closing the connection.
func (p *natsPublisher) Close() {
	if err := p.nc.Flush(); err != nil {
		lg.Warnf("nats flush: %v", err)
	}
	p.nc.Close()
}
