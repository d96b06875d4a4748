package datalog

import (
	"fmt"
	"time"
)

// ReadingsTable holds the samples of the barometer daemon.
const ReadingsTable = "baro"

// Reading is one row of ReadingsTable.
type Reading struct {
	Time        time.Time
	Temperature float64 // degrees C
	Pressure    float64 // Pa
	Humidity    float64 // %, 0 without a humidity sensor
	Altitude    float64 // pressure altitude, m
	SensorTime  uint32  // BMP388 FIFO sensor time, 0 if none
	Source      string  // acquisition mode
}

// WriteReading queues r for ReadingsTable.
func (l *Log) WriteReading(r Reading) bool {
	return l.Write(ReadingsTable, r)
}

// Readings returns rows of ReadingsTable taken at or after since, oldest
// first. With limit > 0 only the newest limit rows are returned.
func (l *Log) Readings(since time.Time, limit int) ([]Reading, error) {
	if err := l.CreateTable(ReadingsTable, Reading{}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := l.db.Query(`SELECT Time, Temperature, Pressure, Humidity, Altitude, SensorTime, Source
		FROM (SELECT id, Time, Temperature, Pressure, Humidity, Altitude, SensorTime, Source
			FROM `+ReadingsTable+` WHERE Time >= ? ORDER BY id DESC LIMIT ?)
		ORDER BY id`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("datalog: query %s: %w", ReadingsTable, err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var (
			r  Reading
			ns int64
		)
		if err := rows.Scan(&ns, &r.Temperature, &r.Pressure, &r.Humidity, &r.Altitude, &r.SensorTime, &r.Source); err != nil {
			return nil, fmt.Errorf("datalog: scan %s: %w", ReadingsTable, err)
		}
		if ns != 0 {
			r.Time = time.Unix(0, ns)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
