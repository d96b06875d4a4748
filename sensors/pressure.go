// Package sensors runs Bosch barometers in the background and serves their latest readings.
package sensors

// PressureReader provides an interface to a sensor reading pressure and maybe
// temperature or humidity, like the BMP280 or BMP388.
type PressureReader interface {
	Temperature() (temp float64, tempError error) // Temperature returns the temperature in degrees C.
	Pressure() (press float64, pressError error)  // Pressure returns the atmospheric pressure in Pa.
	Close()                                       // Close stops reading from the sensor.
}

// HumidityReader is implemented by readers whose sensor also measures humidity.
type HumidityReader interface {
	Humidity() (float64, error) // Humidity returns the relative humidity in %.
}
