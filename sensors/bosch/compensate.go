package bosch

// RawSample is one set of uncompensated ADC counts.
type RawSample struct {
	Pressure    uint32
	Temperature uint32
	Humidity    uint32 // BME280 only
	HasHumidity bool
}

// Reading is a compensated measurement: degrees C, Pa and % relative humidity.
type Reading struct {
	Temperature float64
	Pressure    float64
	Humidity    float64
}

// Compensate388Temperature linearizes a BMP388 temperature count. The result
// is both the temperature in degrees C and the input of Compensate388Pressure.
func Compensate388Temperature(c *Calibration, raw uint32) float64 {
	pd1 := float64(raw) - c.T1
	pd2 := pd1 * c.T2
	return pd2 + (pd1*pd1)*c.T3
}

// Compensate388Pressure returns Pa for a BMP388 pressure count at the
// linearized temperature t.
func Compensate388Pressure(c *Calibration, raw uint32, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	p := float64(raw)

	out1 := c.P5 + c.P6*t + c.P7*t2 + c.P8*t3
	out2 := p * (c.P1 + c.P2*t + c.P3*t2 + c.P4*t3)

	pd1 := p * p
	pd2 := c.P9 + c.P10*t
	pd3 := pd1 * pd2
	pd4 := pd3 + (pd1*p)*c.P11

	return out1 + out2 + pd4
}

// Compensate280Temperature returns degrees C and t_fine, the carry over term
// the pressure and humidity formulas need.
func Compensate280Temperature(c *Calibration, raw uint32) (temp, fine float64) {
	adc := float64(raw)
	var1 := (adc/16384.0 - c.T1/1024.0) * c.T2
	v := adc/131072.0 - c.T1/8192.0
	var2 := v * v * c.T3
	fine = var1 + var2
	return fine / 5120.0, fine
}

// Compensate280Pressure returns Pa. It returns 0 when P1 would make the
// formula divide by zero.
func Compensate280Pressure(c *Calibration, raw uint32, fine float64) float64 {
	var1 := fine/2.0 - 64000.0
	var2 := var1 * var1 * c.P6 / 32768.0
	var2 = var2 + var1*c.P5*2.0
	var2 = var2/4.0 + c.P4*65536.0
	var3 := c.P3 * var1 * var1 / 524288.0
	var1 = (var3 + c.P2*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * c.P1
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(raw)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = c.P9 * p * p / 2147483648.0
	var2 = p * c.P8 / 32768.0
	return p + (var1+var2+c.P7)/16.0
}

// Compensate280Humidity returns % relative humidity for a BME280 count. The
// value is not clamped to 0..100.
func Compensate280Humidity(c *Calibration, raw uint32, fine float64) float64 {
	var1 := fine - 76800.0
	var2 := c.H4*64.0 + c.H5/16384.0*var1
	var3 := float64(raw) - var2
	var4 := c.H2 / 65536.0
	var5 := 1.0 + c.H3/67108864.0*var1
	var6 := 1.0 + c.H6/67108864.0*var1*var5
	var6 = var3 * var4 * (var5 * var6)
	return var6 * (1.0 - c.H1*var6/524288.0)
}

func (g *generation) compensate(c *Calibration, raw RawSample) Reading {
	var r Reading
	switch g.family {
	case family388:
		r.Temperature = Compensate388Temperature(c, raw.Temperature)
		r.Pressure = Compensate388Pressure(c, raw.Pressure, r.Temperature)
	case family280:
		var fine float64
		r.Temperature, fine = Compensate280Temperature(c, raw.Temperature)
		r.Pressure = Compensate280Pressure(c, raw.Pressure, fine)
		if c.Humidity && raw.HasHumidity {
			r.Humidity = Compensate280Humidity(c, raw.Humidity, fine)
		}
	}
	return r
}
