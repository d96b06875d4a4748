package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/b3nn0/baro/common"
	"github.com/b3nn0/baro/sensors/bosch"
	logger "github.com/d2r2/go-logger"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
)

// Prints raw and compensated samples as CSV, and the FIFO contents when -fifo
// is set.
func main() {
	bus := flag.Int("bus", 1, "i2c bus")
	addr := flag.Int("addr", int(bosch.AddressPrimary), "i2c address")
	gen := flag.String("gen", "bmp388", "bmp388, bmp280 or bme280")
	fifo := flag.Bool("fifo", false, "read through the fifo (bmp388)")
	n := flag.Int("n", 100, "samples")
	debug := flag.Bool("debug", false, "log register traffic")
	flag.Parse()
	defer logger.FinalizeLogger()
	if *debug {
		logger.ChangePackageLogLevel("bosch", logger.DebugLevel)
	}

	g := map[string]bosch.Generation{"bmp388": bosch.BMP388, "bmp280": bosch.BMP280, "bme280": bosch.BME280}[*gen]
	if g == nil {
		fmt.Fprintf(os.Stderr, "unknown generation %s\n", *gen)
		os.Exit(2)
	}

	i2cbus := bosch.NewBus(embd.NewI2CBus(byte(*bus)))
	defer i2cbus.Close()
	d, err := bosch.New(i2cbus.Transport(byte(*addr)), g, bosch.Config{Pressure: bosch.Sampling8X, ODR: bosch.Odr50, IIR: bosch.Coeff3})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer d.Close()
	fmt.Fprintf(os.Stderr, "%s chip id %#02x\n%+v\n", d.Generation(), d.ChipID(), d.Calibration())

	normal := bosch.Mode{Power: bosch.Normal, Pressure: true, Temperature: true}
	if *fifo {
		if err := d.ConfigureFIFO(bosch.FIFOConfig{Pressure: true, Temperature: true, SensorTime: true}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := d.SetMode(normal); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("t,raw_temp,raw_press,temp,press,alt")
	clock := time.NewTicker(100 * time.Millisecond)
	defer clock.Stop()
	for i := 0; i < *n; i++ {
		<-clock.C
		if *fifo {
			_, err := d.DrainFIFO(func(f bosch.FIFOFrame) error {
				if !f.HasPressure || !f.HasTemperature {
					fmt.Fprintln(os.Stderr, f)
					return nil
				}
				r := d.Compensate(f.Raw())
				fmt.Printf("%d,%d,%d,%3.2f,%4.2f,%5.1f\n", f.SensorTime, f.Temperature, f.Pressure,
					r.Temperature, r.Pressure, common.Altitude(r.Pressure, common.StandardQNH))
				return nil
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			continue
		}
		raw, err := d.ReadRaw()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		r := d.Compensate(raw)
		fmt.Printf("%v,%d,%d,%3.2f,%4.2f,%5.1f\n", time.Now().Format("15:04:05.000"), raw.Temperature, raw.Pressure,
			r.Temperature, r.Pressure, common.Altitude(r.Pressure, common.StandardQNH))
	}
}
