package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/b3nn0/baro/datalog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	dbPath   = flag.String("db", "/var/log/baro.db", "datalog written by barod")
	outDir   = flag.String("out", ".", "directory for the png files")
	window   = flag.Duration("window", time.Hour, "how far back to plot")
	interval = flag.Duration("interval", 0, "redraw every interval and serve -out on -listen; 0 draws once")
	listen   = flag.String("listen", ":8080", "address for serving the plots")
)

type series struct {
	name  string
	unit  string
	value func(datalog.Reading) float64
}

var plots = []series{
	{"pressure", "Pa", func(r datalog.Reading) float64 { return r.Pressure }},
	{"altitude", "m", func(r datalog.Reading) float64 { return r.Altitude }},
	{"temperature", "°C", func(r datalog.Reading) float64 { return r.Temperature }},
}

func draw(l *datalog.Log) error {
	readings, err := l.Readings(time.Now().Add(-*window), 0)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return fmt.Errorf("no readings in the last %v", *window)
	}
	for _, s := range plots {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s, %d samples", s.name, len(readings))
		p.X.Label.Text = "Time"
		p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
		p.Y.Label.Text = s.unit

		xys := make(plotter.XYs, len(readings))
		for i, r := range readings {
			xys[i].X = float64(r.Time.Unix())
			xys[i].Y = s.value(r)
		}
		if err := plotutil.AddLines(p, s.name, xys); err != nil {
			return err
		}
		if err := p.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(*outDir, s.name+".png")); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	flag.Parse()
	l, err := datalog.Open(*dbPath, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer l.Close()

	if *interval <= 0 {
		if err := draw(l); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	go func() {
		for {
			if err := draw(l); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			time.Sleep(*interval)
		}
	}()
	http.Handle("/", http.FileServer(http.Dir(*outDir)))
	if err := http.ListenAndServe(*listen, nil); err != nil {
		fmt.Printf("ListenAndServe: %s\n", err.Error())
	}
}
