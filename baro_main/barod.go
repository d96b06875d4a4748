package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/b3nn0/baro/common"
	"github.com/b3nn0/baro/datalog"
	"github.com/b3nn0/baro/sensors"
	"github.com/b3nn0/baro/sensors/bosch"
	logger "github.com/d2r2/go-logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/takama/daemon"
)

const (
	// name of the service
	name        = "barod"
	description = "Bosch barometer sampling daemon"

	configLocation = "/etc/barod.yaml"
)

var lg = logger.NewPackageLogger("main", logger.InfoLevel)

// runner is one bring-up of the sensor with everything hanging off it. A
// config reload stops it and starts a new one.
type runner struct {
	st   *station
	dev  *bosch.Device
	bus  io.Closer
	baro *sensors.Barometer
	pub  publisher
	log  *datalog.Log
	quit chan struct{}

	gpioDone <-chan struct{} // closed once the INT watcher released the GPIO
}

func start(cfg Config, m *metrics) (*runner, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	for _, pkg := range []string{"main", "bosch", "sensors", "datalog"} {
		logger.ChangePackageLogLevel(pkg, level)
	}

	bc, err := cfg.BarometerConfig()
	if err != nil {
		return nil, err
	}
	if cfg.IntPin != 0 && bc.Acquisition == sensors.Forced {
		return nil, errors.New("int_pin needs normal or fifo acquisition")
	}

	dev, bus, err := openDevice(cfg)
	if err != nil {
		return nil, err
	}
	r := &runner{dev: dev, bus: bus, quit: make(chan struct{})}
	fail := func(err error) (*runner, error) {
		r.stop()
		return nil, err
	}

	if cfg.IntPin != 0 {
		if err := setupInterrupts(dev, bc.Acquisition, cfg.FIFO.Watermark); err != nil {
			return fail(err)
		}
		if bc.Trigger, r.gpioDone, err = watchInterrupt(cfg.IntPin, r.quit); err != nil {
			return fail(fmt.Errorf("gpio %d: %w", cfg.IntPin, err))
		}
	}
	if cfg.NATS.URL != "" {
		pub, err := newNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fail(fmt.Errorf("nats %s: %w", cfg.NATS.URL, err))
		}
		r.pub = pub
	}
	if cfg.Datalog.Path != "" {
		if r.log, err = datalog.Open(cfg.Datalog.Path, cfg.Datalog.MinFreeMB*1024*1024); err != nil {
			return fail(err)
		}
	}

	r.st = &station{
		sensor:   dev.Generation().String(),
		source:   bc.Acquisition.String(),
		qnh:      cfg.QNH,
		humidity: dev.Calibration().Humidity,
		m:        m,
		pub:      r.pub,
		log:      r.log,
		started:  time.Now(),
	}
	bc.OnSample = r.st.onSample
	bc.OnError = r.st.onError
	if r.baro, err = sensors.NewBarometer(dev, bc); err != nil {
		return fail(err)
	}
	r.st.err = r.baro.Err

	go r.st.updateStats(r.quit)
	go common.CpuTempMonitor(time.Second, r.quit, r.st.setCPUTemp)
	lg.Infof("%s running in %s acquisition", r.st.sensor, r.st.source)
	return r, nil
}

// stop tears down in reverse order of start. It is safe on a partially
// started runner.
func (r *runner) stop() {
	if r.baro != nil {
		r.baro.Close()
	}
	r.stopGPIO()
	if r.pub != nil {
		r.pub.Close()
	}
	if r.log != nil {
		if err := r.log.Close(); err != nil {
			lg.Warnf("close datalog: %v", err)
		}
	}
	if err := r.dev.Close(); err != nil {
		lg.Warnf("close sensor: %v", err)
	}
	if r.bus != nil {
		r.bus.Close()
	}
}

// stopGPIO closes quit and waits for the INT watcher, if any, to release the
// GPIO. A reload opens it again right after stop returns.
func (r *runner) stopGPIO() {
	close(r.quit)
	if r.gpioDone != nil {
		<-r.gpioDone
	}
}

// current holds the running runner for the HTTP handler.
type current struct {
	mu sync.Mutex
	r  *runner
}

func (c *current) set(r *runner) {
	c.mu.Lock()
	c.r = r
	c.mu.Unlock()
}

func (c *current) handleStatusRequest(w http.ResponseWriter, req *http.Request) {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r == nil {
		http.Error(w, "sensor not running", http.StatusServiceUnavailable)
		return
	}
	r.st.handleStatusRequest(w, req)
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	configPath := flag.String("config", configLocation, "configuration file")
	listen := flag.String("listen", "", "status and metrics address, overrides the configuration file")
	mode := flag.String("mode", "", "acquisition mode (forced, normal, fifo), overrides the configuration file")
	flag.Parse()

	usage := "Usage: " + name + " install | remove | start | stop | status"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		command := flag.Arg(0)
		switch command {
		case "install", "remove", "start", "stop":
			if !common.IsRunningAsRoot() {
				return usage, fmt.Errorf("%s must run as root", command)
			}
		}
		switch command {
		case "install":
			return service.Install("-config", *configPath)
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	readSettings := func() (Config, error) {
		cfg, err := LoadConfig(*configPath)
		if *listen != "" {
			cfg.Listen = *listen
		}
		if *mode != "" {
			cfg.Acquisition = *mode
		}
		return cfg, err
	}
	cfg, err := readSettings()
	if err != nil {
		return "can't read settings", err
	}

	m := newMetrics(prometheus.DefaultRegisterer)
	r, err := start(cfg, m)
	if err != nil {
		return "can't start the sensor", err
	}
	var cur current
	cur.set(r)

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	http.HandleFunc("/", cur.handleStatusRequest)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.Listen, nil); err != nil {
			lg.Errorf("http: %v", err)
		}
	}()

	// interrupt by system signal
	for {
		killSignal := <-interrupt
		lg.Infof("Got signal: %v", killSignal)
		switch killSignal {
		case syscall.SIGUSR1:
			next, err := readSettings()
			if err != nil {
				lg.Errorf("can't read settings %s: %v", *configPath, err)
				continue
			}
			cur.set(nil)
			if r != nil {
				r.stop()
			}
			if r, err = start(next, m); err != nil {
				// keep the daemon up so the next reload can fix the config
				lg.Errorf("restart: %v", err)
				r = nil
				continue
			}
			cur.set(r)
			lg.Infof("read in settings")
		case syscall.SIGINT:
			if r != nil {
				r.stop()
			}
			return "Daemon was interrupted by system signal", nil
		default:
			if r != nil {
				r.stop()
			}
			return "Daemon was killed", nil
		}
	}
}

func main() {
	defer logger.FinalizeLogger()
	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		lg.Errorf("Error: %v", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		lg.Errorf("%s: %v", status, err)
		logger.FinalizeLogger()
		os.Exit(1)
	}
	fmt.Println(status)
}
