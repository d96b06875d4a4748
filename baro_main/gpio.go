package main

import (
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const edgePoll = 2 * time.Millisecond

// edgePin is the part of rpio.Pin the watcher needs.
type edgePin interface {
	Detect(edge rpio.Edge)
	EdgeDetected() bool
}

// watchInterrupt turns rising edges on the BCM pin wired to the sensor's INT
// output into acquisition triggers. After quit the trigger channel is closed,
// and done is closed once the GPIO memory has been released.
func watchInterrupt(pin int, quit <-chan struct{}) (trigger, done <-chan struct{}, err error) {
	if err := rpio.Open(); err != nil {
		return nil, nil, err
	}
	p := rpio.Pin(pin)
	p.Input()
	p.PullDown()
	p.Detect(rpio.RiseEdge)

	trigger, done = watchEdges(p, edgePoll, quit, func() {
		if err := rpio.Close(); err != nil {
			lg.Warnf("gpio close: %v", err)
		}
	})
	return trigger, done, nil
}

// watchEdges polls p until quit, then disables detection, closes the trigger
// channel, calls release and finally closes done.
func watchEdges(p edgePin, poll time.Duration, quit <-chan struct{}, release func()) (<-chan struct{}, <-chan struct{}) {
	trigger := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer release()
		defer p.Detect(rpio.NoEdge)
		defer close(trigger)
		t := time.NewTicker(poll)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
			}
			if !p.EdgeDetected() {
				continue
			}
			select {
			case trigger <- struct{}{}:
			default:
				// a drain is already pending
			}
		}
	}()
	return trigger, done
}
