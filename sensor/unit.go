// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package sensor implements the sensor unit: the active flag, polling
// interval and publishing loop of one simulated sensor at one location.
package sensor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/container"
	"github.com/monitorizapt/sensorfleet/internal/log"
	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/payload"
	"github.com/monitorizapt/sensorfleet/reading"
)

const (
	// MinInterval is the shortest polling interval a unit accepts.
	MinInterval = time.Second

	// DefaultInterval is the polling interval of a new unit.
	DefaultInterval = 3333 * time.Millisecond
)

type (
	// Publisher sends a payload to the broker. Publishing is best-effort;
	// implementations report failures through their own channels.
	Publisher interface {
		Publish(ctx context.Context, topic string, payload []byte)
	}

	// PayloadBuilder serializes a reading for publication.
	PayloadBuilder interface {
		Build(s payload.Sensor, r reading.Reading) ([]byte, error)
	}

	// Listener observes every reading the loop publishes. Listeners run on the
	// unit's loop goroutine and must not call Stop.
	Listener = func(u *Unit, r reading.Reading, payload []byte)

	// Unit is one sensor bound to one location. All methods are safe for
	// concurrent use.
	Unit struct {
		id      string
		loc     location.Location
		gen     reading.Generator
		pub     Publisher
		builder PayloadBuilder

		active   atomic.Bool
		interval atomic.Int64
		last     atomic.Pointer[reading.Reading]

		// Guards the loop handles below and transitions of running.
		mu      sync.Mutex
		running atomic.Bool
		stop    *container.Background
		exited  chan struct{}

		listeners *container.List[Listener]
		log       logger
	}
)

// New creates a stopped unit for loc. It publishes through pub, which is
// normally the shared connection manager.
func New(
	loc location.Location,
	gen reading.Generator,
	pub Publisher,
	opts ...UnitOption,
) *Unit {
	var o UnitOptions
	o.Apply(opts)
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.Builder == nil {
		o.Builder = &payload.Builder{}
	}

	u := &Unit{
		id:        loc.SensorID(),
		loc:       loc,
		gen:       gen,
		pub:       pub,
		builder:   o.Builder,
		listeners: container.NewList[Listener](),
	}
	u.log = logger{log.Wrap(o.Logger).With(sensorAttr(u.id))}
	u.SetInterval(o.Interval)
	u.active.Store(o.Active)
	return u
}

// ID returns the unique sensor ID, e.g. PT-SENSOR-LISBOA_BAIXA.
func (u *Unit) ID() string { return u.id }

// Kind returns what the unit measures.
func (u *Unit) Kind() reading.Kind { return u.gen.Kind() }

// Location returns the location the unit is bound to.
func (u *Unit) Location() location.Location { return u.loc }

// Read generates a fresh reading and caches it as the last reading. It does
// not depend on the active flag or on the loop running.
func (u *Unit) Read() reading.Reading {
	r := u.gen.Generate()
	u.last.Store(&r)
	return r
}

// Last returns the most recent reading, if any.
func (u *Unit) Last() (reading.Reading, bool) {
	r := u.last.Load()
	if r == nil {
		return reading.Reading{}, false
	}
	return *r, true
}

// Activate makes the loop publish from its next tick.
func (u *Unit) Activate() { u.active.Store(true) }

// Deactivate stops publishing from the next tick. The loop keeps running.
func (u *Unit) Deactivate() { u.active.Store(false) }

// Active reports the active flag.
func (u *Unit) Active() bool { return u.active.Load() }

// SetInterval sets the polling interval to max(MinInterval, d). It takes
// effect from the next sleep.
func (u *Unit) SetInterval(d time.Duration) {
	u.interval.Store(int64(max(MinInterval, d)))
}

// Interval returns the current polling interval.
func (u *Unit) Interval() time.Duration {
	return time.Duration(u.interval.Load())
}

// Running reports whether the loop has been started and not stopped.
func (u *Unit) Running() bool { return u.running.Load() }

// AddListener registers fn for published readings. The returned function
// removes it.
func (u *Unit) AddListener(fn Listener) (remove func()) {
	return u.listeners.Append(fn)
}

// ApplyCommand applies a remote command payload. Payloads that cannot be
// parsed are ignored.
func (u *Unit) ApplyCommand(data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		u.log.ignored(context.Background(), err)
		return
	}
	cmd.Apply(u)
}
