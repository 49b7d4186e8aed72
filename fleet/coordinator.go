// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package fleet runs one sensor unit per location against a shared broker
// connection and fans their activity out to observers, recorders and
// metrics.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/container"
	"github.com/monitorizapt/sensorfleet/internal/log"
	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/mqtt"
	"github.com/monitorizapt/sensorfleet/payload"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/monitorizapt/sensorfleet/sensor"
)

type (
	// Broker is the connection manager as used by the fleet. It is
	// implemented by *mqtt.Manager.
	Broker interface {
		sensor.Publisher
		ID() string
		IsConnected() bool
		ConnectAsync() *mqtt.Attempt
		TestConnection(ctx context.Context) <-chan bool
		RegisterCommandHandler(loc location.Location, h mqtt.CommandHandler) error
		RegisterConnectionListener(fn mqtt.ConnectionListener) (remove func())
		RegisterPublishListener(fn mqtt.PublishListener) (remove func())
		Shutdown()
	}

	// Coordinator owns the sensor units of every location. All methods are
	// safe for concurrent use.
	Coordinator struct {
		broker  Broker
		units   []*sensor.Unit
		byLoc   map[location.Location]*sensor.Unit
		options CoordinatorOptions

		snapshotObservers *container.List[SnapshotObserver]
		logObservers      *container.List[LogObserver]

		mu      sync.Mutex
		started bool
		stopped bool
		detach  []func()

		log logger
	}
)

// Which kind of sensor is deployed where.
var kinds = map[location.Location]reading.Kind{
	location.LisboaCampusIPLuso: reading.Temperature,
	location.CoimbraCentro:      reading.Temperature,
	location.EvoraUniversidade:  reading.Temperature,
	location.LisboaBaixa:        reading.Humidity,
	location.FaroMarina:         reading.Humidity,
	location.PortoMatosinhos:    reading.AirQuality,
	location.BragaSameiro:       reading.AirQuality,
}

// KindOf returns the kind of sensor deployed at loc.
func KindOf(loc location.Location) reading.Kind {
	return kinds[loc]
}

// New creates an inactive, stopped unit for every registered location.
func New(broker Broker, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		broker:            broker,
		byLoc:             make(map[location.Location]*sensor.Unit),
		snapshotObservers: container.NewList[SnapshotObserver](),
		logObservers:      container.NewList[LogObserver](),
	}

	c.options.Apply(opts)
	if c.options.Interval <= 0 {
		c.options.Interval = sensor.DefaultInterval
	}
	if c.options.RecordTimeout <= 0 {
		c.options.RecordTimeout = DefaultRecordTimeout
	}
	c.log = logger{log.Wrap(c.options.Logger)}

	// Every unit draws from one source on its own goroutine.
	src := reading.Locked(c.options.Source)
	builder := &payload.Builder{Owner: c.options.Owner}
	for _, loc := range location.All() {
		u := sensor.New(
			loc,
			reading.New(KindOf(loc), src),
			broker,
			sensor.WithInterval(c.options.Interval),
			sensor.WithBuilder(builder),
			sensor.WithLogger(c.options.Logger),
		)
		u.AddListener(c.published)
		c.units = append(c.units, u)
		c.byLoc[loc] = u
		c.options.Metrics.Active(u.ID(), false)
	}
	return c
}

// Start starts every sensor loop, routes each location's command topic to
// its unit and connects to the broker in the background. Subscription
// errors are returned, but the handlers stay registered and are subscribed
// on every connect.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return nil
	}
	c.started = true

	for _, u := range c.units {
		u.Start()
	}

	var errs []error
	for _, u := range c.units {
		if err := c.broker.RegisterCommandHandler(u.Location(), c.commandHandler(u)); err != nil {
			errs = append(errs, err)
		}
	}

	c.detach = append(c.detach,
		c.broker.RegisterConnectionListener(c.connection),
		c.broker.RegisterPublishListener(func(topic string, o mqtt.PublishOutcome) {
			c.options.Metrics.Published(topic, o.String())
		}),
	)

	c.broker.ConnectAsync()
	return errors.Join(errs...)
}

// Shutdown stops every sensor loop, then shuts the broker connection down.
// It is safe to call more than once and without Start.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, u := range c.units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Stop()
		}()
	}
	wg.Wait()

	c.broker.Shutdown()
	for _, fn := range detach {
		fn()
	}
	c.log.shutdown(context.Background())
}

// Activate sets the interval of the unit at key and activates it.
func (c *Coordinator) Activate(key string, interval time.Duration) (Snapshot, error) {
	u, err := c.Unit(key)
	if err != nil {
		return Snapshot{}, err
	}
	u.SetInterval(interval)
	u.Activate()
	c.options.Metrics.Active(u.ID(), true)
	c.options.Metrics.Command(u.ID(), "local")
	c.feed("Sensor %s ativado (intervalo %d ms)", u.ID(), u.Interval().Milliseconds())
	return c.snapshot(u, nil), nil
}

// Deactivate deactivates the unit at key. Its loop keeps running.
func (c *Coordinator) Deactivate(key string) (Snapshot, error) {
	u, err := c.Unit(key)
	if err != nil {
		return Snapshot{}, err
	}
	u.Deactivate()
	c.options.Metrics.Active(u.ID(), false)
	c.options.Metrics.Command(u.ID(), "local")
	c.feed("Sensor %s desativado", u.ID())
	return c.snapshot(u, nil), nil
}

// ActivateAll activates every unit with the given interval.
func (c *Coordinator) ActivateAll(interval time.Duration) {
	for _, u := range c.units {
		_, _ = c.Activate(u.Location().Key(), interval)
	}
}

// Read takes an on-demand reading at key without publishing it.
func (c *Coordinator) Read(key string) (Snapshot, error) {
	u, err := c.Unit(key)
	if err != nil {
		return Snapshot{}, err
	}
	r := u.Read()
	return c.snapshot(u, &r), nil
}

// Unit returns the unit at the location with the given key.
func (c *Coordinator) Unit(key string) (*sensor.Unit, error) {
	loc, err := location.ByKey(key)
	if err != nil {
		return nil, err
	}
	return c.byLoc[loc], nil
}

// Units returns every unit in registry order.
func (c *Coordinator) Units() []*sensor.Unit {
	return append([]*sensor.Unit(nil), c.units...)
}

// Connected reports whether the broker connection is up.
func (c *Coordinator) Connected() bool {
	return c.broker.IsConnected()
}

// ClientID returns the broker client ID.
func (c *Coordinator) ClientID() string {
	return c.broker.ID()
}

// TestBroker reports whether the broker is reachable, connecting if needed.
func (c *Coordinator) TestBroker(ctx context.Context) bool {
	select {
	case ok := <-c.broker.TestConnection(ctx):
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) commandHandler(u *sensor.Unit) mqtt.CommandHandler {
	return func(data []byte) {
		u.ApplyCommand(data)
		c.options.Metrics.Command(u.ID(), "mqtt")
		c.options.Metrics.Active(u.ID(), u.Active())
		c.feed("Comando MQTT aplicado a %s: %s", u.ID(), data)
	}
}

func (c *Coordinator) connection(connected bool) {
	c.options.Metrics.Connection(connected)
	if connected {
		c.feed("Ligado ao broker MQTT como %s", c.broker.ID())
	} else {
		c.feed("Sem ligação ao broker MQTT")
	}
}

// Runs on the loop goroutine of u after every publish.
func (c *Coordinator) published(u *sensor.Unit, r reading.Reading, data []byte) {
	snap := c.snapshot(u, &r)
	for fn := range c.snapshotObservers.All() {
		fn(snap)
	}
	c.feed("Sensor %s publicou %s", u.ID(), u.Kind().Format(r.Value))
	c.options.Metrics.Reading(u.ID(), u.Kind().Tag(), r.Value, r.Alert)
	c.record(u, r, data)
}
