// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package fleet_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/monitorizapt/sensorfleet/fleet"
	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/metrics"
	"github.com/monitorizapt/sensorfleet/mqtt"
	"github.com/monitorizapt/sensorfleet/payload"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/monitorizapt/sensorfleet/recorder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type network struct {
	fail atomic.Bool

	mu         sync.Mutex
	transports []*transport
}

func (n *network) factory(_ mqtt.TransportConfig, events mqtt.Events) (mqtt.Transport, error) {
	t := &transport{network: n, events: events}
	n.mu.Lock()
	n.transports = append(n.transports, t)
	n.mu.Unlock()
	return t, nil
}

func (n *network) last() *transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.transports) == 0 {
		return nil
	}
	return n.transports[len(n.transports)-1]
}

type transport struct {
	network   *network
	events    mqtt.Events
	connected atomic.Bool

	mu        sync.Mutex
	subscribe []string
	publish   []string
}

func (t *transport) Connect(context.Context) error {
	if t.network.fail.Load() {
		return errors.New("connection refused")
	}
	t.connected.Store(true)
	t.events.OnConnect()
	return nil
}

func (t *transport) IsConnected() bool { return t.connected.Load() }

func (t *transport) Subscribe(_ context.Context, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribe = append(t.subscribe, topic)
	return nil
}

func (t *transport) Publish(_ context.Context, topic string, _ []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publish = append(t.publish, topic)
	return nil
}

func (t *transport) Close(time.Duration) { t.connected.Store(false) }

func (t *transport) subscribed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.subscribe)
}

func (t *transport) published() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.publish)
}

// Every draw is the midpoint, so readings never take an outlier branch.
type midpoint struct{}

func (midpoint) Float64() float64 { return 0.5 }

type lines struct {
	mu  sync.Mutex
	all []string
}

func (l *lines) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, line)
}

func (l *lines) contains(suffix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.all {
		if len(line) >= len(suffix) && line[len(line)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

type memRecorder struct {
	fail    bool
	entries chan recorder.Entry
}

func (*memRecorder) Name() string { return "memory" }

func (r *memRecorder) Record(_ context.Context, e recorder.Entry) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.entries <- e
	return nil
}

func newFleet(t *testing.T, n *network, opts ...fleet.CoordinatorOption) *fleet.Coordinator {
	m := mqtt.NewManager(mqtt.WithTransport(n.factory))
	c := fleet.New(m, append([]fleet.CoordinatorOption{fleet.WithSource(midpoint{})}, opts...)...)
	t.Cleanup(c.Shutdown)
	return c
}

func TestNewCreatesUnitPerLocation(t *testing.T) {
	c := newFleet(t, &network{})

	snaps := c.Snapshots()
	require.Len(t, snaps, len(location.All()))
	for i, loc := range location.All() {
		s := snaps[i]
		require.Equal(t, loc.SensorID(), s.ID)
		require.Equal(t, loc.Key(), s.Location)
		require.Equal(t, fleet.KindOf(loc), s.Kind)
		require.False(t, s.Active)
		require.False(t, s.Running)
		require.Equal(t, int64(3333), s.IntervalMs)
		require.Nil(t, s.Last)
	}

	require.Equal(t, reading.Temperature, fleet.KindOf(location.EvoraUniversidade))
	require.Equal(t, reading.Humidity, fleet.KindOf(location.FaroMarina))
	require.Equal(t, reading.AirQuality, fleet.KindOf(location.PortoMatosinhos))
}

func TestActivateDeactivate(t *testing.T) {
	c := newFleet(t, &network{})

	var feed lines
	c.RegisterLogObserver(feed.add)

	s, err := c.Activate("lisboa_baixa", 500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, s.Active)
	require.Equal(t, int64(1000), s.IntervalMs)

	s, err = c.Deactivate("LISBOA_BAIXA")
	require.NoError(t, err)
	require.False(t, s.Active)

	line := regexp.MustCompile(`^\d{2}-\d{2}-\d{4} \d{2}:\d{2}:\d{2} \[INFO\] `)
	require.Len(t, feed.all, 2)
	for _, l := range feed.all {
		require.Regexp(t, line, l)
	}
	require.True(t, feed.contains("Sensor PT-SENSOR-LISBOA_BAIXA ativado (intervalo 1000 ms)"))
	require.True(t, feed.contains("Sensor PT-SENSOR-LISBOA_BAIXA desativado"))

	_, err = c.Activate("ATLANTIS", time.Second)
	var notFound *location.NotFoundError
	require.ErrorAs(t, err, &notFound)

	c.ActivateAll(2 * time.Second)
	for _, s := range c.Snapshots() {
		require.True(t, s.Active)
		require.Equal(t, int64(2000), s.IntervalMs)
	}
}

func TestRead(t *testing.T) {
	c := newFleet(t, &network{})

	s, err := c.Read("FARO_MARINA")
	require.NoError(t, err)
	require.NotNil(t, s.Last)
	require.Equal(t, 61.5, s.Last.Value)
	require.Equal(t, "61.50%", s.Last.Formatted)

	again, err := c.Snapshot("FARO_MARINA")
	require.NoError(t, err)
	require.Equal(t, s.Last, again.Last)
}

func TestConcurrentReadsShareSource(t *testing.T) {
	m := mqtt.NewManager(mqtt.WithTransport((&network{}).factory))
	c := fleet.New(m, fleet.WithSource(rand.New(rand.NewPCG(1, 2))))
	t.Cleanup(c.Shutdown)

	var wg sync.WaitGroup
	for _, loc := range location.All() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := c.Unit(loc.Key())
			if !assert.NoError(t, err) {
				return
			}
			for range 200 {
				r := u.Read()
				assert.False(t, math.IsNaN(r.Value))
			}
		}()
	}
	wg.Wait()
}

func TestStartSubscribesAndAppliesCommands(t *testing.T) {
	n := &network{}
	m := metrics.New()
	c := newFleet(t, n, fleet.WithMetrics(m))

	var feed lines
	c.RegisterLogObserver(feed.add)

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())

	var topics []string
	for _, loc := range location.All() {
		topics = append(topics, loc.CommandTopic())
	}
	slices.Sort(topics)
	require.Eventually(t, func() bool {
		tr := n.last()
		return tr != nil && len(tr.subscribed()) == len(topics)
	}, time.Second, time.Millisecond)
	require.Equal(t, topics, n.last().subscribed())
	require.True(t, feed.contains("Ligado ao broker MQTT como "+c.ClientID()))

	cmd := `{"acao":"ATIVAR","intervalo":5000}`
	n.last().events.OnMessage(location.FaroMarina.CommandTopic(), []byte(cmd))

	s, err := c.Snapshot("FARO_MARINA")
	require.NoError(t, err)
	require.True(t, s.Active)
	require.Equal(t, int64(5000), s.IntervalMs)
	require.True(t, feed.contains("Comando MQTT aplicado a PT-SENSOR-FARO_MARINA: "+cmd))

	require.Equal(t, 1.0, gauge(t, m, "sensorfleet_mqtt_connected"))
}

// Returns the value of a single unlabelled gauge.
func gauge(t *testing.T, m *metrics.Metrics, name string) float64 {
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	require.Failf(t, "metric not found", "%s", name)
	return 0
}

func TestPublishFanOut(t *testing.T) {
	n := &network{}
	m := metrics.New()
	rec := &memRecorder{entries: make(chan recorder.Entry, 16)}
	broken := &memRecorder{fail: true}
	c := newFleet(t, n,
		fleet.WithMetrics(m),
		fleet.WithRecorders{rec, broken},
		fleet.WithOwner("tester"),
	)

	var feed lines
	c.RegisterLogObserver(feed.add)
	snaps := make(chan fleet.Snapshot, 16)
	c.RegisterSnapshotObserver(func(s fleet.Snapshot) { snaps <- s })

	// Connect first so the first tick is not dropped.
	require.True(t, c.TestBroker(context.Background()))
	_, err := c.Activate("LISBOA_CAMPUS_IPLUSO", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	s := <-snaps
	require.Equal(t, "PT-SENSOR-LISBOA_CAMPUS_IPLUSO", s.ID)
	require.Equal(t, 23.75, s.Last.Value)
	require.Equal(t, "23.75°C", s.Last.Formatted)

	e := <-rec.entries
	require.Equal(t, location.LisboaCampusIPLuso, e.Location)
	doc, err := payload.Verify(e.Payload)
	require.NoError(t, err)
	require.Equal(t, "tester", doc.Owner)

	require.Eventually(t, func() bool {
		return feed.contains("Sensor PT-SENSOR-LISBOA_CAMPUS_IPLUSO publicou 23.75°C")
	}, time.Second, time.Millisecond)
	require.Contains(t, n.last().published(), location.LisboaCampusIPLuso.DataTopic())

	require.Eventually(t, func() bool {
		count, err := testutil.GatherAndCount(m.Registry(), "sensorfleet_recorder_errors_total")
		return err == nil && count == 1
	}, time.Second, time.Millisecond)
}

func TestTestBroker(t *testing.T) {
	n := &network{}
	n.fail.Store(true)
	c := newFleet(t, n)

	var feed lines
	c.RegisterLogObserver(feed.add)

	require.NoError(t, c.Start())
	require.False(t, c.TestBroker(context.Background()))
	require.True(t, feed.contains("Sem ligação ao broker MQTT"))
	require.False(t, c.Connected())

	n.fail.Store(false)
	require.True(t, c.TestBroker(context.Background()))
	require.True(t, c.Connected())
	require.True(t, c.TestBroker(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Shutdown()
	require.False(t, c.TestBroker(ctx))
}

func TestShutdown(t *testing.T) {
	n := &network{}
	c := newFleet(t, n)
	require.NoError(t, c.Start())
	require.Eventually(t, c.Connected, time.Second, time.Millisecond)

	c.Shutdown()
	c.Shutdown()

	require.False(t, c.Connected())
	for _, u := range c.Units() {
		require.False(t, u.Running())
	}
	require.NoError(t, c.Start())
	for _, u := range c.Units() {
		require.False(t, u.Running())
	}
}
