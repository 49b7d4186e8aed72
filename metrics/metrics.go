// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package metrics exposes fleet activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorfleet"

// Metrics holds the fleet collectors. The zero value is not usable; a nil
// *Metrics discards every observation.
type Metrics struct {
	registry *prometheus.Registry

	published   *prometheus.CounterVec
	readings    *prometheus.GaugeVec
	alerts      *prometheus.CounterVec
	active      *prometheus.GaugeVec
	commands    *prometheus.CounterVec
	connected   prometheus.Gauge
	transitions *prometheus.CounterVec
	recordErrs  *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "publish_total",
			Help:      "Publish calls by topic and outcome.",
		}, []string{"topic", "outcome"}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "last_value",
			Help:      "Value of the last published reading.",
		}, []string{"sensor", "kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "alerts_total",
			Help:      "Published readings above the alert threshold.",
		}, []string{"sensor"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "active",
			Help:      "1 if the sensor is publishing, 0 otherwise.",
		}, []string{"sensor"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "commands_total",
			Help:      "Commands applied, by sensor and source.",
		}, []string{"sensor", "source"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while connected to the broker.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connection_transitions_total",
			Help:      "Connection state notifications by resulting state.",
		}, []string{"state"}),
		recordErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "errors_total",
			Help:      "Failed recorder writes by recorder.",
		}, []string{"recorder"}),
	}

	m.registry.MustRegister(
		m.published,
		m.readings,
		m.alerts,
		m.active,
		m.commands,
		m.connected,
		m.transitions,
		m.recordErrs,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Published counts a publish outcome.
func (m *Metrics) Published(topic, outcome string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic, outcome).Inc()
}

// Reading records a published reading.
func (m *Metrics) Reading(sensor, kind string, value float64, alert bool) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(sensor, kind).Set(value)
	if alert {
		m.alerts.WithLabelValues(sensor).Inc()
	}
}

// Active records the active flag of a sensor.
func (m *Metrics) Active(sensor string, active bool) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(sensor).Set(gauge(active))
}

// Command counts an applied command. Source is "mqtt" or "local".
func (m *Metrics) Command(sensor, source string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(sensor, source).Inc()
}

// Connection records a connection state notification.
func (m *Metrics) Connection(connected bool) {
	if m == nil {
		return
	}
	m.connected.Set(gauge(connected))
	state := "disconnected"
	if connected {
		state = "connected"
	}
	m.transitions.WithLabelValues(state).Inc()
}

// RecordError counts a failed recorder write.
func (m *Metrics) RecordError(recorder string) {
	if m == nil {
		return
	}
	m.recordErrs.WithLabelValues(recorder).Inc()
}

func gauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
