// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"errors"

	"github.com/monitorizapt/sensorfleet/internal/wallclock"
)

var errConnectTimeout = errors.New("connection attempt timed out")

// ConnectAsync starts a connection attempt in the background and returns
// immediately. While an attempt is in flight every caller receives that same
// attempt, so a burst of calls opens at most one connection. Failures are
// reported to connection listeners and through the returned Attempt; they are
// never raised to the caller.
func (m *Manager) ConnectAsync() *Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return m.pending
	}

	a := &Attempt{done: make(chan struct{})}
	if m.shutdown.Closed() {
		a.err = &ClientStateError{ShutDown}
		close(a.done)
		return a
	}

	m.pending = a
	go func() {
		ctx, cancel := m.shutdown.With(context.Background())
		defer cancel()

		a.err = m.connect(ctx)

		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		close(a.done)
	}()
	return a
}

// TestConnection reports whether the broker is reachable. If already
// connected the result is true at once; otherwise a connection attempt is
// made in the background. Listeners are notified of the outcome either way.
func (m *Manager) TestConnection(ctx context.Context) <-chan bool {
	res := make(chan bool, 1)
	if m.IsConnected() {
		res <- true
		return res
	}

	go func() {
		ctx, cancel := m.shutdown.With(ctx)
		defer cancel()
		res <- m.connect(ctx) == nil
	}()
	return res
}

// Open a fresh transport unless one is already connected. Serialized by
// connectMu for its entire duration.
func (m *Manager) connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.shutdown.Closed() {
		return &ClientStateError{ShutDown}
	}
	if m.IsConnected() {
		return nil
	}

	// A previous transport may still be retrying on its own; replace it
	// rather than letting two sessions race.
	m.mu.Lock()
	stale := m.transport
	m.transport = nil
	m.mu.Unlock()
	if stale != nil {
		stale.Close(0)
	}

	var t Transport
	events := Events{
		OnConnect:        func() { m.onConnect(t) },
		OnConnectionLost: func(err error) { m.onConnectionLost(t, err) },
		OnMessage:        m.dispatch,
	}

	var err error
	t, err = m.options.Transport(TransportConfig{
		Broker:         m.options.Broker,
		ClientID:       m.clientID,
		KeepAlive:      m.options.KeepAlive,
		ConnectTimeout: m.options.ConnectTimeout,
		AutoReconnect:  !m.options.DisableAutoReconnect,
		Logger:         m.options.Logger,
	}, events)
	if err != nil {
		return m.connectFailed(ctx, err)
	}

	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()

	m.log.connecting(ctx, m.options.Broker, m.clientID)

	connCtx, cancel := wallclock.Instance.WithTimeoutCause(
		ctx,
		m.options.ConnectTimeout,
		errConnectTimeout,
	)
	defer cancel()

	if err := t.Connect(connCtx); err != nil {
		m.drop(t)
		if cause := context.Cause(connCtx); cause != nil {
			err = cause
		}
		return m.connectFailed(ctx, err)
	}

	// Shutdown raced with the connect; it could not see this transport.
	if m.shutdown.Closed() {
		m.drop(t)
		return &ClientStateError{ShutDown}
	}
	return nil
}

func (m *Manager) connectFailed(ctx context.Context, err error) error {
	connErr := &ConnectionError{
		Broker:  m.options.Broker,
		message: "error connecting to MQTT broker",
		wrapped: err,
	}
	m.log.Err(ctx, connErr)
	m.notify(ctx, false)
	return connErr
}

// Detach t if it is still current and close it.
func (m *Manager) drop(t Transport) {
	m.mu.Lock()
	if m.transport == t {
		m.transport = nil
	}
	m.mu.Unlock()
	t.Close(0)
}

// Every connect-complete, initial or automatic, is treated as having lost
// all subscriptions.
func (m *Manager) onConnect(t Transport) {
	ctx := context.Background()
	if !m.isCurrent(t) {
		return
	}
	m.notify(ctx, true)
	m.resubscribe(ctx, t)
}

func (m *Manager) onConnectionLost(t Transport, err error) {
	ctx := context.Background()
	if !m.isCurrent(t) {
		return
	}
	m.log.connectionLost(ctx, err)
	m.notify(ctx, false)
}
