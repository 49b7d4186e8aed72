// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package mqtt owns the single broker connection of the fleet: connecting
// and reconnecting, fire-and-forget publishing, command topic subscriptions
// and the fan-out of connection state changes.
package mqtt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/monitorizapt/sensorfleet/internal/container"
	"github.com/monitorizapt/sensorfleet/internal/log"
)

type (
	// CommandHandler receives the raw payload of a command message. It runs on
	// the transport's delivery goroutine and must return quickly.
	CommandHandler = func(payload []byte)

	// ConnectionListener is called with the connection state on every
	// transition.
	ConnectionListener = func(connected bool)

	// PublishListener observes the outcome of every Publish call.
	PublishListener = func(topic string, outcome PublishOutcome)

	// Manager implements the connection manager. All methods are safe for
	// concurrent use.
	Manager struct {
		options  ManagerOptions
		clientID string

		// Held for the whole of a connection attempt so that racing callers
		// can never create two live transports.
		connectMu sync.Mutex

		// Guards transport, pending and handlers.
		mu        sync.RWMutex
		transport Transport
		pending   *Attempt
		handlers  map[string]CommandHandler

		connectionListeners *container.List[ConnectionListener]
		publishListeners    *container.List[PublishListener]

		// Closed by Shutdown; cancels in-flight connection attempts.
		shutdown     *container.Background
		shutdownOnce sync.Once

		log logger
	}

	// Attempt is the pending result of ConnectAsync.
	Attempt struct {
		done chan struct{}
		err  error
	}
)

// PublishOutcome describes what happened to a published message.
type PublishOutcome byte

const (
	// Sent means the message was handed to a connected transport.
	Sent PublishOutcome = iota

	// Dropped means the manager was disconnected and discarded the message.
	Dropped

	// Failed means the transport rejected the message.
	Failed
)

func (o PublishOutcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case Dropped:
		return "dropped"
	default:
		return "failed"
	}
}

// NewManager constructs a connection manager. It does not connect; call
// ConnectAsync or TestConnection, or simply Publish.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		handlers:            make(map[string]CommandHandler),
		connectionListeners: container.NewList[ConnectionListener](),
		publishListeners:    container.NewList[PublishListener](),
		shutdown:            container.NewBackground(&ClientStateError{ShutDown}),
	}

	m.options.Apply(opts)
	m.options.defaults()

	m.clientID = m.options.ClientID
	if m.clientID == "" {
		m.clientID = m.options.ClientIDPrefix + uuid.NewString()
	}

	m.log = logger{log.Wrap(m.options.Logger)}

	return m
}

// ID returns the MQTT client ID used for every connection of this manager.
func (m *Manager) ID() string {
	return m.clientID
}

// Broker returns the broker URL.
func (m *Manager) Broker() string {
	return m.options.Broker
}

// IsConnected reports whether the current transport has a usable session.
func (m *Manager) IsConnected() bool {
	t := m.current()
	return t != nil && t.IsConnected()
}

// RegisterConnectionListener adds fn to the connection state fan-out. The
// returned function removes it.
func (m *Manager) RegisterConnectionListener(
	fn ConnectionListener,
) (remove func()) {
	return m.connectionListeners.Append(fn)
}

// RegisterPublishListener adds fn to the publish outcome fan-out. The
// returned function removes it.
func (m *Manager) RegisterPublishListener(
	fn PublishListener,
) (remove func()) {
	return m.publishListeners.Append(fn)
}

// Shutdown forcibly disconnects and releases the transport. It is safe to
// call when never connected and more than once. After Shutdown the manager
// drops every publish and never reconnects.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		ctx := context.Background()
		m.shutdown.Close()

		m.mu.Lock()
		t := m.transport
		m.transport = nil
		m.mu.Unlock()

		if t != nil {
			t.Close(m.options.ShutdownTimeout)
			m.notify(ctx, false)
		}
		m.log.shutdown(ctx, m.clientID)
	})
}

// Done is closed once the attempt has finished.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Err returns the outcome of the attempt. It blocks until Done is closed.
func (a *Attempt) Err() error {
	<-a.done
	return a.err
}

func (m *Manager) current() Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transport
}

func (m *Manager) isCurrent(t Transport) bool {
	return t != nil && m.current() == t
}

func (m *Manager) notify(ctx context.Context, connected bool) {
	m.log.connection(ctx, connected)
	for fn := range m.connectionListeners.All() {
		fn(connected)
	}
}

func (m *Manager) observe(topic string, outcome PublishOutcome) {
	for fn := range m.publishListeners.All() {
		fn(topic, outcome)
	}
}
