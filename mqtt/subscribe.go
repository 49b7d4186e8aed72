// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"maps"
	"slices"

	"github.com/monitorizapt/sensorfleet/internal/wallclock"
	"github.com/monitorizapt/sensorfleet/location"
)

// RegisterCommandHandler routes messages on the command topic of loc to h,
// replacing any previous handler for that topic. If connected, the topic is
// subscribed immediately; otherwise the subscription happens on the next
// successful connect. A failed immediate subscription is returned but the
// handler stays registered and is retried on every reconnect.
func (m *Manager) RegisterCommandHandler(
	loc location.Location,
	h CommandHandler,
) error {
	return m.Handle(loc.CommandTopic(), h)
}

// Handle is RegisterCommandHandler for an arbitrary topic.
func (m *Manager) Handle(topic string, h CommandHandler) error {
	if m.shutdown.Closed() {
		return &ClientStateError{ShutDown}
	}
	if topic == "" || h == nil {
		return &InvalidArgumentError{message: "topic and handler are required"}
	}

	m.mu.Lock()
	m.handlers[topic] = h
	m.mu.Unlock()

	t := m.current()
	if t == nil || !t.IsConnected() {
		return nil
	}
	return m.subscribe(context.Background(), t, topic)
}

// Topics returns the registered command topics, sorted.
func (m *Manager) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.handlers))
}

func (m *Manager) subscribe(
	ctx context.Context,
	t Transport,
	topic string,
) error {
	ctx, cancel := wallclock.Instance.WithTimeoutCause(
		ctx,
		m.options.ConnectTimeout,
		errConnectTimeout,
	)
	defer cancel()

	if err := t.Subscribe(ctx, topic); err != nil {
		subErr := &SubscribeError{Topic: topic, wrapped: err}
		m.log.Err(ctx, subErr)
		return subErr
	}
	m.log.subscribed(ctx, topic)
	return nil
}

func (m *Manager) resubscribe(ctx context.Context, t Transport) {
	for _, topic := range m.Topics() {
		_ = m.subscribe(ctx, t, topic)
	}
}

func (m *Manager) dispatch(topic string, payload []byte) {
	m.mu.RLock()
	h := m.handlers[topic]
	m.mu.RUnlock()

	if h == nil {
		m.log.unhandled(context.Background(), topic)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.log.handlerPanic(context.Background(), topic, r)
		}
	}()
	h(payload)
}
