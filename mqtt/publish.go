// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import "context"

// Publish sends payload on topic with QoS 0. If the manager is disconnected
// the message is dropped and a single background connection attempt is
// triggered. Transport errors are logged and swallowed; the outcome is only
// visible to publish listeners.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte) {
	if m.shutdown.Closed() {
		m.observe(topic, Dropped)
		return
	}

	t := m.current()
	if t == nil || !t.IsConnected() {
		m.log.dropped(ctx, topic)
		m.observe(topic, Dropped)
		m.ConnectAsync()
		return
	}

	m.log.publish(ctx, topic, payload)
	if err := t.Publish(ctx, topic, payload); err != nil {
		m.log.Err(ctx, &PublishError{Topic: topic, wrapped: err})
		m.observe(topic, Failed)
		return
	}
	m.observe(topic, Sent)
}
