// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/monitorizapt/sensorfleet/internal/container"
	"github.com/monitorizapt/sensorfleet/internal/log"
	"github.com/monitorizapt/sensorfleet/internal/wallclock"
	"github.com/monitorizapt/sensorfleet/mqtt/retry"
)

// v5Transport speaks MQTT 5 through paho.golang. Paho's v5 client has no
// built-in reconnection, so lost connections are re-established here with
// exponential backoff.
type v5Transport struct {
	cfg     TransportConfig
	events  Events
	backoff retry.Policy
	log     logger

	mu        sync.Mutex
	client    *paho.Client
	connected atomic.Bool

	closed *container.Background
}

// NewV5Transport creates an MQTT 5 transport.
func NewV5Transport(cfg TransportConfig, events Events) (Transport, error) {
	if _, err := ParseBroker(cfg.Broker); err != nil {
		return nil, err
	}
	return &v5Transport{
		cfg:    cfg,
		events: events,
		backoff: &retry.ExponentialBackoff{
			MinInterval: time.Second,
			MaxInterval: 30 * time.Second,
			Logger:      cfg.Logger,
		},
		log:    logger{log.Wrap(cfg.Logger)},
		closed: container.NewBackground(net.ErrClosed),
	}, nil
}

func (t *v5Transport) Connect(ctx context.Context) error {
	if err := t.open(ctx); err != nil {
		return err
	}
	t.fire(t.events.OnConnect)
	return nil
}

func (t *v5Transport) IsConnected() bool {
	return t.connected.Load()
}

func (t *v5Transport) Subscribe(ctx context.Context, topic string) error {
	c := t.live()
	if c == nil {
		return &NotConnectedError{}
	}

	sub := &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
	}
	t.log.packet(ctx, "subscribe", sub)

	ack, err := c.Subscribe(ctx, sub)
	t.log.packet(ctx, "suback", ack)
	if ack != nil && len(ack.Reasons) > 0 && ack.Reasons[0] >= 0x80 {
		return &ReasonCodeError{Packet: "SUBACK", ReasonCode: ack.Reasons[0]}
	}
	return err
}

func (t *v5Transport) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
) error {
	c := t.live()
	if c == nil {
		return &NotConnectedError{}
	}

	// QoS 0 is fire-and-forget; there is no PUBACK to inspect.
	_, err := c.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Payload: payload,
	})
	return err
}

func (t *v5Transport) Close(timeout time.Duration) {
	t.closed.Close()

	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	t.connected.Store(false)

	if c == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		disconnect := &paho.Disconnect{ReasonCode: 0}
		t.log.packet(context.Background(), "disconnect", disconnect)
		_ = c.Disconnect(disconnect)
	}()

	if timeout <= 0 {
		return
	}
	select {
	case <-done:
	case <-wallclock.Instance.After(timeout):
	}
}

// Dial, send CONNECT and wait for CONNACK.
func (t *v5Transport) open(ctx context.Context) error {
	if t.closed.Closed() {
		return net.ErrClosed
	}

	conn, err := dial(ctx, t.cfg.Broker)
	if err != nil {
		return err
	}

	var client *paho.Client
	client = paho.NewClient(paho.ClientConfig{
		ClientID: t.cfg.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			t.received,
		},
		OnClientError: func(err error) {
			t.lost(client, err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			t.lost(client, &DisconnectError{ReasonCode: d.ReasonCode})
		},
	})

	connect := &paho.Connect{
		ClientID:   t.cfg.ClientID,
		KeepAlive:  uint16(t.cfg.KeepAlive.Seconds()),
		CleanStart: true,
	}
	t.log.packet(ctx, "connect", connect)

	ack, err := client.Connect(ctx, connect)
	t.log.packet(ctx, "connack", ack)
	if ack != nil && ack.ReasonCode >= 0x80 {
		_ = conn.Close()
		return &ReasonCodeError{Packet: "CONNACK", ReasonCode: ack.ReasonCode}
	}
	if err != nil {
		_ = conn.Close()
		return &ConnectionError{
			Broker:  t.cfg.Broker,
			message: "MQTT connect failed",
			wrapped: err,
		}
	}

	t.mu.Lock()
	if t.closed.Closed() {
		t.mu.Unlock()
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return net.ErrClosed
	}
	t.client = client
	t.connected.Store(true)
	t.mu.Unlock()
	return nil
}

func (t *v5Transport) live() *paho.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

func (t *v5Transport) received(p paho.PublishReceived) (bool, error) {
	if t.events.OnMessage != nil && p.Packet != nil {
		t.events.OnMessage(p.Packet.Topic, p.Packet.Payload)
	}
	return true, nil
}

// Record the loss of c and, if enabled, reconnect in the background. Errors
// from clients that are no longer current are ignored.
func (t *v5Transport) lost(c *paho.Client, err error) {
	t.mu.Lock()
	if c == nil || t.client != c {
		t.mu.Unlock()
		return
	}
	t.client = nil
	t.connected.Store(false)
	t.mu.Unlock()

	if t.events.OnConnectionLost != nil {
		t.events.OnConnectionLost(err)
	}

	if t.cfg.AutoReconnect && !t.closed.Closed() {
		go t.reconnect()
	}
}

func (t *v5Transport) reconnect() {
	ctx, cancel := t.closed.With(context.Background())
	defer cancel()

	err := t.backoff.Start(ctx, "mqtt reconnect", func(ctx context.Context) (bool, error) {
		ctx, cancel := wallclock.Instance.WithTimeoutCause(
			ctx,
			t.cfg.ConnectTimeout,
			errConnectTimeout,
		)
		defer cancel()

		if err := t.open(ctx); err != nil {
			return !t.closed.Closed(), err
		}
		return false, nil
	})
	if err == nil {
		t.fire(t.events.OnConnect)
	}
}

func (*v5Transport) fire(fn func()) {
	if fn != nil {
		fn()
	}
}
