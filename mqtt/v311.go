// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// v311Transport speaks MQTT 3.1.1 through the Eclipse Paho v1 client, which
// handles keep-alive and automatic reconnection itself.
type v311Transport struct {
	client    paho.Client
	events    Events
	closeOnce sync.Once
}

// NewV311Transport creates an MQTT 3.1.1 transport. This is the default.
func NewV311Transport(cfg TransportConfig, events Events) (Transport, error) {
	u, err := ParseBroker(cfg.Broker)
	if err != nil {
		return nil, err
	}

	t := &v311Transport{events: events}

	opts := paho.NewClientOptions().
		AddBroker(u.String()).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(cfg.AutoReconnect).
		SetConnectRetry(false).
		SetResumeSubs(false).
		SetOrderMatters(false).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			if events.OnConnect != nil {
				events.OnConnect()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			if events.OnConnectionLost != nil {
				events.OnConnectionLost(err)
			}
		}).
		SetDefaultPublishHandler(t.received)

	t.client = paho.NewClient(opts)
	return t, nil
}

func (t *v311Transport) Connect(ctx context.Context) error {
	token := t.client.Connect()
	if err := wait(ctx, token); err != nil {
		if code, ok := connectReturnCode(err); ok {
			return &ReasonCodeError{Packet: "CONNACK", ReasonCode: code}
		}
		return err
	}
	return nil
}

func (t *v311Transport) IsConnected() bool {
	// IsConnected would also report true while auto-reconnecting.
	return t.client.IsConnectionOpen()
}

func (t *v311Transport) Subscribe(ctx context.Context, topic string) error {
	if !t.IsConnected() {
		return &NotConnectedError{}
	}
	return wait(ctx, t.client.Subscribe(topic, 0, t.received))
}

func (t *v311Transport) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
) error {
	if !t.IsConnected() {
		return &NotConnectedError{}
	}
	return wait(ctx, t.client.Publish(topic, 0, false, payload))
}

func (t *v311Transport) Close(timeout time.Duration) {
	t.closeOnce.Do(func() {
		t.client.Disconnect(uint(timeout.Milliseconds()))
	})
}

func (t *v311Transport) received(_ paho.Client, msg paho.Message) {
	if t.events.OnMessage != nil {
		t.events.OnMessage(msg.Topic(), msg.Payload())
	}
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Paho v1 reports refused connections as errors named after the CONNACK
// return code.
func connectReturnCode(err error) (byte, bool) {
	for code := byte(packets.ErrRefusedBadProtocolVersion); code <= packets.ErrRefusedNotAuthorised; code++ {
		if packets.ConnErrors[code] == err {
			return code, true
		}
	}
	return 0, false
}
