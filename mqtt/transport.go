// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type (
	// Transport is one live client connection to the broker. A transport is
	// used for a single connect and discarded afterwards; the manager builds
	// a fresh one for every connect.
	Transport interface {
		// Connect opens the connection and blocks until the broker accepts or
		// rejects it. Events.OnConnect fires once the session is usable.
		Connect(ctx context.Context) error

		// IsConnected reports whether the transport currently has a usable
		// session. It turns false on connection loss and may turn true again
		// if the transport reconnects on its own.
		IsConnected() bool

		// Subscribe registers interest in topic at QoS 0. Messages are
		// delivered through Events.OnMessage.
		Subscribe(ctx context.Context, topic string) error

		// Publish sends payload at QoS 0 without the retain flag.
		Publish(ctx context.Context, topic string, payload []byte) error

		// Close disconnects, waiting at most timeout for the broker.
		Close(timeout time.Duration)
	}

	// Events are the callbacks a transport raises. They may be invoked from
	// goroutines owned by the transport and must not block.
	Events struct {
		OnConnect        func()
		OnConnectionLost func(error)
		OnMessage        func(topic string, payload []byte)
	}

	// TransportConfig carries the resolved connection settings.
	TransportConfig struct {
		Broker         string
		ClientID       string
		KeepAlive      time.Duration
		ConnectTimeout time.Duration
		AutoReconnect  bool
		Logger         *slog.Logger
	}

	// TransportFactory creates an unconnected transport.
	TransportFactory func(TransportConfig, Events) (Transport, error)
)

// Protocol names accepted by TransportFor.
const (
	ProtocolV311 = "3.1.1"
	ProtocolV5   = "5"
)

// TransportFor returns the factory for an MQTT protocol version.
func TransportFor(protocol string) (TransportFactory, error) {
	switch protocol {
	case "", ProtocolV311, "3", "v3", "v311":
		return NewV311Transport, nil
	case ProtocolV5, "5.0", "v5":
		return NewV5Transport, nil
	default:
		return nil, &InvalidArgumentError{
			message: fmt.Sprintf("unsupported MQTT protocol %q", protocol),
		}
	}
}
