// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"fmt"
	"log/slog"
)

// ClientState indicates the lifecycle state of the connection manager.
type ClientState byte

const (
	// The manager is accepting work.
	Running ClientState = iota

	// The manager has been shut down and will not reconnect.
	ShutDown
)

// ClientStateError is returned when the operation cannot proceed due to the
// state of the connection manager.
type ClientStateError struct {
	State ClientState
}

func (e *ClientStateError) Error() string {
	switch e.State {
	case ShutDown:
		return "the connection manager has been shut down"
	default:
		return "the connection manager is running"
	}
}

// ConnectionError indicates that a connection attempt to the broker failed.
// It wraps the underlying transport error using Go standard error wrapping.
type ConnectionError struct {
	Broker  string
	wrapped error
	message string
}

func (e *ConnectionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

// Attrs exposes the broker address to structured logging.
func (e *ConnectionError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("broker", e.Broker)}
}

// ReasonCodeError indicates that the broker answered a CONNECT or SUBSCRIBE
// with a failure reason code (MQTT 5) or return code (MQTT 3.1.1).
type ReasonCodeError struct {
	Packet     string
	ReasonCode byte
}

func (e *ReasonCodeError) Error() string {
	return fmt.Sprintf(
		"received %s packet with error reason code %x",
		e.Packet,
		e.ReasonCode,
	)
}

// DisconnectError indicates that the broker sent a DISCONNECT packet.
type DisconnectError struct {
	ReasonCode byte
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf(
		"received DISCONNECT packet with reason code %x",
		e.ReasonCode,
	)
}

// NotConnectedError is returned by a transport that has no live session.
type NotConnectedError struct{}

func (*NotConnectedError) Error() string {
	return "not connected to the MQTT broker"
}

// SubscribeError indicates that a command topic subscription failed.
type SubscribeError struct {
	Topic   string
	wrapped error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe to %s failed: %v", e.Topic, e.wrapped)
}

func (e *SubscribeError) Unwrap() error {
	return e.wrapped
}

// Attrs exposes the topic to structured logging.
func (e *SubscribeError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("topic", e.Topic)}
}

// PublishError indicates that a publish could not be handed to the
// transport. It is logged and never returned to sensor loops.
type PublishError struct {
	Topic   string
	wrapped error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Topic, e.wrapped)
}

func (e *PublishError) Unwrap() error {
	return e.wrapped
}

// Attrs exposes the topic to structured logging.
func (e *PublishError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("topic", e.Topic)}
}

// InvalidArgumentError indicates that the user has provided an invalid value
// for an option. It may wrap an underlying error using Go standard error
// wrapping.
type InvalidArgumentError struct {
	wrapped error
	message string
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}
