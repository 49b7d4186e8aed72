// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"log/slog"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/options"
)

// Defaults applied by NewManager.
const (
	DefaultBroker          = "tcp://broker.hivemq.com:1883"
	DefaultClientIDPrefix  = "MonitorizaPT_RM_"
	DefaultKeepAlive       = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultShutdownTimeout = time.Second
)

type (
	// ManagerOption represents a single option for the connection manager.
	ManagerOption interface{ manager(*ManagerOptions) }

	// ManagerOptions are the resolved options for the connection manager.
	ManagerOptions struct {
		Broker          string
		ClientIDPrefix  string
		ClientID        string
		KeepAlive       time.Duration
		ConnectTimeout  time.Duration
		ShutdownTimeout time.Duration

		// DisableAutoReconnect turns off the transport's own reconnection.
		// A later publish still triggers a fresh connect.
		DisableAutoReconnect bool

		Transport TransportFactory
		Logger    *slog.Logger
	}

	// WithBroker sets the broker URL, e.g. tcp://localhost:1883.
	WithBroker string

	// WithClientIDPrefix sets the prefix of the generated client ID.
	WithClientIDPrefix string

	// WithClientID fixes the client ID instead of generating one. It must be
	// unique on the broker.
	WithClientID string

	// WithKeepAlive sets the keep-alive interval.
	WithKeepAlive time.Duration

	// WithConnectTimeout bounds a single connection attempt.
	WithConnectTimeout time.Duration

	// WithShutdownTimeout bounds the forced disconnect on Shutdown.
	WithShutdownTimeout time.Duration

	// WithAutoReconnect toggles transport-level reconnection.
	WithAutoReconnect bool

	// WithTransport selects how connections are opened.
	WithTransport TransportFactory

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return withLogger{logger}
}

// Apply resolves the provided list of options.
func (o *ManagerOptions) Apply(
	opts []ManagerOption,
	rest ...ManagerOption,
) {
	for opt := range options.Apply[ManagerOption](opts, rest...) {
		opt.manager(o)
	}
}

func (o *ManagerOptions) manager(opt *ManagerOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithBroker) manager(opt *ManagerOptions) {
	opt.Broker = string(o)
}

func (o WithClientIDPrefix) manager(opt *ManagerOptions) {
	opt.ClientIDPrefix = string(o)
}

func (o WithClientID) manager(opt *ManagerOptions) {
	opt.ClientID = string(o)
}

func (o WithKeepAlive) manager(opt *ManagerOptions) {
	opt.KeepAlive = time.Duration(o)
}

func (o WithConnectTimeout) manager(opt *ManagerOptions) {
	opt.ConnectTimeout = time.Duration(o)
}

func (o WithShutdownTimeout) manager(opt *ManagerOptions) {
	opt.ShutdownTimeout = time.Duration(o)
}

func (o WithAutoReconnect) manager(opt *ManagerOptions) {
	opt.DisableAutoReconnect = !bool(o)
}

func (o WithTransport) manager(opt *ManagerOptions) {
	opt.Transport = TransportFactory(o)
}

func (o withLogger) manager(opt *ManagerOptions) {
	opt.Logger = o.Logger
}

func (o *ManagerOptions) defaults() {
	if o.Broker == "" {
		o.Broker = DefaultBroker
	}
	if o.ClientIDPrefix == "" {
		o.ClientIDPrefix = DefaultClientIDPrefix
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Transport == nil {
		o.Transport = NewV311Transport
	}
}
