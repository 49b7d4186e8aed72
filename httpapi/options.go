// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/options"
)

// DefaultBrokerTestTimeout bounds POST /broker/test.
const DefaultBrokerTestTimeout = 10 * time.Second

type (
	// ServerOption represents a single option for the API server.
	ServerOption interface{ server(*ServerOptions) }

	// ServerOptions are the resolved options for the API server.
	ServerOptions struct {
		Metrics           http.Handler
		AccessLog         io.Writer
		BrokerTestTimeout time.Duration
		Logger            *slog.Logger
	}

	// WithBrokerTestTimeout bounds the broker reachability check.
	WithBrokerTestTimeout time.Duration

	// This option is not used directly; see WithMetrics below.
	withMetrics struct{ http.Handler }

	// This option is not used directly; see WithAccessLog below.
	withAccessLog struct{ io.Writer }

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// WithMetrics serves h at GET /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return withMetrics{h}
}

// WithAccessLog writes an Apache combined log line per request to w.
func WithAccessLog(w io.Writer) ServerOption {
	return withAccessLog{w}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return withLogger{logger}
}

// Apply resolves the provided list of options.
func (o *ServerOptions) Apply(
	opts []ServerOption,
	rest ...ServerOption,
) {
	for opt := range options.Apply[ServerOption](opts, rest...) {
		opt.server(o)
	}
}

func (o *ServerOptions) server(opt *ServerOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithBrokerTestTimeout) server(opt *ServerOptions) {
	opt.BrokerTestTimeout = time.Duration(o)
}

func (o withMetrics) server(opt *ServerOptions) {
	opt.Metrics = o.Handler
}

func (o withAccessLog) server(opt *ServerOptions) {
	opt.AccessLog = o.Writer
}

func (o withLogger) server(opt *ServerOptions) {
	opt.Logger = o.Logger
}
