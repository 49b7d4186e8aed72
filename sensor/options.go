// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package sensor

import (
	"log/slog"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/options"
)

type (
	// UnitOption represents a single option for a sensor unit.
	UnitOption interface{ unit(*UnitOptions) }

	// UnitOptions are the resolved options for a sensor unit.
	UnitOptions struct {
		Interval time.Duration
		Active   bool
		Builder  PayloadBuilder
		Logger   *slog.Logger
	}

	// WithInterval sets the initial polling interval. It is clamped like
	// SetInterval.
	WithInterval time.Duration

	// WithActive sets the initial active flag. Units start inactive by
	// default.
	WithActive bool

	// This option is not used directly; see WithBuilder below.
	withBuilder struct{ PayloadBuilder }

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// WithBuilder sets the serializer used for published payloads.
func WithBuilder(b PayloadBuilder) UnitOption {
	return withBuilder{b}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) UnitOption {
	return withLogger{logger}
}

// Apply resolves the provided list of options.
func (o *UnitOptions) Apply(
	opts []UnitOption,
	rest ...UnitOption,
) {
	for opt := range options.Apply[UnitOption](opts, rest...) {
		opt.unit(o)
	}
}

func (o *UnitOptions) unit(opt *UnitOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithInterval) unit(opt *UnitOptions) {
	opt.Interval = time.Duration(o)
}

func (o WithActive) unit(opt *UnitOptions) {
	opt.Active = bool(o)
}

func (o withBuilder) unit(opt *UnitOptions) {
	opt.Builder = o.PayloadBuilder
}

func (o withLogger) unit(opt *UnitOptions) {
	opt.Logger = o.Logger
}
