// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package fleet

import (
	"log/slog"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/options"
	"github.com/monitorizapt/sensorfleet/metrics"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/monitorizapt/sensorfleet/recorder"
)

// DefaultRecordTimeout bounds a single recorder write.
const DefaultRecordTimeout = 2 * time.Second

type (
	// CoordinatorOption represents a single option for the coordinator.
	CoordinatorOption interface{ coordinator(*CoordinatorOptions) }

	// CoordinatorOptions are the resolved options for the coordinator.
	CoordinatorOptions struct {
		Owner         string
		Interval      time.Duration
		RecordTimeout time.Duration
		Source        reading.Source
		Recorders     []recorder.Recorder
		Metrics       *metrics.Metrics
		Logger        *slog.Logger
	}

	// WithOwner sets the owner stamped on every payload.
	WithOwner string

	// WithInterval sets the initial interval of every sensor.
	WithInterval time.Duration

	// WithRecordTimeout bounds each recorder write.
	WithRecordTimeout time.Duration

	// WithRecorders adds sinks for published readings.
	WithRecorders []recorder.Recorder

	// This option is not used directly; see WithSource below.
	withSource struct{ reading.Source }

	// This option is not used directly; see WithMetrics below.
	withMetrics struct{ *metrics.Metrics }

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// WithSource sets the randomness shared by all generators.
func WithSource(src reading.Source) CoordinatorOption {
	return withSource{src}
}

// WithMetrics reports fleet activity to m.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return withMetrics{m}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return withLogger{logger}
}

// Apply resolves the provided list of options.
func (o *CoordinatorOptions) Apply(
	opts []CoordinatorOption,
	rest ...CoordinatorOption,
) {
	for opt := range options.Apply[CoordinatorOption](opts, rest...) {
		opt.coordinator(o)
	}
}

func (o *CoordinatorOptions) coordinator(opt *CoordinatorOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithOwner) coordinator(opt *CoordinatorOptions) {
	opt.Owner = string(o)
}

func (o WithInterval) coordinator(opt *CoordinatorOptions) {
	opt.Interval = time.Duration(o)
}

func (o WithRecordTimeout) coordinator(opt *CoordinatorOptions) {
	opt.RecordTimeout = time.Duration(o)
}

func (o WithRecorders) coordinator(opt *CoordinatorOptions) {
	opt.Recorders = append(opt.Recorders, o...)
}

func (o withSource) coordinator(opt *CoordinatorOptions) {
	opt.Source = o.Source
}

func (o withMetrics) coordinator(opt *CoordinatorOptions) {
	opt.Metrics = o.Metrics
}

func (o withLogger) coordinator(opt *CoordinatorOptions) {
	opt.Logger = o.Logger
}
