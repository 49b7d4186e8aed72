// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package recorder persists published readings: daily CSV files on disk, the
// last value per sensor in Redis and a reading archive in PostgreSQL.
package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/mqtt/retry"
	"github.com/monitorizapt/sensorfleet/reading"
)

type (
	// Entry is one published reading.
	Entry struct {
		SensorID string
		Location location.Location
		Kind     reading.Kind
		Reading  reading.Reading

		// The payload as published, digest included.
		Payload []byte
	}

	// Recorder stores entries. Implementations must be safe for concurrent
	// use; they are called from every sensor loop.
	Recorder interface {
		Name() string
		Record(ctx context.Context, e Entry) error
	}

	// Pinger checks that a backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// RecordError wraps a failed write.
type RecordError struct {
	Recorder string
	SensorID string
	wrapped  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf(
		"%s recorder failed for %s: %v",
		e.Recorder,
		e.SensorID,
		e.wrapped,
	)
}

func (e *RecordError) Unwrap() error {
	return e.wrapped
}

// Attrs exposes the recorder and sensor to structured logging.
func (e *RecordError) Attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("recorder", e.Recorder),
		slog.String("sensor", e.SensorID),
	}
}

// WaitReady pings p under the retry policy until it answers, the policy gives
// up or ctx is done.
func WaitReady(
	ctx context.Context,
	name string,
	p Pinger,
	policy retry.Policy,
) error {
	return policy.Start(ctx, name, func(ctx context.Context) (bool, error) {
		if err := p.Ping(ctx); err != nil {
			return true, err
		}
		return false, nil
	})
}
