// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/log"
)

type logger struct{ log.Logger }

func sensorAttr(id string) slog.Attr {
	return slog.String("sensor", id)
}

func (l *logger) started(ctx context.Context, interval time.Duration) {
	l.Log(ctx, slog.LevelDebug, "sensor loop started",
		slog.Int64("interval_ms", interval.Milliseconds()),
	)
}

func (l *logger) stopped(ctx context.Context) {
	l.Log(ctx, slog.LevelDebug, "sensor loop stopped")
}

func (l *logger) ignored(ctx context.Context, err error) {
	l.Level(ctx, slog.LevelDebug, err)
}

func (l *logger) tickPanic(ctx context.Context, r any) {
	l.Log(ctx, slog.LevelError, "sensor tick panicked",
		slog.String("panic", fmt.Sprint(r)),
	)
}
