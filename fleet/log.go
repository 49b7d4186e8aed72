// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package fleet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/monitorizapt/sensorfleet/internal/log"
)

var errRecordTimeout = errors.New("recorder write timed out")

type logger struct{ log.Logger }

func (l *logger) feed(ctx context.Context, msg string) {
	l.Log(ctx, slog.LevelInfo, msg)
}

func (l *logger) shutdown(ctx context.Context) {
	l.Log(ctx, slog.LevelInfo, "fleet shut down")
}
