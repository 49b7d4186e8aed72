// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/monitorizapt/sensorfleet/internal/log"
)

type logger struct{ log.Logger }

func (l *logger) encode(ctx context.Context, err error) {
	l.Log(ctx, slog.LevelWarn, "failed to encode response",
		slog.String("error", err.Error()),
	)
}

// Println receives recovered handler panics.
func (l *logger) Println(v ...any) {
	l.Log(context.Background(), slog.LevelError, "handler panic",
		slog.String("panic", fmt.Sprint(v...)),
	)
}
