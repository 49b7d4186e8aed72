// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/monitorizapt/sensorfleet/config"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, config.Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("hello", slog.String("sensor", "PT-SENSOR-FARO_MARINA"))
	require.Contains(t, buf.String(), `"sensor":"PT-SENSOR-FARO_MARINA"`)

	buf.Reset()
	logger, err = newLogger(&buf, config.Log{Level: "debug", Format: "text"})
	require.NoError(t, err)
	require.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("hello")
	require.Contains(t, buf.String(), "hello")

	_, err = newLogger(&buf, config.Log{Level: "loud"})
	require.Error(t, err)
}

func TestRootCommandRejectsMissingConfig(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")})

	require.Error(t, cmd.Execute())
	require.Contains(t, out.String(), "missing.toml")
}

func TestOpenRecordersCSVOnly(t *testing.T) {
	cfg := config.Default()
	cfg.CSV.Dir = t.TempDir()

	recs, closeAll, err := openRecorders(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeAll()
	require.Len(t, recs, 1)
	require.Equal(t, "csv", recs[0].Name())
}
