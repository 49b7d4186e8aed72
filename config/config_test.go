// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/monitorizapt/sensorfleet/config"
	"github.com/monitorizapt/sensorfleet/mqtt"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
	require.Equal(t, mqtt.DefaultBroker, cfg.Broker.URL)
	require.Equal(t, 3333*time.Millisecond, cfg.Fleet.Interval.Std())
	require.Equal(t, "registos_csv", cfg.CSV.Dir)
	require.True(t, cfg.CSV.Enabled)
}

func TestTOML(t *testing.T) {
	path := write(t, "fleet.toml", `
[broker]
url = "tcp://localhost:1884"
protocol = "5"
keep_alive = "PT1M"

[fleet]
owner = "ops"
interval = "2s"

[redis]
addr = "localhost:6379"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "tcp://localhost:1884", cfg.Broker.URL)
	require.Equal(t, mqtt.ProtocolV5, cfg.Broker.Protocol)
	require.Equal(t, time.Minute, cfg.Broker.KeepAlive.Std())
	require.Equal(t, "ops", cfg.Fleet.Owner)
	require.Equal(t, 2*time.Second, cfg.Fleet.Interval.Std())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 24*time.Hour, cfg.Redis.TTL.Std())
}

func TestYAML(t *testing.T) {
	path := write(t, "fleet.yaml", `
broker:
  client_id_prefix: Test_
  connect_timeout: PT5S
csv:
  enabled: false
log:
  level: debug
  format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "Test_", cfg.Broker.ClientIDPrefix)
	require.Equal(t, 5*time.Second, cfg.Broker.ConnectTimeout.Std())
	require.False(t, cfg.CSV.Enabled)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := write(t, "fleet.toml", `
[fleet]
interval = "2s"
`)
	t.Setenv("MONITORIZAPT_FLEET_INTERVAL", "PT10S")
	t.Setenv("MONITORIZAPT_BROKER_URL", "ssl://broker.example.com")
	t.Setenv("MONITORIZAPT_POSTGRES_URL", "postgres://localhost/fleet")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.Fleet.Interval.Std())
	require.Equal(t, "ssl://broker.example.com", cfg.Broker.URL)
	require.Equal(t, "postgres://localhost/fleet", cfg.Postgres.URL)
}

func TestInvalid(t *testing.T) {
	path := write(t, "fleet.toml", `
[broker]
url = "http://localhost"
protocol = "4"

[fleet]
interval = "500ms"

[log]
level = "loud"
format = "xml"
`)

	_, err := config.Load(path)
	require.Error(t, err)

	var invalid *config.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	for _, field := range []string{"broker.url", "broker.protocol", "fleet.interval", "log.level", "log.format"} {
		require.Contains(t, err.Error(), field)
	}
}

func TestFileErrors(t *testing.T) {
	var fileErr *config.FileError

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorAs(t, err, &fileErr)

	_, err = config.Load(write(t, "fleet.json", `{}`))
	require.ErrorAs(t, err, &fileErr)

	_, err = config.Load(write(t, "fleet.toml", `[broker`))
	require.ErrorAs(t, err, &fileErr)
}

func TestBadEnvironmentDuration(t *testing.T) {
	t.Setenv("MONITORIZAPT_BROKER_KEEP_ALIVE", "forever")

	_, err := config.Load("")
	var invalid *config.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestDuration(t *testing.T) {
	var d config.Duration
	require.NoError(t, d.UnmarshalText([]byte("pt1m30s")))
	require.Equal(t, 90*time.Second, d.Std())

	var again config.Duration
	require.NoError(t, again.UnmarshalText([]byte(d.String())))
	require.Equal(t, d, again)

	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	require.Equal(t, 1500*time.Millisecond, d.Std())

	require.Error(t, d.UnmarshalText([]byte("P1X")))
}

func TestParseLevel(t *testing.T) {
	level, err := config.ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, "WARN", level.String())

	_, err = config.ParseLevel("chatty")
	require.Error(t, err)
}
