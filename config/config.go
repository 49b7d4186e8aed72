// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package config loads the process configuration from defaults, an optional
// TOML or YAML file and MONITORIZAPT_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v7"
	"github.com/monitorizapt/sensorfleet/fleet"
	"github.com/monitorizapt/sensorfleet/mqtt"
	"github.com/monitorizapt/sensorfleet/payload"
	"github.com/monitorizapt/sensorfleet/recorder"
	"github.com/monitorizapt/sensorfleet/sensor"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MONITORIZAPT_"

type (
	// Config is the full process configuration.
	Config struct {
		Broker   Broker   `toml:"broker" yaml:"broker" envPrefix:"BROKER_"`
		Fleet    Fleet    `toml:"fleet" yaml:"fleet" envPrefix:"FLEET_"`
		CSV      CSV      `toml:"csv" yaml:"csv" envPrefix:"CSV_"`
		Redis    Redis    `toml:"redis" yaml:"redis" envPrefix:"REDIS_"`
		Postgres Postgres `toml:"postgres" yaml:"postgres" envPrefix:"POSTGRES_"`
		HTTP     HTTP     `toml:"http" yaml:"http" envPrefix:"HTTP_"`
		Log      Log      `toml:"log" yaml:"log" envPrefix:"LOG_"`
	}

	// Broker configures the MQTT connection.
	Broker struct {
		URL             string   `toml:"url" yaml:"url" env:"URL"`
		Protocol        string   `toml:"protocol" yaml:"protocol" env:"PROTOCOL"`
		ClientIDPrefix  string   `toml:"client_id_prefix" yaml:"client_id_prefix" env:"CLIENT_ID_PREFIX"`
		KeepAlive       Duration `toml:"keep_alive" yaml:"keep_alive" env:"KEEP_ALIVE"`
		ConnectTimeout  Duration `toml:"connect_timeout" yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
		ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
		AutoReconnect   bool     `toml:"auto_reconnect" yaml:"auto_reconnect" env:"AUTO_RECONNECT"`
	}

	// Fleet configures the sensor units.
	Fleet struct {
		Owner         string   `toml:"owner" yaml:"owner" env:"OWNER"`
		Interval      Duration `toml:"interval" yaml:"interval" env:"INTERVAL"`
		RecordTimeout Duration `toml:"record_timeout" yaml:"record_timeout" env:"RECORD_TIMEOUT"`
		ActivateAll   bool     `toml:"activate_all" yaml:"activate_all" env:"ACTIVATE_ALL"`
	}

	// CSV configures the daily CSV files.
	CSV struct {
		Enabled bool   `toml:"enabled" yaml:"enabled" env:"ENABLED"`
		Dir     string `toml:"dir" yaml:"dir" env:"DIR"`
	}

	// Redis configures the last-value cache. An empty Addr disables it.
	Redis struct {
		Addr     string   `toml:"addr" yaml:"addr" env:"ADDR"`
		Password string   `toml:"password" yaml:"password" env:"PASSWORD"`
		DB       int      `toml:"db" yaml:"db" env:"DB"`
		TTL      Duration `toml:"ttl" yaml:"ttl" env:"TTL"`
	}

	// Postgres configures the reading archive. An empty URL disables it.
	Postgres struct {
		URL string `toml:"url" yaml:"url" env:"URL"`
	}

	// HTTP configures the control API. An empty Addr disables it.
	HTTP struct {
		Addr      string `toml:"addr" yaml:"addr" env:"ADDR"`
		AccessLog bool   `toml:"access_log" yaml:"access_log" env:"ACCESS_LOG"`
	}

	// Log configures the process logger.
	Log struct {
		Level  string `toml:"level" yaml:"level" env:"LEVEL"`
		Format string `toml:"format" yaml:"format" env:"FORMAT"`
	}
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Broker: Broker{
			URL:             mqtt.DefaultBroker,
			Protocol:        mqtt.ProtocolV311,
			ClientIDPrefix:  mqtt.DefaultClientIDPrefix,
			KeepAlive:       Duration(mqtt.DefaultKeepAlive),
			ConnectTimeout:  Duration(mqtt.DefaultConnectTimeout),
			ShutdownTimeout: Duration(mqtt.DefaultShutdownTimeout),
			AutoReconnect:   true,
		},
		Fleet: Fleet{
			Owner:         payload.DefaultOwner,
			Interval:      Duration(sensor.DefaultInterval),
			RecordTimeout: Duration(fleet.DefaultRecordTimeout),
		},
		CSV: CSV{
			Enabled: true,
			Dir:     recorder.DefaultCSVDir,
		},
		Redis: Redis{
			TTL: Duration(recorder.DefaultRedisTTL),
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, &InvalidArgumentError{
			Field:   "environment",
			message: "invalid environment override",
			wrapped: err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileError{Path: path, wrapped: err}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return &FileError{Path: path, wrapped: err}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return &FileError{Path: path, wrapped: err}
		}
	default:
		return &FileError{
			Path:    path,
			wrapped: fmt.Errorf("unsupported config format %q", ext),
		}
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, message string, wrapped error) {
		errs = append(errs, &InvalidArgumentError{
			Field:   field,
			message: message,
			wrapped: wrapped,
		})
	}

	if _, err := mqtt.ParseBroker(c.Broker.URL); err != nil {
		invalid("broker.url", "invalid broker URL", err)
	}
	if _, err := mqtt.TransportFor(c.Broker.Protocol); err != nil {
		invalid("broker.protocol", "invalid protocol", err)
	}
	if c.Broker.KeepAlive.Std() <= 0 {
		invalid("broker.keep_alive", "must be positive", nil)
	}
	if c.Broker.ConnectTimeout.Std() <= 0 {
		invalid("broker.connect_timeout", "must be positive", nil)
	}
	if c.Fleet.Interval.Std() < sensor.MinInterval {
		invalid("fleet.interval", "must be at least "+sensor.MinInterval.String(), nil)
	}
	if c.Fleet.RecordTimeout.Std() <= 0 {
		invalid("fleet.record_timeout", "must be positive", nil)
	}
	if c.CSV.Enabled && c.CSV.Dir == "" {
		invalid("csv.dir", "required when csv is enabled", nil)
	}
	if c.Redis.Addr != "" && c.Redis.TTL.Std() <= 0 {
		invalid("redis.ttl", "must be positive", nil)
	}
	if c.Redis.DB < 0 {
		invalid("redis.db", "must not be negative", nil)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		invalid("log.format", "must be text or json", nil)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
