// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monitorizapt/sensorfleet/config"
	"github.com/monitorizapt/sensorfleet/fleet"
	"github.com/monitorizapt/sensorfleet/httpapi"
	"github.com/monitorizapt/sensorfleet/metrics"
	"github.com/monitorizapt/sensorfleet/mqtt"
	"github.com/monitorizapt/sensorfleet/mqtt/retry"
	"github.com/monitorizapt/sensorfleet/recorder"
	"github.com/redis/go-redis/v9"
)

const (
	readyTimeout    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// run wires every component and blocks until ctx is done.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m := metrics.New()

	recorders, closeRecorders, err := openRecorders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecorders()

	transport, err := mqtt.TransportFor(cfg.Broker.Protocol)
	if err != nil {
		return err
	}
	manager := mqtt.NewManager(
		mqtt.WithBroker(cfg.Broker.URL),
		mqtt.WithClientIDPrefix(cfg.Broker.ClientIDPrefix),
		mqtt.WithKeepAlive(cfg.Broker.KeepAlive.Std()),
		mqtt.WithConnectTimeout(cfg.Broker.ConnectTimeout.Std()),
		mqtt.WithShutdownTimeout(cfg.Broker.ShutdownTimeout.Std()),
		mqtt.WithAutoReconnect(cfg.Broker.AutoReconnect),
		mqtt.WithTransport(transport),
		mqtt.WithLogger(logger),
	)

	coord := fleet.New(manager,
		fleet.WithOwner(cfg.Fleet.Owner),
		fleet.WithInterval(cfg.Fleet.Interval.Std()),
		fleet.WithRecordTimeout(cfg.Fleet.RecordTimeout.Std()),
		fleet.WithRecorders(recorders),
		fleet.WithMetrics(m),
		fleet.WithLogger(logger),
	)
	defer coord.Shutdown()

	if cfg.Fleet.ActivateAll {
		coord.ActivateAll(cfg.Fleet.Interval.Std())
	}
	if err := coord.Start(); err != nil {
		logger.Warn("some command topics are not subscribed yet",
			slog.String("error", err.Error()),
		)
	}

	if cfg.HTTP.Addr == "" {
		<-ctx.Done()
		return nil
	}

	opts := []httpapi.ServerOption{
		httpapi.WithMetrics(m.Handler()),
		httpapi.WithLogger(logger),
	}
	if cfg.HTTP.AccessLog {
		opts = append(opts, httpapi.WithAccessLog(os.Stdout))
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(coord, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("control API listening", slog.String("addr", cfg.HTTP.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRecorders builds the configured sinks. Remote stores must answer a
// ping before the fleet starts.
func openRecorders(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
) ([]recorder.Recorder, func(), error) {
	var (
		recorders []recorder.Recorder
		closers   []func()
	)
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	policy := &retry.ExponentialBackoff{
		Timeout: readyTimeout,
		Logger:  logger,
	}

	if cfg.CSV.Enabled {
		csv, err := recorder.NewCSV(cfg.CSV.Dir)
		if err != nil {
			return nil, closeAll, err
		}
		recorders = append(recorders, csv)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })

		r := recorder.NewRedis(client, cfg.Redis.TTL.Std())
		if err := recorder.WaitReady(ctx, "redis", r, policy); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		recorders = append(recorders, r)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, pool.Close)

		pg := recorder.NewPostgres(pool)
		if err := recorder.WaitReady(ctx, "postgres", pg, policy); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		if err := pg.Migrate(ctx); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		recorders = append(recorders, pg)
	}

	return recorders, closeAll, nil
}
