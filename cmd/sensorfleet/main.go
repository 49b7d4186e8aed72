// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command sensorfleet runs the simulated environmental sensor fleet.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/monitorizapt/sensorfleet/config"
	"github.com/spf13/cobra"
)

type flags struct {
	config    string
	logLevel  string
	logFormat string
	activate  bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "sensorfleet",
		Short:         "Simulated environmental sensor fleet publishing over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.config)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = f.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = f.logFormat
			}
			if f.activate {
				cfg.Fleet.ActivateAll = true
			}

			logger, err := newLogger(cmd.OutOrStdout(), cfg.Log)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(
				context.Background(),
				os.Interrupt,
				syscall.SIGTERM,
			)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("sensorfleet failed", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "TOML or YAML configuration file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "text or json")
	cmd.Flags().BoolVar(&f.activate, "activate", false, "activate every sensor on start")
	return cmd
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	default:
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level})), nil
	}
}
