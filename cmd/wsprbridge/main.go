package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wsprbridge/internal/app"
)

func newRootCmd() *cobra.Command {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "wsprbridge",
		Short: "WSPR balloon telemetry bridge",
		Long: `WSPR balloon telemetry bridge.

Looks up the latest identity and telemetry beacons of each configured
balloon on wspr.live or wsprnet.org, decodes ZachTek and Traquito frames,
and forwards the position to SondeHub, APRS-IS and MQTT. One pass per run;
schedule it from cron every few minutes.

Example usage:
  wsprbridge --config settings.yaml --log-dir ./logs
  wsprbridge --config settings.yaml --dry-run --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}

			application, err := app.Bootstrap(config)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err = application.Run(ctx)
			return err
		},
	}

	rootCmd.Flags().StringVarP(&config.ConfigPath, "config", "c", app.DefaultConfigPath, "Settings file (YAML)")
	rootCmd.Flags().StringVarP(&config.Source, "source", "s", "", "Spot source override (wsprlive or wsprnet)")
	rootCmd.Flags().DurationVar(&config.Lookback, "lookback", app.DefaultLookback, "How far back to look for spots")
	rootCmd.Flags().BoolVarP(&config.DryRun, "dry-run", "n", false, "Decode and log without uploading")
	rootCmd.Flags().StringVar(&config.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the pass")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", "", "Log directory (empty logs to stderr only)")
	rootCmd.Flags().BoolVarP(&config.LogRotateUTC, "utc", "u", true, "Use UTC for log rotation")
	rootCmd.Flags().IntVar(&config.MaxLogDays, "max-log-days", app.DefaultMaxLogDays, "Days of log files to keep")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
