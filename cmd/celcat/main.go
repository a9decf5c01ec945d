// Command celcat inspects a catalog of solar system objects backed by
// ephemeris kernels, and serves it over gRPC and HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/signalsfoundry/celestial-catalog/internal/config"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/internal/observability"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// timeNow is the clock behind default epochs.
var timeNow = time.Now

var rootCmd = &cobra.Command{
	Use:           "celcat",
	Short:         "Solar system object catalog over ephemeris kernels",
	Long:          "celcat loads ephemeris kernels, tracks solar system objects and reports their parameters, coverage, states and orientation.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .celcat.yaml)")
	flags.StringSliceP("kernel", "k", nil, "kernel file to furnish; repeatable")
	flags.String("frame", "", "reference frame (default J2000)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")

	_ = viper.BindPFlag("kernels", flags.Lookup("kernel"))
	_ = viper.BindPFlag("frame", flags.Lookup("frame"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the merged configuration and builds the logger it
// describes.
func loadConfig() (config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log, nil
}

// openSession creates a session, furnishes the configured kernels and
// switches to the configured frame, which may live in those kernels.
func openSession(ctx context.Context, cfg config.Config, log logging.Logger, metrics *observability.Collector) (*session.Session, error) {
	sess, err := session.New(session.Options{
		WithoutBuiltinNames: !cfg.BuiltinNames,
		Logger:              log,
		Metrics:             metrics,
	})
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Kernels {
		if err := sess.LoadKernel(ctx, path); err != nil {
			sess.Close()
			return nil, err
		}
	}
	if cfg.Frame != "" {
		if err := sess.SetReferenceFrame(ctx, cfg.Frame); err != nil {
			sess.Close()
			return nil, err
		}
	}
	return sess, nil
}
