// Package config loads celcat settings from .celcat.yaml, CELCAT_* env vars
// and CLI flags through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServeConfig holds the listen addresses of `celcat serve`.
type ServeConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name"`
}

// Config holds all runtime configuration for a celcat session.
type Config struct {
	Kernels      []string      `mapstructure:"kernels"`
	Frame        string        `mapstructure:"frame"`
	BuiltinNames bool          `mapstructure:"builtin_names"`
	Watch        bool          `mapstructure:"watch"`
	Log          LogConfig     `mapstructure:"log"`
	Serve        ServeConfig   `mapstructure:"serve"`
	Tracing      TracingConfig `mapstructure:"tracing"`
}

// Init points viper at cfgFile, or at .celcat.yaml in the working or home
// directory, and enables CELCAT_* environment overrides. A missing default
// config file is not an error; a missing or unreadable explicit one is.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".celcat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CELCAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("kernels", []string{})
	viper.SetDefault("frame", "J2000")
	viper.SetDefault("builtin_names", true)
	viper.SetDefault("watch", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("serve.grpc_addr", ":50061")
	viper.SetDefault("serve.http_addr", ":9091")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.exporter", "stdout")
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("tracing.sample_ratio", 1.0)
	viper.SetDefault("tracing.service_name", "celcat")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default away.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Frame) == "" {
		return fmt.Errorf("%w: frame must not be empty", ErrInvalid)
	}
	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio %v outside [0, 1]", ErrInvalid, r)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q is neither json nor text", ErrInvalid, c.Log.Format)
	}
	return nil
}
