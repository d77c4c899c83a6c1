package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tubeworker/pkg/config"
	"github.com/dmitrymomot/tubeworker/pkg/httpserver"
	"github.com/dmitrymomot/tubeworker/pkg/logger"
)

// errReported marks errors that were already logged.
var errReported = errors.New("reported")

// settings are the process settings read from the environment. Command
// line flags override them.
type settings struct {
	ConfigPath string `env:"TUBEWORKER_CONFIG" envDefault:"tubeworker.yaml"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppName    string `env:"APP_NAME" envDefault:"tubeworker"`
	LogLevel   string `env:"LOG_LEVEL"`
	LogFormat  string `env:"LOG_FORMAT"`

	ReserveTimeout  time.Duration `env:"RESERVE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	BeanstalkHost string `env:"BEANSTALK_HOST"`
	BeanstalkPort int    `env:"BEANSTALK_PORT"`

	HTTP httpserver.Config
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	var s settings
	if err := config.Load(&s); err != nil {
		return settings{}, err
	}

	flags := cmd.Flags()
	override := func(name string, set func()) {
		if flags.Changed(name) {
			set()
		}
	}
	override("config", func() { s.ConfigPath, _ = flags.GetString("config") })
	override("log-level", func() { s.LogLevel, _ = flags.GetString("log-level") })
	override("log-format", func() { s.LogFormat, _ = flags.GetString("log-format") })
	override("host", func() { s.BeanstalkHost, _ = flags.GetString("host") })
	override("port", func() { s.BeanstalkPort, _ = flags.GetInt("port") })
	override("http-addr", func() { s.HTTP.Addr, _ = flags.GetString("http-addr") })
	override("reserve-timeout", func() { s.ReserveTimeout, _ = flags.GetDuration("reserve-timeout") })
	override("shutdown-timeout", func() { s.ShutdownTimeout, _ = flags.GetDuration("shutdown-timeout") })
	return s, nil
}

// newLogger applies the APP_ENV preset, then explicit level and format.
func newLogger(s settings, cmd *cobra.Command) (*slog.Logger, error) {
	opts := []logger.Option{
		logger.WithEnvironment(s.AppEnv, s.AppName),
		logger.WithSplitOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
	if s.LogLevel != "" {
		level, err := logger.ParseLevel(s.LogLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logger.WithLevel(level))
	}
	if s.LogFormat != "" {
		format, err := logger.ParseFormat(s.LogFormat)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logger.WithFormat(format))
	}
	return logger.New(opts...), nil
}
