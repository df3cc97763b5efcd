// Package telemetry builds the process logger and connects the metrics client.
package telemetry

import (
	"os"
	"time"

	"github.com/mithril-labs/quarry/pkg/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Telemetry struct {
	Logger      zerolog.Logger
	serviceName string
	metrics     bool
}

func New(opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	logger := newLogger(options)

	metrics := options.StatsdAddress != ""
	if metrics {
		if err := statsd.Init(options.StatsdAddress, options.StatsdTags); err != nil {
			return Telemetry{}, eris.Wrap(err, "failed to init statsd")
		}
		logger.Info().Str("address", options.StatsdAddress).Msg("statsd metrics enabled")
	}

	return Telemetry{
		Logger:      logger,
		serviceName: options.ServiceName,
		metrics:     metrics,
	}, nil
}

// Shutdown flushes the metrics client.
func (t *Telemetry) Shutdown() {
	if t.metrics {
		statsd.Close()
	}
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

func init() { //nolint:gochecknoinits // Its fine
	// Set up the global logger
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	// Create a console writer with timestamp
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	// Set the global logger
	log.Logger = zerolog.New(consoleWriter). //nolint:reassign // Its fine
							Level(zerolog.InfoLevel).
							With().
							Timestamp().
							Caller().
							Logger()
}

// GetGlobalLogger returns a component-specific logger using the global console logger.
func GetGlobalLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
