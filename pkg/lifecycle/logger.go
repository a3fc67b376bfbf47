/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

// InitializeLogger initializes the package-level logger with the provided configuration.
// If config is nil, it uses the default configuration.
func InitializeLogger(config *logger.Config) error {
	if err := logger.Init(config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// CreateLogger creates a new logger instance with the provided configuration.
// This returns a logger that can be injected into services.
func CreateLogger(config *logger.Config) (logger.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	level, err := logger.ParseLevel(config)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	zlog := zerolog.New(logger.Output(config)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger.New(zlog), nil
}

// CreateComponentLogger creates a logger for a specific component.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	base, err := CreateLogger(config)
	if err != nil {
		return nil, err
	}

	return logger.Component(base, component), nil
}

// InitializeMetrics installs the OTLP meter provider described by cfg and
// returns its shutdown hook. A disabled exporter yields a no-op hook.
func InitializeMetrics(ctx context.Context, cfg models.MetricsConfig, log logger.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }

	otelCfg := logger.DefaultOTelConfig()
	if cfg.Enabled {
		otelCfg.Enabled = true
	}

	if cfg.Endpoint != "" {
		otelCfg.Endpoint = cfg.Endpoint
	}

	if cfg.Insecure {
		otelCfg.Insecure = true
	}

	for k, v := range cfg.Headers {
		otelCfg.Headers[k] = v
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName: cfg.ServiceName,
		OTel:        otelCfg,
	})

	switch {
	case errors.Is(err, logger.ErrOTelMetricsDisabled):
		log.Debug().Msg("OTel metrics exporter disabled")
		return noop
	case err != nil:
		log.Warn().Err(err).Msg("Failed to initialize OTel metrics; continuing without export")
		return noop
	}

	log.Info().Str("endpoint", otelCfg.Endpoint).Msg("OTel metrics exporter initialized")

	return logger.ShutdownMetrics
}
