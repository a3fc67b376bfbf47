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

// Package config loads the relay configuration from a file and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

var (
	ErrMissingRelayToken = errors.New("RELAY_TOKEN is required")
	errInvalidRateLimit  = errors.New("rate limit requests must be positive")
	errDuplicateDevice   = errors.New("duplicate device id")
)

// Defaults applied before the file and environment are read.
const (
	DefaultListenAddr     = ":4000"
	DefaultPaidList       = "paid_clients"
	DefaultHotspotServer  = "hotspot1"
	DefaultTimeout        = 8 * time.Second
	DefaultFallbackTTL    = 5 * time.Minute
	DefaultMaxSkew        = 5 * time.Minute
	DefaultAlertCooldown  = 5 * time.Minute
	DefaultAlertQueue     = 256
	DefaultReplayWindow   = 10 * time.Minute
	DefaultProcessorEvery = 5 * time.Second
	DefaultProcessorBatch = 10
	DefaultNATSStream     = "RELAY_AUDIT"
	DefaultNATSSubject    = "relay.audit"
	DefaultNATSConsumer   = "hotspot-relay"
)

// ConfigLoader reads a configuration document into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	fileLoader ConfigLoader
	getenv     func(string) string
	logger     logger.Logger
}

// NewConfig initializes a Config with the file loader and the process environment.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		fileLoader: &FileConfigLoader{},
		getenv:     os.Getenv,
		logger:     log,
	}
}

// LoadRelayConfig builds the relay configuration: defaults, then the file at
// path (when set), then environment overrides, then validation.
func (c *Config) LoadRelayConfig(ctx context.Context, path string) (*models.RelayConfig, error) {
	cfg := Default()

	if path != "" {
		if err := c.fileLoader.Load(ctx, path, cfg); err != nil {
			return nil, err
		}

		c.logger.Debug().Str("path", path).Msg("Loaded configuration file")
	}

	if err := ApplyEnv(cfg, c.getenv); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration populated with the built-in defaults.
func Default() *models.RelayConfig {
	cfg := &models.RelayConfig{}
	applyDefaults(cfg)

	return cfg
}

func applyDefaults(cfg *models.RelayConfig) {
	setString(&cfg.ListenAddr, DefaultListenAddr)
	setString(&cfg.Hotspot.PaidList, DefaultPaidList)
	setString(&cfg.Hotspot.Server, DefaultHotspotServer)
	setString(&cfg.NATS.Stream, DefaultNATSStream)
	setString(&cfg.NATS.Subject, DefaultNATSSubject)
	setString(&cfg.NATS.Consumer, DefaultNATSConsumer)

	setDuration(&cfg.Mikrotik.Timeout, DefaultTimeout)
	setDuration(&cfg.Sessions.FallbackTTL, DefaultFallbackTTL)
	setDuration(&cfg.Auth.MaxSkew, DefaultMaxSkew)
	setDuration(&cfg.Alerts.Cooldown, DefaultAlertCooldown)
	setDuration(&cfg.Alerts.ReplayWindow, DefaultReplayWindow)
	setDuration(&cfg.Processor.Interval, DefaultProcessorEvery)

	if cfg.Alerts.QueueSize <= 0 {
		cfg.Alerts.QueueSize = DefaultAlertQueue
	}

	if cfg.Processor.BatchSize <= 0 {
		cfg.Processor.BatchSize = DefaultProcessorBatch
	}

	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit = models.RateLimitConfig{Requests: 120, Window: models.Duration(time.Minute)}
	}

	if cfg.Access.RateLimit.Requests == 0 {
		cfg.Access.RateLimit = models.RateLimitConfig{Requests: 60, Window: models.Duration(time.Minute)}
	}

	setDuration(&cfg.RateLimit.Window, time.Minute)
	setDuration(&cfg.Access.RateLimit.Window, time.Minute)

	if cfg.Mikrotik.Default.Host != "" {
		cfg.Mikrotik.Default = cfg.Mikrotik.Default.WithDefaultPort()
	}

	if cfg.Logging == nil {
		cfg.Logging = logger.DefaultConfig()
	}
}

// Validate checks the invariants the relay cannot start without.
func Validate(cfg *models.RelayConfig) error {
	if cfg.Auth.Token == "" {
		return ErrMissingRelayToken
	}

	if cfg.RateLimit.Requests < 0 || cfg.Access.RateLimit.Requests < 0 {
		return errInvalidRateLimit
	}

	seen := make(map[string]struct{}, len(cfg.Devices))

	for _, d := range cfg.Devices {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: %s", errDuplicateDevice, d.ID)
		}

		seen[d.ID] = struct{}{}
	}

	return nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setDuration(dst *models.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = models.Duration(def)
	}
}
