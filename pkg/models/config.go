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

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/hotspot-relay/pkg/logger"
)

// Duration is a time.Duration that decodes from either a Go duration string
// ("5m") or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case int:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OrDefault returns def when the duration is unset or negative.
func (d Duration) OrDefault(def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}

	return time.Duration(d)
}

var errInvalidDuration = fmt.Errorf("invalid duration")

// RelayConfig is the top-level configuration of the relay service.
type RelayConfig struct {
	ListenAddr string          `json:"listen_addr" yaml:"listen_addr"`
	Auth       AuthConfig      `json:"auth" yaml:"auth"`
	Mikrotik   MikrotikConfig  `json:"mikrotik" yaml:"mikrotik"`
	Hotspot    HotspotConfig   `json:"hotspot" yaml:"hotspot"`
	Sessions   SessionsConfig  `json:"sessions" yaml:"sessions"`
	Access     AccessConfig    `json:"access" yaml:"access"`
	RateLimit  RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Devices    []DeviceConfig  `json:"devices" yaml:"devices"`
	Database   DatabaseConfig  `json:"database" yaml:"database"`
	Redis      RedisConfig     `json:"redis" yaml:"redis"`
	NATS       NATSConfig      `json:"nats" yaml:"nats"`
	Alerts     AlertsConfig    `json:"alerts" yaml:"alerts"`
	Processor  ProcessorConfig `json:"processor" yaml:"processor"`
	Logging    *logger.Config  `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type AuthConfig struct {
	Token     string   `json:"token" yaml:"token"`
	APISecret string   `json:"api_secret" yaml:"api_secret"`
	MaxSkew   Duration `json:"max_skew" yaml:"max_skew"`
}

type MikrotikConfig struct {
	Timeout Duration          `json:"timeout" yaml:"timeout"`
	Default RouterCredentials `json:"default" yaml:"default"`
}

type HotspotConfig struct {
	PaidList string `json:"paid_list" yaml:"paid_list"`
	Server   string `json:"server" yaml:"server"`
}

type SessionsConfig struct {
	FallbackTTL Duration `json:"fallback_ttl" yaml:"fallback_ttl"`
}

type AccessConfig struct {
	RetryWithResync *bool           `json:"retry_with_resync" yaml:"retry_with_resync"`
	RateLimit       RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RetryEnabled reports whether a failed grant is re-run through the resync path.
func (c AccessConfig) RetryEnabled() bool {
	return c.RetryWithResync == nil || *c.RetryWithResync
}

type RateLimitConfig struct {
	Requests int      `json:"requests" yaml:"requests"`
	Window   Duration `json:"window" yaml:"window"`
}

// DeviceConfig maps a logical device id to the router that serves it.
type DeviceConfig struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Host string `json:"host" yaml:"host"`
	User string `json:"user" yaml:"user"`
	Pass string `json:"pass" yaml:"pass"`
	Port int    `json:"port" yaml:"port"`
}

// Credentials returns the router credentials of the device.
func (d DeviceConfig) Credentials() RouterCredentials {
	return RouterCredentials{Host: d.Host, User: d.User, Pass: d.Pass, Port: d.Port}.WithDefaultPort()
}

type DatabaseConfig struct {
	URL      string `json:"url" yaml:"url"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns"`
	MinConns int32  `json:"min_conns" yaml:"min_conns"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

type NATSConfig struct {
	URL      string `json:"url" yaml:"url"`
	Stream   string `json:"stream" yaml:"stream"`
	Subject  string `json:"subject" yaml:"subject"`
	Consumer string `json:"consumer" yaml:"consumer"`

	// CredsFile and NKeySeedFile are alternative ways to authenticate.
	CredsFile    string `json:"creds_file,omitempty" yaml:"creds_file,omitempty"`
	NKeySeedFile string `json:"nkey_seed_file,omitempty" yaml:"nkey_seed_file,omitempty"`
}

type AlertsConfig struct {
	Cooldown        Duration `json:"cooldown" yaml:"cooldown"`
	QueueSize       int      `json:"queue_size" yaml:"queue_size"`
	SlackWebhookURL string   `json:"slack_webhook_url" yaml:"slack_webhook_url"`
	WebhookURL      string   `json:"webhook_url" yaml:"webhook_url"`
	ReplayWindow    Duration `json:"replay_window" yaml:"replay_window"`
}

type ProcessorConfig struct {
	Interval  Duration `json:"interval" yaml:"interval"`
	BatchSize int      `json:"batch_size" yaml:"batch_size"`
}

type MetricsConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	ServiceName string            `json:"service_name" yaml:"service_name"`
}
