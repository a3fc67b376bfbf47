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

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

// ApplyEnv overlays the relay environment variables on cfg. Unset or blank
// variables leave the existing value untouched.
func ApplyEnv(cfg *models.RelayConfig, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("RELAY_TOKEN", &cfg.Auth.Token)
	str("RELAY_API_SECRET", &cfg.Auth.APISecret)
	str("RELAY_PAID_LIST", &cfg.Hotspot.PaidList)
	str("RELAY_HOTSPOT_SERVER", &cfg.Hotspot.Server)
	str("RELAY_LISTEN_ADDR", &cfg.ListenAddr)
	str("RELAY_DATABASE_URL", &cfg.Database.URL)
	str("RELAY_REDIS_URL", &cfg.Redis.URL)
	str("RELAY_NATS_URL", &cfg.NATS.URL)
	str("RELAY_NATS_CREDS", &cfg.NATS.CredsFile)
	str("RELAY_NATS_NKEY_SEED", &cfg.NATS.NKeySeedFile)
	str("RELAY_SLACK_WEBHOOK_URL", &cfg.Alerts.SlackWebhookURL)
	str("RELAY_ALERT_WEBHOOK_URL", &cfg.Alerts.WebhookURL)
	str("MIKROTIK_HOST", &cfg.Mikrotik.Default.Host)
	str("MIKROTIK_USER", &cfg.Mikrotik.Default.User)
	str("MIKROTIK_PASS", &cfg.Mikrotik.Default.Pass)

	if port := strings.TrimSpace(getenv("PORT")); port != "" && getenv("RELAY_LISTEN_ADDR") == "" {
		cfg.ListenAddr = ":" + port
	}

	if v := strings.TrimSpace(getenv("MIKROTIK_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MIKROTIK_PORT %q: %w", v, err)
		}

		cfg.Mikrotik.Default.Port = port
	}

	// MIKROTIK_TIMEOUT is expressed in milliseconds.
	if v := strings.TrimSpace(getenv("MIKROTIK_TIMEOUT")); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid MIKROTIK_TIMEOUT %q", v)
		}

		cfg.Mikrotik.Timeout = models.Duration(time.Duration(ms) * time.Millisecond)
	}

	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" && cfg.Logging != nil {
		cfg.Logging.Level = v
	}

	return nil
}
