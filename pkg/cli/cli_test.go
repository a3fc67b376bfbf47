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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hotspot-relay/pkg/api"
	"github.com/carverauto/hotspot-relay/pkg/cache"
	"github.com/carverauto/hotspot-relay/pkg/config"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseFlagsEnvFallback(t *testing.T) {
	cfg, err := ParseFlags([]string{"-token", "flag-token", "health"}, env(map[string]string{
		"RELAY_ADDR":       "https://relay.local:4000",
		"RELAY_TOKEN":      "env-token",
		"RELAY_API_SECRET": "s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "health", cfg.SubCmd)
	assert.Equal(t, "https://relay.local:4000", cfg.Addr)
	assert.Equal(t, "flag-token", cfg.Token)
	assert.Equal(t, "s", cfg.Secret)
}

func TestParseFlagsSubcommands(t *testing.T) {
	cfg, err := ParseFlags([]string{"exec", "-device", "bus-7", "/system/identity/print", "/ip/address/print"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "bus-7", cfg.DeviceID)
	assert.Equal(t, []string{"/system/identity/print", "/ip/address/print"}, cfg.Sentences)

	cfg, err = ParseFlags([]string{"replay"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Since)

	cfg, err = ParseFlags([]string{"replay", "-since", "30m"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Since)

	_, err = ParseFlags([]string{"exec", "-device", "bus-7"}, env(nil))
	require.ErrorIs(t, err, errMissingSentences)

	_, err = ParseFlags([]string{"replay", "-since", "-5m"}, env(nil))
	require.ErrorIs(t, err, errNegativeSince)

	_, err = ParseFlags([]string{"reboot"}, env(nil))
	require.ErrorIs(t, err, errUnknownCommand)

	cfg, err = ParseFlags(nil, env(nil))
	require.NoError(t, err)
	assert.True(t, cfg.Help)
}

func TestRunRequiresConnectionSettings(t *testing.T) {
	var out bytes.Buffer

	err := Run(context.Background(), &CmdConfig{SubCmd: "health"}, &out)
	require.ErrorIs(t, err, errMissingAddr)

	err = Run(context.Background(), &CmdConfig{SubCmd: "health", Addr: "http://x"}, &out)
	require.ErrorIs(t, err, errMissingSecret)
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), &CmdConfig{Help: true}, &out))
	assert.Contains(t, out.String(), "relayctl")
}

func TestRunHealthAgainstRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Token = "tok"
	cfg.Auth.APISecret = "sec"

	srv := api.NewAPIServer(cfg, logger.NewTestLogger(), api.WithNonceStore(cache.NewMemoryNonceStore()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var out bytes.Buffer

	err := Run(context.Background(), &CmdConfig{SubCmd: "health", Addr: ts.URL, Token: "tok", Secret: "sec"}, &out)
	require.NoError(t, err)

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "hotspot-relay", resp.Service)

	err = Run(context.Background(), &CmdConfig{SubCmd: "health", Addr: ts.URL, Token: "tok", Secret: "wrong"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_signature")
}

func TestRunReplayAgainstUnconfiguredRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Token = "tok"
	cfg.Auth.APISecret = "sec"

	srv := api.NewAPIServer(cfg, logger.NewTestLogger(), api.WithNonceStore(cache.NewMemoryNonceStore()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var out bytes.Buffer

	err := Run(context.Background(), &CmdConfig{SubCmd: "replay", Since: time.Hour, Addr: ts.URL, Token: "tok", Secret: "sec"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.CodeInternal)
}
