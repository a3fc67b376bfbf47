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

package relayclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/hotspot-relay/pkg/api"
	"github.com/carverauto/hotspot-relay/pkg/cache"
	"github.com/carverauto/hotspot-relay/pkg/config"
	"github.com/carverauto/hotspot-relay/pkg/devices"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

type replayer struct{ since time.Time }

func (r *replayer) Replay(_ context.Context, since time.Time) ([]models.AlertEvent, error) {
	r.since = since

	return []models.AlertEvent{{Rule: models.RuleFailDistributed, Severity: models.SeverityCritical}}, nil
}

func newRelay(t *testing.T) (*httptest.Server, *mikrotik.MockExecutor, *replayer) {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.Token = "tok"
	cfg.Auth.APISecret = "s3cret"

	exec := mikrotik.NewMockExecutor(gomock.NewController(t))
	rp := &replayer{}

	srv := api.NewAPIServer(cfg, logger.NewTestLogger(),
		api.WithExecutor(exec),
		api.WithDeviceResolver(devices.NewStaticResolver([]models.DeviceConfig{
			{ID: "bus-7", Host: "10.7.0.1", User: "api", Pass: "pw"},
		}, models.RouterCredentials{})),
		api.WithAlertReplayer(rp),
		api.WithNonceStore(cache.NewMemoryNonceStore()),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, exec, rp
}

func newClient(t *testing.T, addr, secret string) *Client {
	t.Helper()

	c, err := New(Options{Addr: addr, Token: "tok", Secret: secret})
	require.NoError(t, err)

	return c
}

func TestSignedRoundTrip(t *testing.T) {
	ts, exec, rp := newRelay(t)
	c := newClient(t, ts.URL, "s3cret")
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.OK)
	require.NotNil(t, health.Devices)
	assert.Equal(t, 1, *health.Devices)

	exec.EXPECT().
		Execute(gomock.Any(), models.RouterCredentials{Host: "10.7.0.1", User: "api", Pass: "pw", Port: 8728}, gomock.Len(2)).
		Return([]mikrotik.Result{{Command: "/system/identity/print"}, {Command: "/ip/address/print"}}, nil)

	res, err := c.ExecByDevice(ctx, "bus-7", "/system/identity/print", "/ip/address/print")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Len(t, res.Results, 2)

	before := time.Now()
	alerts, err := c.ReplayAlerts(ctx, 45*time.Minute)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RuleFailDistributed, alerts[0].Rule)
	assert.WithinDuration(t, before.Add(-45*time.Minute), rp.since, 5*time.Second)
}

func TestWrongSecretIsRejected(t *testing.T) {
	ts, _, _ := newRelay(t)
	c := newClient(t, ts.URL, "other")

	_, err := c.Health(context.Background())

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, 401, relayErr.Status)
	assert.Equal(t, "invalid_signature", relayErr.Code)
}

func TestFixedNonceIsReplayRejected(t *testing.T) {
	ts, _, _ := newRelay(t)
	c := newClient(t, ts.URL, "s3cret")
	c.nonce = func() string { return "same" }

	_, err := c.Health(context.Background())
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_signature")
}

func TestUnknownDevice(t *testing.T) {
	ts, _, _ := newRelay(t)
	c := newClient(t, ts.URL, "s3cret")

	_, err := c.ExecByDevice(context.Background(), "bus-404", "/system/identity/print")

	var relayErr *Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, 404, relayErr.Status)
	assert.Equal(t, "device_not_found", relayErr.Code)
}

func TestNewValidatesAddr(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, errAddrRequired)

	_, err = New(Options{Addr: "http://"})
	require.ErrorIs(t, err, errInvalidAddr)

	c, err := New(Options{Addr: "relay.example.net:8080"})
	require.NoError(t, err)
	assert.Equal(t, "relay.example.net:8080", c.baseURL.Host)
}
