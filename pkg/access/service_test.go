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

package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/devices"
	"github.com/carverauto/hotspot-relay/pkg/hotspot"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/sessions"
)

var (
	router  = models.RouterCredentials{Host: "10.0.0.1", User: "api", Pass: "pw", Port: 8728}
	expires = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fakeRegistrar struct {
	entries []sessions.Entry
	err     error
}

func (f *fakeRegistrar) Register(_ context.Context, e sessions.Entry) (time.Time, error) {
	f.entries = append(f.entries, e)

	if e.ExpiresAt.IsZero() {
		return time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC), f.err
	}

	return e.ExpiresAt, f.err
}

func newTestService(t *testing.T, opts ...Option) (*Service, *mikrotik.MockExecutor, *fakeRegistrar) {
	t.Helper()

	exec := mikrotik.NewMockExecutor(gomock.NewController(t))
	reg := &fakeRegistrar{}

	return NewService(exec, hotspot.NewBuilder("", ""), reg, logger.NewTestLogger(), opts...), exec, reg
}

func basePayload() *Payload {
	return &Payload{
		Router:    models.RouterCredentials{Host: " 10.0.0.1 ", User: "api", Pass: "pw"},
		IPAtual:   "10.0.0.5",
		MACAtual:  "aa:bb:cc:dd:ee:ff",
		Token:     "tok-123",
		PedidoID:  "ckabcdef1234",
		Plano:     "1h",
		ExpiresAt: expires.Format(time.RFC3339),
	}
}

func TestAuthorizeByPedido(t *testing.T) {
	svc, exec, reg := newTestService(t)

	want := hotspot.NewBuilder("", "").Authorize(hotspot.Intent{
		IP:       "10.0.0.5",
		MAC:      "AA:BB:CC:DD:EE:FF",
		Username: "tok-123",
		Comment:  "pedido:ckabcdef plano:1h",
	})

	exec.EXPECT().Execute(gomock.Any(), router, want).
		Return([]mikrotik.Result{{Command: "a"}, {Command: "b"}, {Command: "c"}}, nil)

	res, err := svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "10.0.0.1", res.RouterHost)
	assert.Equal(t, 3, res.CommandCount)
	require.NotNil(t, res.Token)
	assert.Equal(t, "tok-123", *res.Token)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, expires, *res.ExpiresAt)
	assert.Len(t, res.Mikrotik, 3)

	require.Len(t, reg.entries, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", reg.entries[0].MAC)
	assert.Equal(t, router, reg.entries[0].Router)
}

func TestAuthorizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Payload)
		wantErr error
	}{
		{
			name:    "missing password",
			mutate:  func(p *Payload) { p.Router.Pass = "  " },
			wantErr: ErrRouterCredentialsMissing,
		},
		{
			name:    "missing host",
			mutate:  func(p *Payload) { p.Router.Host = "" },
			wantErr: ErrRouterCredentialsMissing,
		},
		{
			name: "invalid ip and mac are treated as absent",
			mutate: func(p *Payload) {
				p.IPAtual = "not-an-ip"
				p.MACAtual = "AA-BB-CC-DD-EE-FF"
			},
			wantErr: ErrMissingIPOrMAC,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, reg := newTestService(t)

			p := basePayload()
			tc.mutate(p)

			_, err := svc.AuthorizeByPedido(context.Background(), p, Options{})
			require.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, reg.entries)
		})
	}
}

func TestAuthorizeFailureDoesNotRegister(t *testing.T) {
	svc, exec, reg := newTestService(t)

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, mikrotik.ErrUnreachable)

	_, err := svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.ErrorIs(t, err, mikrotik.ErrUnreachable)
	assert.Equal(t, "relay_unreachable", models.ErrorCode(err))
	assert.Empty(t, reg.entries)
}

func TestCommandFailureRetriesThroughResync(t *testing.T) {
	svc, exec, _ := newTestService(t)
	b := hotspot.NewBuilder("", "")

	gomock.InOrder(
		exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Len(3)).
			Return(nil, &mikrotik.CommandError{Index: 1, Err: errors.New("already have such entry")}),
		exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Len(len(b.Resync(hotspot.Intent{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:FF", Username: "tok-123"})))).
			Return(nil, nil),
	)

	res, err := svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.CommandCount)
}

func TestRetryCanBeDisabled(t *testing.T) {
	svc, exec, _ := newTestService(t, WithRetryWithResync(false))

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &mikrotik.CommandError{Err: errors.New("failure")}).Times(1)

	_, err := svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.Error(t, err)
}

func TestResyncDeviceUsesResyncCommands(t *testing.T) {
	svc, exec, _ := newTestService(t)

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.RouterCredentials, cmds []mikrotik.Command) ([]mikrotik.Result, error) {
			require.Len(t, cmds, 7)
			assert.Equal(t, "/ip/firewall/address-list/remove", cmds[0].Path)
			assert.Equal(t, "/ip/hotspot/user/add", cmds[6].Path)

			return nil, nil
		})

	res, err := svc.ResyncDevice(context.Background(), basePayload())
	require.NoError(t, err)
	assert.NotNil(t, res.Mikrotik)
}

func TestAuthorizeWritesAuditTrail(t *testing.T) {
	store := audit.NewMemoryStore()
	svc, exec, _ := newTestService(t, WithRecorder(audit.NewRecorder(store, logger.NewTestLogger())))

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, mikrotik.ErrUnreachable)

	_, err := svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.NoError(t, err)

	_, err = svc.AuthorizeByPedido(context.Background(), basePayload(), Options{})
	require.Error(t, err)

	recs, err := store.Query(context.Background(), audit.Query{})
	require.NoError(t, err)

	events := make([]string, 0, len(recs))
	for _, r := range recs {
		events = append(events, r.Event)
		assert.Equal(t, "10.0.0.1", r.MikrotikID())
		assert.Equal(t, "ckabcdef1234", r.OrderCode())
	}

	assert.ElementsMatch(t, []string{
		models.EventReleaseAttempt, models.EventReleaseSuccess,
		models.EventReleaseAttempt, models.EventReleaseFail,
	}, events)
}

func TestReleaseFuncResolvesDevice(t *testing.T) {
	svc, exec, _ := newTestService(t)
	resolver := devices.NewStaticResolver([]models.DeviceConfig{
		{ID: "mk-1", Host: "10.0.0.1", User: "api", Pass: "pw"},
	}, models.RouterCredentials{})

	exec.EXPECT().Execute(gomock.Any(), router, gomock.Any()).Return([]mikrotik.Result{{Command: "x"}}, nil)

	out, err := svc.ReleaseFunc(resolver)(context.Background(), audit.ReleaseRequest{
		PedidoID: "ped-1",
		Router:   "mk-1",
		IP:       "10.0.0.5",
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "mk-1", out.RouterID)

	_, err = svc.ReleaseFunc(resolver)(context.Background(), audit.ReleaseRequest{PedidoID: "ped-1", Router: "mk-9"})
	require.ErrorIs(t, err, devices.ErrDeviceNotFound)
}
