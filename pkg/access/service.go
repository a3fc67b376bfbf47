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

// Package access grants and resyncs client access on hotspot routers.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/devices"
	"github.com/carverauto/hotspot-relay/pkg/hotspot"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/sessions"
)

var (
	ErrRouterCredentialsMissing = models.NewCodedError("router_credentials_missing")
	ErrMissingIPOrMAC           = models.NewCodedError("missing_ip_or_mac")
)

// Payload is the body of authorize and resync requests.
type Payload struct {
	Router    models.RouterCredentials `json:"router"`
	IPAtual   string                   `json:"ipAtual,omitempty"`
	MACAtual  string                   `json:"macAtual,omitempty"`
	Username  string                   `json:"username,omitempty"`
	Token     string                   `json:"token,omitempty"`
	PedidoID  string                   `json:"pedidoId,omitempty"`
	Plano     string                   `json:"plano,omitempty"`
	Comment   string                   `json:"comment,omitempty"`
	ExpiresAt string                   `json:"expiresAt,omitempty"`
}

type Options struct {
	Resync bool
}

// Result is returned on success.
type Result struct {
	OK           bool              `json:"ok"`
	RouterHost   string            `json:"routerHost"`
	CommandCount int               `json:"commandCount"`
	ExpiresAt    *time.Time        `json:"expiresAt"`
	Token        *string           `json:"token"`
	Mikrotik     []mikrotik.Result `json:"mikrotik"`
}

// Registrar schedules the revocation of a grant.
type Registrar interface {
	Register(ctx context.Context, e sessions.Entry) (time.Time, error)
}

type Service struct {
	executor        mikrotik.Executor
	builder         hotspot.Builder
	registry        Registrar
	recorder        *audit.Recorder
	retryWithResync bool
	logger          logger.Logger
}

type Option func(*Service)

func WithRecorder(r *audit.Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithRetryWithResync controls whether a failed non-resync authorize is
// re-run once through the resync path.
func WithRetryWithResync(enabled bool) Option {
	return func(s *Service) { s.retryWithResync = enabled }
}

func NewService(executor mikrotik.Executor, builder hotspot.Builder, registry Registrar, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		executor:        executor,
		builder:         builder,
		registry:        registry,
		retryWithResync: true,
		logger:          log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AuthorizeByPedido grants access to the client in p and schedules its
// revocation. Invalid ip or mac values are dropped rather than rejected.
func (s *Service) AuthorizeByPedido(ctx context.Context, p *Payload, opts Options) (*Result, error) {
	router, err := routerFrom(p.Router)
	if err != nil {
		recordRequest(ctx, resultRejected)
		return nil, err
	}

	ip := sanitizeIP(p.IPAtual)
	mac := sanitizeMAC(p.MACAtual)

	if ip == "" && mac == "" {
		recordRequest(ctx, resultRejected)
		return nil, ErrMissingIPOrMAC
	}

	comment := p.Comment
	if comment == "" {
		comment = defaultCommentFor(p.PedidoID, p.Plano)
	}

	intent := hotspot.Intent{
		IP:       ip,
		MAC:      mac,
		Username: sanitizeUsername(p.Username, p.Token, p.PedidoID),
		Comment:  sanitizeComment(comment),
	}

	meta := map[string]interface{}{
		"mikrotikId": router.Host,
		"orderCode":  p.PedidoID,
		"ip":         ip,
		"mac":        mac,
		"resync":     opts.Resync,
	}

	s.audit(ctx, models.EventReleaseAttempt, models.ResultAttempt, ip, p.PedidoID, meta)

	cmds := s.builder.Build(intent, opts.Resync)

	results, err := s.executor.Execute(ctx, router, cmds)

	var cmdErr *mikrotik.CommandError
	if err != nil && !opts.Resync && s.retryWithResync && errors.As(err, &cmdErr) {
		s.logger.Warn().
			Err(err).
			Str("host", router.Host).
			Int("index", cmdErr.Index).
			Msg("Authorize failed, retrying through resync")
		recordRequest(ctx, resultRetried)

		cmds = s.builder.Resync(intent)
		results, err = s.executor.Execute(ctx, router, cmds)
	}

	if err != nil {
		recordRequest(ctx, resultFailed)

		failMeta := copyMeta(meta)
		failMeta["error"] = err.Error()
		s.audit(ctx, models.EventReleaseFail, models.ResultFail, ip, p.PedidoID, failMeta)

		s.logger.Error().Err(err).Str("host", router.Host).Str("pedido_id", p.PedidoID).Msg("Authorize failed")

		return nil, fmt.Errorf("authorize on %s: %w", router.Host, err)
	}

	res := &Result{
		OK:           true,
		RouterHost:   router.Host,
		CommandCount: len(cmds),
		Mikrotik:     results,
	}

	if p.Token != "" {
		token := p.Token
		res.Token = &token
	}

	if res.Mikrotik == nil {
		res.Mikrotik = []mikrotik.Result{}
	}

	expiresAt, regErr := s.registry.Register(ctx, sessions.Entry{
		Token:     p.Token,
		IP:        ip,
		MAC:       mac,
		Username:  intent.Username,
		Router:    router,
		ExpiresAt: parseExpiry(p.ExpiresAt),
	})
	if regErr != nil {
		s.logger.Warn().Err(regErr).Str("host", router.Host).Msg("Failed to persist session revocation")
	}

	if !expiresAt.IsZero() {
		res.ExpiresAt = &expiresAt
	}

	recordRequest(ctx, resultOK)
	s.audit(ctx, models.EventReleaseSuccess, models.ResultSuccess, ip, p.PedidoID, meta)

	s.logger.Info().
		Str("host", router.Host).
		Str("pedido_id", p.PedidoID).
		Int("commands", len(cmds)).
		Bool("resync", opts.Resync).
		Msg("Access authorized")

	return res, nil
}

// ResyncDevice is AuthorizeByPedido with resync forced.
func (s *Service) ResyncDevice(ctx context.Context, p *Payload) (*Result, error) {
	return s.AuthorizeByPedido(ctx, p, Options{Resync: true})
}

// ReleaseFunc adapts the service to the release-request processor. The
// request's router is a device id resolved through resolver.
func (s *Service) ReleaseFunc(resolver devices.Resolver) audit.ReleaseFunc {
	return func(ctx context.Context, req audit.ReleaseRequest) (*audit.ReleaseOutcome, error) {
		router, err := resolver.Resolve(ctx, req.Router)
		if err != nil {
			return nil, err
		}

		res, err := s.AuthorizeByPedido(ctx, &Payload{
			Router:   router,
			IPAtual:  req.IP,
			MACAtual: req.MAC,
			PedidoID: req.PedidoID,
		}, Options{})
		if err != nil {
			return nil, err
		}

		routerID := req.Router
		if routerID == "" {
			routerID = res.RouterHost
		}

		return &audit.ReleaseOutcome{OK: res.OK, RouterID: routerID, Result: res.Mikrotik}, nil
	}
}

func (s *Service) audit(ctx context.Context, event, result, ip, entity string, meta map[string]interface{}) {
	if s.recorder == nil {
		return
	}

	s.recorder.RecordQuietly(ctx, &models.AuditRecord{
		Event:    event,
		Result:   result,
		IP:       ip,
		EntityID: entity,
		Metadata: copyMeta(meta),
	})
}

func routerFrom(c models.RouterCredentials) (models.RouterCredentials, error) {
	c.Host = strings.TrimSpace(c.Host)
	c.User = strings.TrimSpace(c.User)
	c.Pass = strings.TrimSpace(c.Pass)

	if c.Host == "" || c.User == "" || c.Pass == "" {
		return models.RouterCredentials{}, ErrRouterCredentialsMissing
	}

	return c.WithDefaultPort(), nil
}

// parseExpiry returns the zero time for empty or unparseable input so the
// registry applies its fallback.
func parseExpiry(v string) time.Time {
	if v == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}

	return t
}

func copyMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}

	return out
}
