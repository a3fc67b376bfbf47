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

// Package api provides the HTTP API of the relay.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/devices"
	relayHTTP "github.com/carverauto/hotspot-relay/pkg/http"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// APIServer serves the relay's HTTP surface.
type APIServer struct {
	router *mux.Router
	config *models.RelayConfig
	logger logger.Logger
	now    func() time.Time

	access   AccessService
	executor mikrotik.Executor
	sessions SessionRegistry
	devices  devices.Resolver
	recorder *audit.Recorder
	replayer AlertReplayer
	alerts   AlertQueue
	nonces   relayHTTP.NonceStore

	globalLimiter *relayHTTP.RateLimiter
	accessLimiter *relayHTTP.RateLimiter
}

// NewAPIServer builds the router. Components not supplied through options
// make their routes answer 500 internal_error.
func NewAPIServer(cfg *models.RelayConfig, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router: mux.NewRouter(),
		config: cfg,
		logger: log,
		now:    time.Now,
	}

	for _, o := range options {
		o(s)
	}

	s.globalLimiter = relayHTTP.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window.Std())
	s.accessLimiter = relayHTTP.NewRateLimiter(cfg.Access.RateLimit.Requests, cfg.Access.RateLimit.Window.Std())

	s.setupRoutes()

	return s
}

func WithAccessService(a AccessService) func(*APIServer) {
	return func(s *APIServer) { s.access = a }
}

func WithExecutor(e mikrotik.Executor) func(*APIServer) {
	return func(s *APIServer) { s.executor = e }
}

func WithSessionRegistry(r SessionRegistry) func(*APIServer) {
	return func(s *APIServer) { s.sessions = r }
}

func WithDeviceResolver(r devices.Resolver) func(*APIServer) {
	return func(s *APIServer) { s.devices = r }
}

// WithRecorder enables the audit ingest route.
func WithRecorder(r *audit.Recorder) func(*APIServer) {
	return func(s *APIServer) { s.recorder = r }
}

func WithAlertReplayer(r AlertReplayer) func(*APIServer) {
	return func(s *APIServer) { s.replayer = r }
}

func WithAlertQueue(q AlertQueue) func(*APIServer) {
	return func(s *APIServer) { s.alerts = q }
}

// WithNonceStore sets where signed-tier nonces are claimed.
func WithNonceStore(n relayHTTP.NonceStore) func(*APIServer) {
	return func(s *APIServer) { s.nonces = n }
}

func (s *APIServer) setupRoutes() {
	s.router.Use(relayHTTP.Recoverer(s.logger), relayHTTP.RequestLogger(s.logger))
	s.router.Use(s.globalLimiter.Middleware(relayHTTP.KeyByIPAndPath))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		relayHTTP.WriteError(w, relayHTTP.ErrNotFound)
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.setupProtectedRoutes()
	s.setupSignedRoutes()
}

func (s *APIServer) setupProtectedRoutes() {
	protected := s.router.PathPrefix("/relay").Subrouter()
	protected.Use(relayHTTP.BearerAuth(s.config.Auth.Token, s.logger))

	limited := s.accessLimiter.Middleware(relayHTTP.KeyByIP)
	protected.Handle("/authorize-by-pedido", limited(http.HandlerFunc(s.handleAuthorize))).Methods(http.MethodPost)
	protected.Handle("/resync-device", limited(http.HandlerFunc(s.handleResync))).Methods(http.MethodPost)

	protected.HandleFunc("/exec", s.handleExec).Methods(http.MethodPost)
	protected.HandleFunc("/exec2", s.handleExec2).Methods(http.MethodPost)
	protected.HandleFunc("/audit", s.handleAuditIngest).Methods(http.MethodPost)
	protected.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{token}", s.handleDeleteSession).Methods(http.MethodDelete)
}

func (s *APIServer) setupSignedRoutes() {
	signed := s.router.PathPrefix("/relay").Subrouter()
	signed.Use(
		relayHTTP.BearerAuth(s.config.Auth.Token, s.logger),
		relayHTTP.SignatureAuth(relayHTTP.SignatureOptions{
			Secret:  s.config.Auth.APISecret,
			MaxSkew: s.config.Auth.MaxSkew.Std(),
			Nonces:  s.nonces,
			Logger:  s.logger,
		}),
	)

	signed.HandleFunc("/exec-by-device", s.handleExecByDevice).Methods(http.MethodPost)
	signed.HandleFunc("/health", s.handleSignedHealth).Methods(http.MethodGet)
	signed.HandleFunc("/alerts/replay", s.handleReplayAlerts).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
// The rate limiter janitors run for the lifetime of the server.
func (s *APIServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	janitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.globalLimiter.Run(janitorCtx)
	go s.accessLimiter.Run(janitorCtx)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
		defer shutdownCancel()

		s.logger.Info().Msg("Shutting down HTTP server")

		return srv.Shutdown(shutdownCtx)
	}
}
