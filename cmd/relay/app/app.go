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

// Package app wires the relay's components together and runs them until the
// context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/hotspot-relay/pkg/access"
	"github.com/carverauto/hotspot-relay/pkg/alerts"
	"github.com/carverauto/hotspot-relay/pkg/api"
	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/cache"
	"github.com/carverauto/hotspot-relay/pkg/config"
	"github.com/carverauto/hotspot-relay/pkg/db"
	"github.com/carverauto/hotspot-relay/pkg/devices"
	"github.com/carverauto/hotspot-relay/pkg/hotspot"
	relayHTTP "github.com/carverauto/hotspot-relay/pkg/http"
	"github.com/carverauto/hotspot-relay/pkg/lifecycle"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/natsutil"
	"github.com/carverauto/hotspot-relay/pkg/sessions"
	"github.com/carverauto/hotspot-relay/pkg/version"
)

const (
	shutdownTimeout = 15 * time.Second
	sinkTimeout     = 10 * time.Second
	revokeMargin    = 5 * time.Second
	natsClientName  = "hotspot-relay"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// backends holds the optional external connections and the stores built on
// them. Missing backends fall back to in-process stores.
type backends struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	nc     *nats.Conn
	js     jetstream.JetStream
	audit  audit.Store
	revoke sessions.Store
	nonces relayHTTP.NonceStore
	// memNonces is set when nonces live in process and need sweeping.
	memNonces *cache.MemoryNonceStore
}

// Run boots the relay using the provided options.
func Run(ctx context.Context, opts Options) error {
	bootLogger, err := lifecycle.CreateComponentLogger("relay-main", nil)
	if err != nil {
		return err
	}

	cfg, err := config.NewConfig(bootLogger).LoadRelayConfig(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("relay-main", cfg.Logging)
	if err != nil {
		return err
	}

	shutdownMetrics := lifecycle.InitializeMetrics(ctx, cfg.Metrics, mainLogger)
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			mainLogger.Error().Err(err).Msg("Error shutting down metrics")
		}
	}()

	b, err := openBackends(ctx, cfg, mainLogger)
	if err != nil {
		return err
	}
	defer b.close(mainLogger)

	return serve(ctx, cfg, b, mainLogger)
}

// relay is the assembled component graph of one process.
type relay struct {
	cfg        *models.RelayConfig
	b          *backends
	log        logger.Logger
	recorder   *audit.Recorder
	resolver   *devices.StaticResolver
	registry   *sessions.Registry
	dispatcher *alerts.Dispatcher
	watcher    *alerts.Watcher
	processor  *audit.Processor
	server     *api.APIServer
}

func serve(ctx context.Context, cfg *models.RelayConfig, b *backends, log logger.Logger) error {
	r, err := newRelay(ctx, cfg, b, log)
	if err != nil {
		return err
	}

	return r.run(ctx)
}

// revokeTimeoutFor leaves room for the registry's store write around one
// executor session.
func revokeTimeoutFor(executor *mikrotik.RouterOSExecutor) time.Duration {
	return executor.Timeout() + revokeMargin
}

func newRelay(
	ctx context.Context,
	cfg *models.RelayConfig,
	b *backends,
	log logger.Logger,
	execOpts ...mikrotik.ExecutorOption,
) (*relay, error) {
	recorder := audit.NewRecorder(b.audit, logger.Component(log, "audit"))

	executor := mikrotik.NewRouterOSExecutor(
		cfg.Mikrotik.Timeout.OrDefault(config.DefaultTimeout),
		logger.Component(log, "mikrotik"),
		execOpts...,
	)
	builder := hotspot.NewBuilder(cfg.Hotspot.PaidList, cfg.Hotspot.Server)
	resolver := devices.NewStaticResolver(cfg.Devices, cfg.Mikrotik.Default)

	registry := sessions.NewRegistry(executor, builder, logger.Component(log, "sessions"),
		sessions.WithStore(b.revoke),
		sessions.WithRecorder(recorder),
		sessions.WithFallbackTTL(cfg.Sessions.FallbackTTL.OrDefault(config.DefaultFallbackTTL)),
		sessions.WithRevokeTimeout(revokeTimeoutFor(executor)),
	)

	restored, err := registry.Restore(ctx, resolver)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore pending revocations")
	} else if restored > 0 {
		log.Info().Int("count", restored).Msg("Restored pending revocations")
	}

	retry := true
	if cfg.Access.RetryWithResync != nil {
		retry = *cfg.Access.RetryWithResync
	}

	svc := access.NewService(executor, builder, registry, logger.Component(log, "access"),
		access.WithRecorder(recorder),
		access.WithRetryWithResync(retry),
	)

	dispatcher, err := newDispatcher(cfg, recorder, log)
	if err != nil {
		return nil, err
	}

	engine := alerts.NewEngine(b.audit, dispatcher, logger.Component(log, "alerts"))
	watcher := alerts.NewWatcher(engine, 0, logger.Component(log, "alerts"))
	recorder.AddObserver(watcher)

	processor := audit.NewProcessor(b.audit, svc.ReleaseFunc(resolver),
		cfg.Processor.Interval.OrDefault(config.DefaultProcessorEvery),
		cfg.Processor.BatchSize,
		logger.Component(log, "processor"),
	)

	server := api.NewAPIServer(cfg, logger.Component(log, "api"),
		api.WithAccessService(svc),
		api.WithExecutor(executor),
		api.WithSessionRegistry(registry),
		api.WithDeviceResolver(resolver),
		api.WithRecorder(recorder),
		api.WithAlertReplayer(engine),
		api.WithAlertQueue(dispatcher),
		api.WithNonceStore(b.nonces),
	)

	return &relay{
		cfg:        cfg,
		b:          b,
		log:        log,
		recorder:   recorder,
		resolver:   resolver,
		registry:   registry,
		dispatcher: dispatcher,
		watcher:    watcher,
		processor:  processor,
		server:     server,
	}, nil
}

// run serves until ctx is done or a component fails, then drains alerts
// and stops the revocation timers.
func (r *relay) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.server.Start(gctx, r.cfg.ListenAddr) })
	g.Go(func() error { return r.processor.Run(gctx) })

	if r.b.memNonces != nil {
		g.Go(func() error {
			r.b.memNonces.Run(gctx)
			return nil
		})
	}

	if r.b.js != nil {
		if err := startAuditStream(gctx, g, r.cfg, r.b.js, r.recorder, r.log); err != nil {
			r.log.Error().Err(err).Msg("Audit stream disabled")
		}
	}

	r.log.Info().
		Str("listen_addr", r.cfg.ListenAddr).
		Int("devices", r.resolver.Len()).
		Strs("alert_sinks", r.dispatcher.Sinks()).
		Str("version", version.GetFullVersion()).
		Msg("Relay started")

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	r.shutdown(shutdownCtx)

	r.log.Info().Msg("Relay stopped")

	return runErr
}

func (r *relay) shutdown(ctx context.Context) {
	if err := r.watcher.Close(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Alert watcher did not drain")
	}

	if err := r.dispatcher.Close(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Alert dispatcher did not drain")
	}

	if err := r.registry.Close(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Error closing session registry")
	}
}

func newDispatcher(cfg *models.RelayConfig, recorder *audit.Recorder, log logger.Logger) (*alerts.Dispatcher, error) {
	client := &http.Client{Timeout: sinkTimeout}

	opts := []alerts.DispatcherOption{
		alerts.WithCooldown(cfg.Alerts.Cooldown.OrDefault(config.DefaultAlertCooldown)),
		alerts.WithQueueSize(cfg.Alerts.QueueSize),
	}

	if cfg.Alerts.SlackWebhookURL != "" {
		slack, err := alerts.NewSlackSink(cfg.Alerts.SlackWebhookURL, client)
		if err != nil {
			return nil, fmt.Errorf("alerts.slack_webhook_url: %w", err)
		}

		opts = append(opts, alerts.WithSink(slack))
	}

	if cfg.Alerts.WebhookURL != "" {
		hook, err := alerts.NewWebhookSink(cfg.Alerts.WebhookURL, client)
		if err != nil {
			return nil, fmt.Errorf("alerts.webhook_url: %w", err)
		}

		opts = append(opts, alerts.WithSink(hook))
	}

	return alerts.NewDispatcher(recorder, logger.Component(log, "alerts"), opts...), nil
}

func startAuditStream(
	ctx context.Context,
	g *errgroup.Group,
	cfg *models.RelayConfig,
	js jetstream.JetStream,
	recorder *audit.Recorder,
	log logger.Logger,
) error {
	subjects := []string{
		audit.EventsSubject(cfg.NATS.Subject) + ".>",
		audit.IngestSubject(cfg.NATS.Subject) + ".>",
	}

	if err := natsutil.EnsureStream(ctx, js, cfg.NATS.Stream, subjects); err != nil {
		return err
	}

	publisher := audit.NewPublisher(js, cfg.NATS.Subject, logger.Component(log, "audit-publisher"))
	recorder.AddObserver(publisher)
	g.Go(func() error { return publisher.Run(ctx) })

	consumer, err := audit.NewConsumer(ctx, js, cfg.NATS.Stream, cfg.NATS.Consumer, cfg.NATS.Subject,
		recorder, logger.Component(log, "audit-consumer"))
	if err != nil {
		return err
	}

	g.Go(func() error { return consumer.ProcessMessages(ctx) })

	return nil
}

func openBackends(ctx context.Context, cfg *models.RelayConfig, log logger.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}

		b.pool = pool

		if err := db.RunMigrations(ctx, pool, log); err != nil {
			b.close(log)
			return nil, err
		}

		b.audit = db.NewAuditStore(pool)
		b.revoke = db.NewRevocationStore(pool)
	} else {
		log.Warn().Msg("No database configured; audit log and pending revocations are kept in memory")

		b.audit = audit.NewMemoryStore()
		b.revoke = sessions.NewMemoryStore()
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			b.close(log)
			return nil, err
		}

		b.redis = client
		b.nonces = cache.NewRedisNonceStore(client)
	} else {
		b.memNonces = cache.NewMemoryNonceStore()
		b.nonces = b.memNonces
	}

	if cfg.NATS.URL != "" {
		authOpts, err := natsutil.AuthOptions(cfg.NATS.CredsFile, cfg.NATS.NKeySeedFile)
		if err != nil {
			b.close(log)
			return nil, fmt.Errorf("nats: %w", err)
		}

		nc, err := natsutil.Connect(cfg.NATS.URL, natsClientName, log, authOpts...)
		if err != nil {
			b.close(log)
			return nil, err
		}

		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			b.close(log)

			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		b.nc = nc
		b.js = js
	}

	return b, nil
}

func (b *backends) close(log logger.Logger) {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Warn().Err(err).Msg("Error draining NATS connection")
		}
	}

	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
	}

	if b.pool != nil {
		b.pool.Close()
	}
}
