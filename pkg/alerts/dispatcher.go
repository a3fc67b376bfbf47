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

package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	DefaultCooldown  = 5 * time.Minute
	DefaultQueueSize = 256

	sentinelLookback = 50
)

// Dispatcher delivers alerts on a single worker goroutine. Each {rule,
// target} pair is delivered at most once per cooldown window, tracked by
// ALERT_SENT records in the audit log.
type Dispatcher struct {
	recorder  *audit.Recorder
	sinks     []Sink
	cooldown  time.Duration
	queueSize int
	logger    logger.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan models.AlertEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type DispatcherOption func(*Dispatcher)

// WithSink adds a sink after the log sink.
func WithSink(s Sink) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
}

func WithCooldown(cooldown time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher starts the delivery worker. Sentinels are written through
// recorder, and cooldown lookups read its store.
func NewDispatcher(recorder *audit.Recorder, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		recorder:  recorder,
		sinks:     []Sink{NewLogSink(log)},
		cooldown:  DefaultCooldown,
		queueSize: DefaultQueueSize,
		logger:    log,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan models.AlertEvent, d.queueSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	go d.run()

	return d
}

// Dispatch queues alert and returns immediately. It reports false when the
// queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(alert models.AlertEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- alert:
		return true
	default:
		d.logger.Warn().
			Str("rule", string(alert.Rule)).
			Str("target", alert.Target()).
			Msg("Alert queue full, dropping alert")

		return false
	}
}

// Sinks returns the names of the configured sinks in delivery order.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}

	return names
}

// Queued returns the number of alerts awaiting delivery.
func (d *Dispatcher) Queued() int {
	return len(d.queue)
}

// Close stops accepting alerts and waits for the queue to drain. If ctx
// ends first, in-flight delivery is cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()

		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done

		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for alert := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}

		d.deliver(d.ctx, &alert)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert *models.AlertEvent) {
	target := alert.Target()
	rule := string(alert.Rule)

	cooldown := d.cooldown
	if alert.CooldownMinutes > 0 {
		cooldown = time.Duration(alert.CooldownMinutes) * time.Minute
	}

	now := d.now()

	sent, err := d.recentlySent(ctx, rule, target, now.Add(-cooldown), now)
	if err != nil {
		d.logger.Error().Err(err).Str("rule", rule).Str("target", target).Msg("Alert cooldown lookup failed")
	}

	if sent {
		d.logger.Warn().
			Str("rule", rule).
			Str("target", target).
			Dur("cooldown", cooldown).
			Msg("Duplicate alert suppressed")
		recordSuppressed(ctx, rule)

		return
	}

	result := models.ResultSent

	for _, s := range d.sinks {
		if err := s.Send(ctx, alert); err != nil {
			result = models.ResultFailed

			d.logger.Error().
				Err(err).
				Str("sink", s.Name()).
				Str("rule", rule).
				Str("target", target).
				Msg("Alert sink delivery failed")
		}
	}

	recordEmitted(ctx, rule)

	requestID := fmt.Sprintf("alert-%d", now.UnixMilli())
	if ids := alert.Evidence.SampleEventIDs; len(ids) > 0 && ids[0] != "" {
		requestID = ids[0]
	}

	sentinel := &models.AuditRecord{
		RequestID: requestID,
		Event:     models.EventAlertSent,
		Result:    result,
		CreatedAt: now.UTC(),
		Metadata: map[string]interface{}{
			"rule":     rule,
			"target":   target,
			"severity": string(alert.Severity),
			"evidence": map[string]interface{}{
				"count":          alert.Evidence.Count,
				"windowMinutes":  alert.Evidence.WindowMinutes,
				"sampleEventIds": alert.Evidence.SampleEventIDs,
			},
		},
	}

	if err := d.recorder.Record(ctx, sentinel); err != nil {
		d.logger.Error().Err(err).Str("rule", rule).Str("target", target).Msg("Failed to record alert sentinel")
	}
}

func (d *Dispatcher) recentlySent(ctx context.Context, rule, target string, since, until time.Time) (bool, error) {
	recent, err := d.recorder.Store().Query(ctx, audit.Query{
		Event: models.EventAlertSent,
		Since: since,
		Until: until,
		Order: audit.OrderDesc,
		Limit: sentinelLookback,
	})
	if err != nil {
		return false, err
	}

	for i := range recent {
		if recent[i].MetaString("rule") == rule && recent[i].MetaString("target") == target {
			return true, nil
		}
	}

	return false, nil
}
