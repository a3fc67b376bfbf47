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

// Package alerts evaluates the audit log for failure patterns and delivers
// the resulting alerts.
package alerts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	concentratedWindow    = 5 * time.Minute
	concentratedLimit     = 50
	concentratedThreshold = 3
	concentratedSamples   = 3

	distributedWindow    = 10 * time.Minute
	distributedLimit     = 200
	distributedThreshold = 10
	distributedTargets   = 3
	distributedSamples   = 10

	interleaveWindow  = 10 * time.Minute
	interleaveLimit   = 200
	interleaveSamples = 10

	replayLimit = 5000
)

// Sender accepts alerts for delivery. Dispatch must not block.
type Sender interface {
	Dispatch(alert models.AlertEvent) bool
}

// Engine evaluates release records against the alert rules. It holds no
// state between evaluations; every rule reads its window from the store.
type Engine struct {
	store  audit.Store
	sender Sender
	logger logger.Logger
	now    func() time.Time
}

// NewEngine returns an engine reading from store. A nil sender makes the
// engine report alerts without delivering them.
func NewEngine(store audit.Store, sender Sender, log logger.Logger) *Engine {
	return &Engine{store: store, sender: sender, logger: log, now: time.Now}
}

type rule func(ctx context.Context, rec *models.AuditRecord, at time.Time) (*models.AlertEvent, error)

// Process evaluates rec with windows ending now and dispatches every alert
// it raises. Store failures are logged and yield no alert for that rule.
func (e *Engine) Process(ctx context.Context, rec *models.AuditRecord) []models.AlertEvent {
	alerts := e.evaluate(ctx, rec, e.now())

	for i := range alerts {
		e.send(alerts[i])
	}

	return alerts
}

// Replay evaluates every release record created since the given time, each
// with windows ending at its own timestamp. Each {rule, target} pair is
// reported and dispatched once.
func (e *Engine) Replay(ctx context.Context, since time.Time) ([]models.AlertEvent, error) {
	records, err := e.store.Query(ctx, audit.Query{
		Since: since,
		Until: e.now(),
		Order: audit.OrderAsc,
		Limit: replayLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load replay window: %w", err)
	}

	seen := make(map[string]struct{})
	out := make([]models.AlertEvent, 0)

	for i := range records {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		for _, alert := range e.evaluate(ctx, &records[i], records[i].CreatedAt) {
			key := string(alert.Rule) + "|" + alert.Target()
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			out = append(out, alert)
			e.send(alert)
		}
	}

	e.logger.Info().
		Int("records", len(records)).
		Int("alerts", len(out)).
		Time("since", since).
		Msg("Alert replay finished")

	return out, nil
}

func (e *Engine) send(alert models.AlertEvent) {
	if e.sender == nil {
		return
	}

	if !e.sender.Dispatch(alert) {
		e.logger.Warn().Str("rule", string(alert.Rule)).Msg("Alert dropped by dispatcher")
	}
}

func (e *Engine) evaluate(ctx context.Context, rec *models.AuditRecord, at time.Time) []models.AlertEvent {
	if rec == nil || !rec.IsRelease() {
		return nil
	}

	var alerts []models.AlertEvent

	rules := []struct {
		name models.AlertRule
		fn   rule
	}{
		{models.RuleFailConcentrated, e.concentrated},
		{models.RuleFailDistributed, e.distributed},
		{models.RuleFailSuccessInterleave, e.interleaved},
	}

	for _, r := range rules {
		alert, err := r.fn(ctx, rec, at)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("rule", string(r.name)).
				Str("requestId", rec.RequestID).
				Msg("Alert rule evaluation failed")

			continue
		}

		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	return alerts
}

func window(at time.Time, d time.Duration) (time.Time, time.Time) {
	return at.Add(-d), at
}

// concentrated fires when one device collects repeated release failures.
func (e *Engine) concentrated(ctx context.Context, rec *models.AuditRecord, at time.Time) (*models.AlertEvent, error) {
	target := rec.MikrotikID()
	if rec.Event != models.EventReleaseFail || target == "" {
		return nil, nil
	}

	since, until := window(at, concentratedWindow)

	rows, err := e.store.Query(ctx, audit.Query{
		Event: models.EventReleaseFail,
		Since: since,
		Until: until,
		Order: audit.OrderDesc,
		Limit: concentratedLimit,
	})
	if err != nil {
		return nil, err
	}

	var ids []string

	for i := range rows {
		if rows[i].MikrotikID() == target {
			ids = append(ids, rows[i].ID)
		}
	}

	if len(ids) < concentratedThreshold {
		return nil, nil
	}

	return &models.AlertEvent{
		Rule:     models.RuleFailConcentrated,
		Severity: models.SeverityHigh,
		Summary:  fmt.Sprintf(">=%d fails for mikrotik %s in %dm", concentratedThreshold, target, minutes(concentratedWindow)),
		Context:  map[string]string{"mikrotikId": target},
		Evidence: models.AlertEvidence{
			Count:          len(ids),
			WindowMinutes:  minutes(concentratedWindow),
			SampleEventIDs: head(ids, concentratedSamples),
		},
	}, nil
}

// distributed fires when failures spread over several devices at once.
func (e *Engine) distributed(ctx context.Context, _ *models.AuditRecord, at time.Time) (*models.AlertEvent, error) {
	since, until := window(at, distributedWindow)

	rows, err := e.store.Query(ctx, audit.Query{
		Event: models.EventReleaseFail,
		Since: since,
		Until: until,
		Order: audit.OrderDesc,
		Limit: distributedLimit,
	})
	if err != nil {
		return nil, err
	}

	if len(rows) < distributedThreshold {
		return nil, nil
	}

	var order []string

	groups := make(map[string][]string)

	for i := range rows {
		target := rows[i].MikrotikID()
		if target == "" {
			target = models.UnknownTarget
		}

		if _, ok := groups[target]; !ok {
			order = append(order, target)
		}

		groups[target] = append(groups[target], rows[i].ID)
	}

	distinct := len(groups)
	if _, ok := groups[models.UnknownTarget]; ok {
		distinct--
	}

	if distinct < distributedTargets {
		return nil, nil
	}

	samples := make([]string, 0, distributedSamples)

	for _, target := range order {
		samples = append(samples, groups[target]...)
	}

	return &models.AlertEvent{
		Rule:     models.RuleFailDistributed,
		Severity: models.SeverityCritical,
		Summary:  fmt.Sprintf(">=%d fails in %dm across %d mikrotiks", distributedThreshold, minutes(distributedWindow), distinct),
		Context:  map[string]string{"distinctMikrotiks": strconv.Itoa(distinct)},
		Evidence: models.AlertEvidence{
			Count:          len(rows),
			WindowMinutes:  minutes(distributedWindow),
			SampleEventIDs: head(samples, distributedSamples),
		},
	}, nil
}

// interleaved fires when one order flips between failure and success.
func (e *Engine) interleaved(ctx context.Context, rec *models.AuditRecord, at time.Time) (*models.AlertEvent, error) {
	orderCode := rec.OrderCode()
	if orderCode == "" {
		return nil, nil
	}

	since, until := window(at, interleaveWindow)

	// Newest first so a busy window never truncates the triggering record.
	rows, err := e.store.Query(ctx, audit.Query{
		Since: since,
		Until: until,
		Order: audit.OrderDesc,
		Limit: interleaveLimit,
	})
	if err != nil {
		return nil, err
	}

	var seq []*models.AuditRecord

	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].IsRelease() && rows[i].OrderCode() == orderCode {
			seq = append(seq, &rows[i])
		}
	}

	if len(seq) < 2 || !alternates(seq) {
		return nil, nil
	}

	ids := make([]string, 0, len(seq))
	for _, r := range seq {
		ids = append(ids, r.ID)
	}

	return &models.AlertEvent{
		Rule:     models.RuleFailSuccessInterleave,
		Severity: models.SeverityCritical,
		Summary:  fmt.Sprintf("Interleaved FAIL/SUCCESS for order %s in %dm", orderCode, minutes(interleaveWindow)),
		Context:  map[string]string{"orderCode": orderCode},
		Evidence: models.AlertEvidence{
			Count:          len(seq),
			WindowMinutes:  minutes(interleaveWindow),
			SampleEventIDs: head(ids, interleaveSamples),
		},
	}, nil
}

// alternates reports whether seq holds both a failure and a success and
// changes event at least once between neighbours.
func alternates(seq []*models.AuditRecord) bool {
	var hasFail, hasSuccess, changes bool

	for i, r := range seq {
		hasFail = hasFail || strings.HasSuffix(r.Event, "FAIL")
		hasSuccess = hasSuccess || strings.HasSuffix(r.Event, "SUCCESS")

		if i > 0 && seq[i-1].Event != r.Event {
			changes = true
		}
	}

	return hasFail && hasSuccess && changes
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

func head(ids []string, n int) []string {
	if len(ids) > n {
		ids = ids[:n]
	}

	return append([]string(nil), ids...)
}
