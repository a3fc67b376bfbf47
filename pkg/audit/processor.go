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

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	defaultProcessorInterval = 5 * time.Second
	defaultProcessorBatch    = 10

	errMissingPedidoID = "missing_pedido_id"
)

// ReleaseRequest is what a pending release record asks for.
type ReleaseRequest struct {
	PedidoID  string
	Router    string
	IP        string
	MAC       string
	OrderCode string
}

// ReleaseOutcome summarizes a release attempt for the record's metadata.
type ReleaseOutcome struct {
	OK       bool
	RouterID string
	Result   interface{}
}

// ReleaseFunc grants access for a release request.
type ReleaseFunc func(ctx context.Context, req ReleaseRequest) (*ReleaseOutcome, error)

// Processor turns pending WEBHOOK_RELEASE_REQUESTED records into releases.
type Processor struct {
	store    Store
	release  ReleaseFunc
	interval time.Duration
	batch    int
	now      func() time.Time
	logger   logger.Logger
}

func NewProcessor(store Store, release ReleaseFunc, interval time.Duration, batch int, log logger.Logger) *Processor {
	if interval <= 0 {
		interval = defaultProcessorInterval
	}

	if batch <= 0 {
		batch = defaultProcessorBatch
	}

	return &Processor{
		store:    store,
		release:  release,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		logger:   log,
	}
}

// Run processes pending records on every tick until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Int("batch", p.batch).Msg("Release processor started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Release processor stopped")

			return nil
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error().Err(err).Msg("Error processing pending release requests")
			}
		}
	}
}

// ProcessPending handles one batch and returns how many records it claimed.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	pending, err := p.store.Query(ctx, Query{
		Event:  models.EventReleaseRequested,
		Result: models.ResultPending,
		Order:  OrderAsc,
		Limit:  p.batch,
	})
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		return 0, nil
	}

	p.logger.Info().Int("count", len(pending)).Msg("Found pending release requests to process")

	claimed := 0

	for i := range pending {
		if ctx.Err() != nil {
			return claimed, ctx.Err()
		}

		ok, err := p.processOne(ctx, &pending[i])
		if err != nil {
			p.logger.Error().Err(err).Str("record_id", pending[i].ID).Msg("Error processing release request")
		}

		if ok {
			claimed++
		}
	}

	return claimed, nil
}

func (p *Processor) processOne(ctx context.Context, rec *models.AuditRecord) (bool, error) {
	claimed, err := p.store.Transition(ctx, rec.ID, models.ResultPending, models.ResultProcessing, nil)
	if err != nil || !claimed {
		return false, err
	}

	pedidoID := rec.MetaString("pedidoId")

	p.logger.Info().
		Str("record_id", rec.ID).
		Str("pedido_id", pedidoID).
		Str("order_code", rec.OrderCode()).
		Msg("Processing release request")

	if pedidoID == "" {
		p.logger.Warn().Str("record_id", rec.ID).Msg("Missing pedidoId in release request")

		_, err = p.store.Transition(ctx, rec.ID, models.ResultProcessing, models.ResultFailed, map[string]interface{}{
			"error":       errMissingPedidoID,
			"processedAt": p.stamp(),
		})

		return true, err
	}

	outcome, relErr := p.release(ctx, ReleaseRequest{
		PedidoID:  pedidoID,
		Router:    rec.MetaString("router"),
		IP:        rec.MetaString("ip"),
		MAC:       rec.MetaString("mac"),
		OrderCode: rec.OrderCode(),
	})
	if relErr != nil {
		p.logger.Error().Err(relErr).Str("record_id", rec.ID).Str("pedido_id", pedidoID).Msg("Release failed")

		outcome = nil
	}

	if outcome == nil {
		outcome = &ReleaseOutcome{}
	}

	result := models.ResultFailed
	if outcome.OK {
		result = models.ResultSuccess
	}

	var routerID interface{}
	if outcome.RouterID != "" {
		routerID = outcome.RouterID
	}

	_, err = p.store.Transition(ctx, rec.ID, models.ResultProcessing, result, map[string]interface{}{
		"releaseResult": map[string]interface{}{
			"ok":         outcome.OK,
			"roteadorId": routerID,
			"mikResult":  outcome.Result,
		},
		"processedAt": p.stamp(),
	})

	return true, err
}

func (p *Processor) stamp() string {
	return p.now().UTC().Format(time.RFC3339Nano)
}
