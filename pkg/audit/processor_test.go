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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

func pendingRelease(id string, meta map[string]interface{}) models.AuditRecord {
	return models.AuditRecord{
		ID:        id,
		Event:     models.EventReleaseRequested,
		Result:    models.ResultPending,
		Metadata:  meta,
		CreatedAt: t0,
	}
}

func newTestProcessor(store Store, fn ReleaseFunc) *Processor {
	p := NewProcessor(store, fn, 0, 0, logger.NewTestLogger())
	p.now = func() time.Time { return t0 }

	return p
}

func recordByID(t *testing.T, s Store, id string) models.AuditRecord {
	t.Helper()

	recs, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)

	for _, r := range recs {
		if r.ID == id {
			return r
		}
	}

	t.Fatalf("record %s not found", id)

	return models.AuditRecord{}
}

func TestProcessorReleasesPending(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, pendingRelease("r1", map[string]interface{}{
		"pedidoId":  "ped-1",
		"ip":        "10.0.0.5",
		"mac":       "AA:BB:CC:DD:EE:FF",
		"router":    "mk-1",
		"orderCode": "ORD1",
	}))

	var got ReleaseRequest

	p := newTestProcessor(store, func(_ context.Context, req ReleaseRequest) (*ReleaseOutcome, error) {
		got = req
		return &ReleaseOutcome{OK: true, RouterID: "mk-1", Result: map[string]interface{}{"commandCount": 3}}, nil
	})

	n, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, ReleaseRequest{PedidoID: "ped-1", Router: "mk-1", IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:FF", OrderCode: "ORD1"}, got)

	rec := recordByID(t, store, "r1")
	assert.Equal(t, models.ResultSuccess, rec.Result)
	assert.Equal(t, "ped-1", rec.Metadata["pedidoId"])
	assert.Equal(t, t0.Format(time.RFC3339Nano), rec.Metadata["processedAt"])

	release, ok := rec.Metadata["releaseResult"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, release["ok"])
	assert.Equal(t, "mk-1", release["roteadorId"])

	n, err = p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "finished records are not reprocessed")
}

func TestProcessorMissingPedidoID(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, pendingRelease("r1", map[string]interface{}{"ip": "10.0.0.5"}))

	p := newTestProcessor(store, func(context.Context, ReleaseRequest) (*ReleaseOutcome, error) {
		t.Fatal("release must not be called without a pedidoId")
		return nil, nil
	})

	_, err := p.ProcessPending(context.Background())
	require.NoError(t, err)

	rec := recordByID(t, store, "r1")
	assert.Equal(t, models.ResultFailed, rec.Result)
	assert.Equal(t, "missing_pedido_id", rec.Metadata["error"])
	assert.Equal(t, "10.0.0.5", rec.Metadata["ip"])
}

func TestProcessorReleaseErrorMarksFailed(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, pendingRelease("r1", map[string]interface{}{"pedidoId": "ped-1"}))

	p := newTestProcessor(store, func(context.Context, ReleaseRequest) (*ReleaseOutcome, error) {
		return nil, errors.New("router unreachable")
	})

	_, err := p.ProcessPending(context.Background())
	require.NoError(t, err)

	rec := recordByID(t, store, "r1")
	assert.Equal(t, models.ResultFailed, rec.Result)

	release := rec.Metadata["releaseResult"].(map[string]interface{})
	assert.Equal(t, false, release["ok"])
	assert.Nil(t, release["roteadorId"])
}

func TestProcessorHonoursBatchAndOrder(t *testing.T) {
	store := NewMemoryStore()

	for i, id := range []string{"r3", "r1", "r2"} {
		rec := pendingRelease(id, map[string]interface{}{"pedidoId": id})
		rec.CreatedAt = t0.Add(time.Duration([]int{3, 1, 2}[i]) * time.Second)
		seed(t, store, rec)
	}

	var order []string

	p := NewProcessor(store, func(_ context.Context, req ReleaseRequest) (*ReleaseOutcome, error) {
		order = append(order, req.PedidoID)
		return &ReleaseOutcome{OK: true}, nil
	}, time.Second, 2, logger.NewTestLogger())

	n, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"r1", "r2"}, order)
}

func TestProcessorSkipsRecordsClaimedElsewhere(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, pendingRelease("r1", map[string]interface{}{"pedidoId": "ped-1"}))

	_, err := store.Transition(context.Background(), "r1", models.ResultPending, models.ResultProcessing, nil)
	require.NoError(t, err)

	p := newTestProcessor(store, func(context.Context, ReleaseRequest) (*ReleaseOutcome, error) {
		t.Fatal("claimed record must not be released twice")
		return nil, nil
	})

	n, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(NewMemoryStore(), nil)
	require.NoError(t, p.Run(ctx))
}
