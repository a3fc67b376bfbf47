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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, recs ...models.AuditRecord) {
	t.Helper()

	for i := range recs {
		require.NoError(t, s.Append(context.Background(), &recs[i]))
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s,
		models.AuditRecord{ID: "a", Event: models.EventReleaseFail, Result: models.ResultFail, CreatedAt: t0.Add(-6 * time.Minute)},
		models.AuditRecord{ID: "b", Event: models.EventReleaseFail, Result: models.ResultFail, CreatedAt: t0.Add(-5 * time.Minute)},
		models.AuditRecord{ID: "c", Event: models.EventReleaseSuccess, Result: models.ResultSuccess, CreatedAt: t0.Add(-time.Minute)},
		models.AuditRecord{ID: "d", Event: models.EventReleaseFail, Result: models.ResultFail, CreatedAt: t0},
		models.AuditRecord{ID: "e", Event: models.EventReleaseFail, Result: models.ResultFail, CreatedAt: t0.Add(time.Minute)},
	)

	got, err := s.Query(context.Background(), Query{
		Event: models.EventReleaseFail,
		Since: t0.Add(-5 * time.Minute),
		Until: t0,
		Order: OrderDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, ids(got))

	got, err = s.Query(context.Background(), Query{Order: OrderAsc, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestMemoryStoreTransition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, models.AuditRecord{
		ID:       "r1",
		Event:    models.EventReleaseRequested,
		Result:   models.ResultPending,
		Metadata: map[string]interface{}{"pedidoId": "p1"},
	})

	ok, err := s.Transition(ctx, "r1", models.ResultPending, models.ResultProcessing, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Transition(ctx, "r1", models.ResultPending, models.ResultProcessing, nil)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	ok, err = s.Transition(ctx, "r1", models.ResultProcessing, models.ResultSuccess, map[string]interface{}{"processedAt": "now"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ResultSuccess, got[0].Result)
	assert.Equal(t, "p1", got[0].Metadata["pedidoId"])
	assert.Equal(t, "now", got[0].Metadata["processedAt"])

	_, err = s.Transition(ctx, "missing", models.ResultPending, models.ResultProcessing, nil)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, models.AuditRecord{ID: "x", Event: "E", Metadata: map[string]interface{}{"k": "v"}})

	got, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)

	got[0].Metadata["k"] = "changed"

	again, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Metadata["k"])
}

func ids(recs []models.AuditRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}

	return out
}
