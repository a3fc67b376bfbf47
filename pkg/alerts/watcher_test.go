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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

func TestWatcherFeedsEngine(t *testing.T) {
	store := audit.NewMemoryStore()
	recorder := audit.NewRecorder(store, logger.NewTestLogger())
	sender := &fakeSender{}

	w := NewWatcher(NewEngine(store, sender, logger.NewTestLogger()), 16, logger.NewTestLogger())
	recorder.AddObserver(w)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, recorder.Record(ctx, &models.AuditRecord{
			Event:    models.EventReleaseFail,
			Result:   models.ResultFail,
			Metadata: map[string]interface{}{"mikrotikId": "mik-7"},
		}))
	}

	require.NoError(t, recorder.Record(ctx, &models.AuditRecord{Event: models.EventAlertSent, Result: models.ResultSent}))

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(closeCtx))

	sent := sender.sent()
	require.NotEmpty(t, sent)

	for _, a := range sent {
		assert.Equal(t, models.RuleFailConcentrated, a.Rule)
		assert.Equal(t, "mik-7", a.Target())
	}
}

func TestWatcherDropsAfterClose(t *testing.T) {
	sender := &fakeSender{}
	w := NewWatcher(NewEngine(audit.NewMemoryStore(), sender, logger.NewTestLogger()), 0, logger.NewTestLogger())

	require.NoError(t, w.Close(context.Background()))

	w.Observe(context.Background(), models.AuditRecord{Event: models.EventReleaseFail})
	assert.Empty(t, sender.sent())
}
