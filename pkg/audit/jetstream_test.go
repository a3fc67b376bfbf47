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
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/natsutil"
)

const (
	testStream  = "RELAY_AUDIT"
	testSubject = "relay.audit"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func connectJetStream(t *testing.T) (*nats.Conn, jetstream.JetStream) {
	t.Helper()

	srv := runJetStreamServer(t)

	nc, err := natsutil.Connect(srv.ClientURL(), "relay-test", logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, natsutil.EnsureStream(ctx, js, testStream, []string{
		EventsSubject(testSubject) + ".>",
		IngestSubject(testSubject) + ".>",
	}))

	return nc, js
}

func TestPublisherWritesToJetStream(t *testing.T) {
	_, js := connectJetStream(t)

	p := NewPublisher(js, testSubject, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- p.Run(ctx) }()

	p.Observe(context.Background(), models.AuditRecord{
		ID:       "rec-1",
		Event:    models.EventReleaseFail,
		Result:   models.ResultFail,
		Metadata: map[string]interface{}{"mikrotikId": "10.0.0.1"},
	})

	lookupCtx, lookupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer lookupCancel()

	stream, err := js.Stream(lookupCtx, testStream)
	require.NoError(t, err)

	var raw *jetstream.RawStreamMsg

	require.Eventually(t, func() bool {
		raw, err = stream.GetLastMsgForSubject(lookupCtx, EventsSubject(testSubject)+"."+models.EventReleaseFail)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	var got models.AuditRecord
	require.NoError(t, json.Unmarshal(raw.Data, &got))
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, "10.0.0.1", got.MikrotikID())

	cancel()
	require.NoError(t, <-done)
}

func TestConsumerIngestsFromJetStream(t *testing.T) {
	nc, js := connectJetStream(t)

	store := NewMemoryStore()
	rec := NewRecorder(store, logger.NewTestLogger())

	ctx := context.Background()

	c, err := NewConsumer(ctx, js, testStream, "hotspot-relay", testSubject, rec, logger.NewTestLogger())
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() { done <- c.ProcessMessages(ctx) }()

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.Publish(pubCtx, IngestSubject(testSubject)+".webhook",
		[]byte(`{"event":"WEBHOOK_RELEASE_REQUESTED","result":"PENDING","metadata":{"pedidoId":"p1"}}`))
	require.NoError(t, err)

	_, err = js.Publish(pubCtx, IngestSubject(testSubject)+".webhook", []byte(`{not json`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.Len() == 1 }, 5*time.Second, 50*time.Millisecond)

	recs, err := store.Query(ctx, Query{Event: models.EventReleaseRequested})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].MetaString("pedidoId"))

	// A closed connection ends the pull loop.
	nc.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(defaultPullExpiry + 10*time.Second):
		t.Fatal("consumer did not stop after the connection closed")
	}
}
