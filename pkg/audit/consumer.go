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
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/natsutil"
)

const (
	defaultMaxPullMessages = 50
	defaultPullExpiry      = 30 * time.Second
	defaultMaxRetries      = 3
)

type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// Consumer ingests records published by other producers on the ingest
// subject into the Recorder.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     pullConsumer
	recorder     *Recorder
	logger       logger.Logger
}

// NewConsumer creates or retrieves the durable pull consumer.
func NewConsumer(
	ctx context.Context,
	js jetstream.JetStream,
	streamName, consumerName, baseSubject string,
	recorder *Recorder,
	log logger.Logger,
) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		consumer, err = js.CreateConsumer(ctx, streamName, jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    defaultMaxRetries,
			MaxAckPending: 1000,
			FilterSubject: IngestSubject(baseSubject) + ".>",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	log.Info().Str("stream", streamName).Str("consumer", consumerName).Msg("Pull consumer created or retrieved")

	return &Consumer{
		streamName:   streamName,
		consumerName: consumerName,
		consumer:     consumer,
		recorder:     recorder,
		logger:       log,
	}, nil
}

// ProcessMessages fetches and ingests messages until ctx is done. It
// returns an error only when the connection can no longer serve fetches.
func (c *Consumer) ProcessMessages(ctx context.Context) error {
	c.logger.Info().Str("stream", c.streamName).Str("consumer", c.consumerName).Msg("Starting audit ingest consumer")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			if natsutil.IsFatal(err) {
				return fmt.Errorf("audit consumer stopped: %w", err)
			}

			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}

			continue
		}

		for msg := range msgs.Messages() {
			c.handle(ctx, msg)
		}

		if fetchErr := msgs.Error(); fetchErr != nil {
			if natsutil.IsFatal(fetchErr) {
				return fmt.Errorf("audit consumer stopped: %w", fetchErr)
			}

			c.logger.Debug().Err(fetchErr).Msg("Fetch finished with error")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	var rec models.AuditRecord

	if err := json.Unmarshal(msg.Data(), &rec); err != nil || rec.Event == "" {
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping malformed audit message")

		_ = msg.Term()

		return
	}

	if err := c.recorder.Record(ctx, &rec); err != nil {
		c.logger.Error().Err(err).Str("subject", msg.Subject()).Msg("Failed to ingest audit message")

		if meta, metaErr := msg.Metadata(); metaErr == nil && meta.NumDelivered >= defaultMaxRetries {
			_ = msg.Ack()
		} else {
			_ = msg.Nak()
		}

		return
	}

	_ = msg.Ack()
}
