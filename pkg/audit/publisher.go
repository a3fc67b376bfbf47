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

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	defaultPublishQueue   = 512
	defaultPublishTimeout = 5 * time.Second
	publishMaxElapsed     = 15 * time.Second
)

// EventsSubject is the subject prefix the relay publishes its own records on.
func EventsSubject(base string) string { return base + ".events" }

// IngestSubject is the subject prefix external producers publish records on.
func IngestSubject(base string) string { return base + ".ingest" }

type jsPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher mirrors appended records onto JetStream. It is an Observer and
// publishes from its own goroutine.
type Publisher struct {
	js      jsPublisher
	subject string
	queue   chan models.AuditRecord
	logger  logger.Logger
	done    chan struct{}
}

func NewPublisher(js jetstream.JetStream, baseSubject string, log logger.Logger) *Publisher {
	return newPublisher(js, baseSubject, log)
}

func newPublisher(js jsPublisher, baseSubject string, log logger.Logger) *Publisher {
	return &Publisher{
		js:      js,
		subject: EventsSubject(baseSubject),
		queue:   make(chan models.AuditRecord, defaultPublishQueue),
		logger:  log,
		done:    make(chan struct{}),
	}
}

func (p *Publisher) Observe(_ context.Context, rec models.AuditRecord) {
	select {
	case p.queue <- rec:
	default:
		p.logger.Warn().Str("record_id", rec.ID).Str("event", rec.Event).Msg("Publish queue full, dropping audit record")
	}
}

// Run publishes queued records until ctx is done, then flushes what is left
// with a short deadline.
func (p *Publisher) Run(ctx context.Context) error {
	defer close(p.done)

	for {
		select {
		case rec := <-p.queue:
			p.publish(ctx, &rec)
		case <-ctx.Done():
			p.flush()

			return nil
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()

	for {
		select {
		case rec := <-p.queue:
			p.publish(ctx, &rec)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, rec *models.AuditRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to marshal audit record")

		return
	}

	subject := fmt.Sprintf("%s.%s", p.subject, rec.Event)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	_, err = backoff.Retry(ctx, func() (*jetstream.PubAck, error) {
		pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		return p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(rec.ID))
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(publishMaxElapsed))
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Str("record_id", rec.ID).Msg("Failed to publish audit record")

		return
	}

	p.logger.Debug().Str("subject", subject).Str("record_id", rec.ID).Msg("Published audit record")
}
