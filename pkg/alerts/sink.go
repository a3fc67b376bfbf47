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

//go:generate mockgen -destination=mock_sink.go -package=alerts github.com/carverauto/hotspot-relay/pkg/alerts Sink

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	sinkAttemptTimeout = 5 * time.Second
	sinkMaxTries       = 2
	sinkRetryInitial   = 500 * time.Millisecond

	slackHost       = "hooks.slack.com"
	slackPathPrefix = "/services/"
	slackSampleIDs  = 3
)

var (
	ErrInvalidSlackURL   = errors.New("slack webhook url must be https://hooks.slack.com/services/...")
	ErrInvalidWebhookURL = errors.New("webhook url must be an absolute http(s) url")
	errUnexpectedStatus  = errors.New("unexpected response status")
)

// Sink delivers an alert to one notification channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert *models.AlertEvent) error
}

// Message renders the one-line form of an alert.
func Message(alert *models.AlertEvent) string {
	return fmt.Sprintf("[%s] %s - %s", alert.Rule, alert.Severity, alert.Summary)
}

// LogSink writes alerts to the service log. It never fails.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: logger.Component(log, "alerts")}
}

func (*LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, alert *models.AlertEvent) error {
	s.logger.Error().
		Str("rule", string(alert.Rule)).
		Str("severity", string(alert.Severity)).
		Str("target", alert.Target()).
		Int("count", alert.Evidence.Count).
		Strs("sampleEventIds", alert.Evidence.SampleEventIDs).
		Msg(Message(alert))

	return nil
}

// poster sends JSON bodies with a per-attempt timeout and one retry.
type poster struct {
	url    string
	client *http.Client
	tries  uint
	wait   time.Duration
}

func newPoster(target string, client *http.Client) poster {
	if client == nil {
		client = &http.Client{}
	}

	return poster{url: target, client: client, tries: sinkMaxTries, wait: sinkRetryInitial}
}

func (p poster) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.wait
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.attempt(ctx, body)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(p.tries))

	return err
}

func (p poster) attempt(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sinkAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

// WebhookSink posts the alert as JSON to a generic HTTP endpoint.
type WebhookSink struct {
	poster
}

func NewWebhookSink(target string, client *http.Client) (*WebhookSink, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidWebhookURL
	}

	return &WebhookSink{poster: newPoster(u.String(), client)}, nil
}

func (*WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, alert *models.AlertEvent) error {
	return s.post(ctx, alert)
}

// SlackSink posts to a Slack incoming webhook. Only hooks.slack.com
// service URLs are accepted.
type SlackSink struct {
	poster
}

func NewSlackSink(target string, client *http.Client) (*SlackSink, error) {
	u, err := ValidateSlackURL(target)
	if err != nil {
		return nil, err
	}

	return &SlackSink{poster: newPoster(u.String(), client)}, nil
}

// ValidateSlackURL accepts https://hooks.slack.com/services/... with no
// explicit port other than 443 and no path traversal.
func ValidateSlackURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidSlackURL
	}

	switch {
	case u.Scheme != "https",
		u.Hostname() != slackHost,
		u.Port() != "" && u.Port() != "443",
		!strings.HasPrefix(u.Path, slackPathPrefix),
		strings.Contains(u.Path, ".."),
		u.User != nil:
		return nil, ErrInvalidSlackURL
	}

	return u, nil
}

func (*SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, alert *models.AlertEvent) error {
	return s.post(ctx, map[string]string{"text": slackText(alert)})
}

func slackText(alert *models.AlertEvent) string {
	lines := []string{fmt.Sprintf("*%s* - %s", alert.Rule, alert.Severity)}

	if alert.Summary != "" {
		lines = append(lines, "_"+alert.Summary+"_")
	}

	if len(alert.Context) > 0 {
		ctxJSON, _ := json.Marshal(alert.Context)
		lines = append(lines, "Context: "+string(ctxJSON))
	}

	evidence, _ := json.Marshal(map[string]interface{}{
		"count":  alert.Evidence.Count,
		"sample": head(alert.Evidence.SampleEventIDs, slackSampleIDs),
	})
	lines = append(lines, "Evidence: "+string(evidence))

	return strings.Join(lines, "\n")
}
