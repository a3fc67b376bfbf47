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

// Package relayclient calls the signed tier of a relay.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/hotspot-relay/pkg/api"
	relayHTTP "github.com/carverauto/hotspot-relay/pkg/http"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const defaultTimeout = 20 * time.Second

var (
	errAddrRequired = errors.New("relay address is required")
	errInvalidAddr  = errors.New("invalid relay address")
)

// Error is a non-2xx reply from the relay.
type Error struct {
	Status int
	Code   string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("relay returned %d", e.Status)
	}

	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Code)
}

type Options struct {
	Addr    string
	Token   string
	Secret  string
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client signs every request with the shared API secret.
type Client struct {
	baseURL *url.URL
	token   string
	secret  []byte
	hc      *http.Client
	now     func() time.Time
	nonce   func() string
}

func New(opt Options) (*Client, error) {
	if opt.Addr == "" {
		return nil, errAddrRequired
	}

	addr := opt.Addr
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidAddr, err)
	}

	if u.Host == "" {
		return nil, errInvalidAddr
	}

	hc := opt.HTTPClient
	if hc == nil {
		timeout := opt.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: u,
		token:   opt.Token,
		secret:  []byte(opt.Secret),
		hc:      hc,
		now:     time.Now,
		nonce:   uuid.NewString,
	}, nil
}

// Health returns the signed health report including registry and queue sizes.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/relay/health", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ExecByDevice runs commands on the router registered under deviceID. An
// empty deviceID targets the relay's default device.
func (c *Client) ExecByDevice(ctx context.Context, deviceID string, sentences ...string) (*api.ExecResponse, error) {
	req := api.ExecByDeviceRequest{DeviceID: deviceID}

	for _, s := range sentences {
		req.Sentences = append(req.Sentences, s)
	}

	var resp api.ExecResponse
	if err := c.do(ctx, http.MethodPost, "/relay/exec-by-device", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ReplayAlerts re-evaluates the audit log of the last since.
func (c *Client) ReplayAlerts(ctx context.Context, since time.Duration) ([]models.AlertEvent, error) {
	req := api.ReplayRequest{SinceMinutes: int(since / time.Minute)}

	var resp api.ReplayResponse
	if err := c.do(ctx, http.MethodPost, "/relay/alerts/replay", req, &resp); err != nil {
		return nil, err
	}

	return resp.Alerts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		payload = b
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimRight(c.baseURL.Path, "/") + path})

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.sign(req, payload)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb relayHTTP.ErrorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, relayHTTP.MaxBodyBytes)).Decode(&eb)

		return &Error{Status: resp.StatusCode, Code: eb.Error}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) sign(req *http.Request, body []byte) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()

	req.Header.Set(relayHTTP.HeaderTimestamp, ts)
	req.Header.Set(relayHTTP.HeaderNonce, nonce)
	req.Header.Set(relayHTTP.HeaderSignature,
		relayHTTP.Sign(c.secret, req.Method, req.URL.RequestURI(), ts, nonce, body))
}
