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

//go:generate mockgen -destination=mock_executor.go -package=mikrotik github.com/carverauto/hotspot-relay/pkg/mikrotik Executor

// Package mikrotik executes command batches against RouterOS devices.
package mikrotik

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

// DefaultTimeout bounds one whole session: dial, every command, close.
const DefaultTimeout = 8 * time.Second

// Executor runs an ordered batch of commands in one device session.
type Executor interface {
	Execute(ctx context.Context, creds models.RouterCredentials, cmds []Command) ([]Result, error)
}

// Result is the outcome of one command of a batch.
type Result struct {
	Command string              `json:"command"`
	Rows    []map[string]string `json:"rows,omitempty"`
	Ret     string              `json:"ret,omitempty"`
	// Skipped is set when a [find ...] filter matched nothing.
	Skipped bool `json:"skipped,omitempty"`
}

// RouterOSExecutor implements Executor over the RouterOS API.
type RouterOSExecutor struct {
	dial    DialFunc
	timeout time.Duration
	logger  logger.Logger
}

type ExecutorOption func(*RouterOSExecutor)

// WithDialer replaces the RouterOS dialer.
func WithDialer(dial DialFunc) ExecutorOption {
	return func(e *RouterOSExecutor) {
		e.dial = dial
	}
}

func NewRouterOSExecutor(timeout time.Duration, log logger.Logger, opts ...ExecutorOption) *RouterOSExecutor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	e := &RouterOSExecutor{
		dial:    DialRouterOS,
		timeout: timeout,
		logger:  log,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Timeout returns the per-session timeout.
func (e *RouterOSExecutor) Timeout() time.Duration {
	return e.timeout
}

// Execute validates the batch, opens one session and runs every command in
// order. The first failure aborts the batch; no partial results are returned.
// The session is closed on every path.
func (e *RouterOSExecutor) Execute(ctx context.Context, creds models.RouterCredentials, cmds []Command) ([]Result, error) {
	if !hasCommand(cmds) {
		return nil, ErrMissingCommand
	}

	creds = creds.WithDefaultPort()
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.dial(ctx, creds, e.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrUnreachable, creds.Address(), err)
	}

	var closeOnce sync.Once

	closeConn := func() {
		closeOnce.Do(func() {
			if err := conn.Close(); err != nil {
				e.logger.Warn().Err(err).Str("host", creds.Host).Msg("Failed to close RouterOS session")
			}
		})
	}
	defer closeConn()

	type outcome struct {
		results []Result
		err     error
	}

	done := make(chan outcome, 1)

	go func() {
		results, err := e.run(conn, creds.Host, cmds)
		done <- outcome{results: results, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}

		return out.results, nil
	case <-ctx.Done():
		// Closing the session unblocks the pending read.
		closeConn()

		e.logger.Warn().Str("host", creds.Host).Dur("timeout", e.timeout).Msg("RouterOS session timed out")

		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, creds.Address(), ctx.Err())
	}
}

func (e *RouterOSExecutor) run(conn Conn, host string, cmds []Command) ([]Result, error) {
	results := make([]Result, 0, len(cmds))

	for i, cmd := range cmds {
		if cmd.Empty() {
			continue
		}

		e.logger.Debug().Str("host", host).Str("command", cmd.String()).Msg("Executing RouterOS command")

		res, err := e.runOne(conn, cmd)
		if err != nil {
			return nil, &CommandError{Index: i, Command: cmd.String(), Err: err}
		}

		results = append(results, res)
	}

	return results, nil
}

func (*RouterOSExecutor) runOne(conn Conn, cmd Command) (Result, error) {
	res := Result{Command: cmd.String()}

	words := cmd.Words()

	if len(cmd.Find) > 0 && len(cmd.Raw) == 0 {
		matched, err := conn.Run(cmd.queryWords())
		if err != nil {
			return res, err
		}

		ids := make([]string, 0, len(matched.Rows))

		for _, row := range matched.Rows {
			if id := row[".id"]; id != "" {
				ids = append(ids, id)
			}
		}

		if len(ids) == 0 {
			res.Skipped = true
			return res, nil
		}

		words = cmd.targetWords(ids)
	}

	reply, err := conn.Run(words)
	if err != nil {
		return res, err
	}

	res.Rows = reply.Rows
	res.Ret = reply.Done["ret"]

	return res, nil
}

func hasCommand(cmds []Command) bool {
	for _, c := range cmds {
		if !c.Empty() {
			return true
		}
	}

	return false
}
