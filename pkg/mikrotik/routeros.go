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

package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-routeros/routeros/v3"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

// Reply is the decoded answer to one API sentence.
type Reply struct {
	Rows []map[string]string
	Done map[string]string
}

// Conn is one authenticated API session.
type Conn interface {
	Run(words []string) (*Reply, error)
	Close() error
}

// DialFunc opens a session to the router described by creds.
type DialFunc func(ctx context.Context, creds models.RouterCredentials, timeout time.Duration) (Conn, error)

// DialRouterOS opens a RouterOS API session. The effective timeout is the
// smaller of timeout and the time left on ctx.
func DialRouterOS(ctx context.Context, creds models.RouterCredentials, timeout time.Duration) (Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	client, err := routeros.DialTimeout(creds.Address(), creds.User, creds.Pass, timeout)
	if err != nil {
		return nil, err
	}

	return &routerosConn{client: client}, nil
}

type routerosConn struct {
	client *routeros.Client
}

func (c *routerosConn) Run(words []string) (*Reply, error) {
	r, err := c.client.RunArgs(words)
	if err != nil {
		var devErr *routeros.DeviceError
		if errors.As(err, &devErr) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	out := &Reply{Rows: make([]map[string]string, 0, len(r.Re))}

	for _, re := range r.Re {
		out.Rows = append(out.Rows, re.Map)
	}

	if r.Done != nil {
		out.Done = r.Done.Map
	}

	return out, nil
}

func (c *routerosConn) Close() error {
	return c.client.Close()
}
