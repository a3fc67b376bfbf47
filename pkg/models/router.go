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

package models

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultRouterPort is the RouterOS API plaintext port.
const DefaultRouterPort = 8728

// RouterCredentials identifies one router and how to log in to it.
// Credentials are passed through on every call and never persisted.
type RouterCredentials struct {
	Host string `json:"host" yaml:"host"`
	User string `json:"user" yaml:"user"`
	Pass string `json:"pass" yaml:"pass"`
	Port int    `json:"port" yaml:"port"`
}

// Complete reports whether every field needed to open a session is present.
func (c RouterCredentials) Complete() bool {
	return strings.TrimSpace(c.Host) != "" &&
		strings.TrimSpace(c.User) != "" &&
		c.Pass != "" &&
		c.Port > 0
}

// WithDefaultPort fills in the API port when it is unset.
func (c RouterCredentials) WithDefaultPort() RouterCredentials {
	if c.Port <= 0 {
		c.Port = DefaultRouterPort
	}

	return c
}

// Address returns host:port suitable for dialing.
func (c RouterCredentials) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Redacted returns a copy safe to log or return to callers.
func (c RouterCredentials) Redacted() RouterCredentials {
	if c.Pass != "" {
		c.Pass = "***"
	}

	return c
}

// UnmarshalJSON accepts the port as either a number or a numeric string.
func (c *RouterCredentials) UnmarshalJSON(b []byte) error {
	var raw struct {
		Host string          `json:"host"`
		User string          `json:"user"`
		Pass string          `json:"pass"`
		Port json.RawMessage `json:"port"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	port, err := parsePort(raw.Port)
	if err != nil {
		return err
	}

	*c = RouterCredentials{Host: raw.Host, User: raw.User, Pass: raw.Pass, Port: port}

	return nil
}

func parsePort(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("invalid port: %s", raw)
	}

	if strings.TrimSpace(s) == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}

	return n, nil
}

// Port is a router port that decodes from a number or a numeric string.
type Port int

func (p *Port) UnmarshalJSON(b []byte) error {
	n, err := parsePort(b)
	if err != nil {
		return err
	}

	*p = Port(n)

	return nil
}
