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

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/relayclient"
)

const defaultReplayWindow = time.Hour

// HealthHandler handles flags for the health subcommand.
type HealthHandler struct{}

// Parse processes the command-line arguments for the health subcommand.
func (HealthHandler) Parse(args []string, _ *CmdConfig) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing health flags: %w", err)
	}

	return nil
}

// ExecHandler handles flags for the exec subcommand.
type ExecHandler struct{}

// Parse processes the command-line arguments for the exec subcommand.
func (ExecHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	device := fs.String("device", "", "device id; empty targets the default device")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing exec flags: %w", err)
	}

	if fs.NArg() == 0 {
		return errMissingSentences
	}

	cfg.DeviceID = *device
	cfg.Sentences = fs.Args()

	return nil
}

// ReplayHandler handles flags for the replay subcommand.
type ReplayHandler struct{}

// Parse processes the command-line arguments for the replay subcommand.
func (ReplayHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	since := fs.Duration("since", defaultReplayWindow, "window to replay")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing replay flags: %w", err)
	}

	if *since < 0 {
		return errNegativeSince
	}

	cfg.Since = *since

	return nil
}

//nolint:gochecknoglobals // static dispatch table
var subcommands = map[string]SubcommandHandler{
	"health": HealthHandler{},
	"exec":   ExecHandler{},
	"replay": ReplayHandler{},
}

// ParseFlags parses global flags followed by a subcommand and its flags.
// getenv supplies fallbacks for the connection settings.
func ParseFlags(args []string, getenv func(string) string) (*CmdConfig, error) {
	fs := flag.NewFlagSet("relayctl", flag.ContinueOnError)
	help := fs.Bool("help", false, "show help message")
	addr := fs.String("addr", getenv("RELAY_ADDR"), "relay base URL")
	token := fs.String("token", getenv("RELAY_TOKEN"), "bearer token")
	secret := fs.String("secret", getenv("RELAY_API_SECRET"), "HMAC API secret")
	timeout := fs.Duration("timeout", 20*time.Second, "request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &CmdConfig{
		Help:    *help,
		Addr:    *addr,
		Token:   *token,
		Secret:  *secret,
		Timeout: *timeout,
		Args:    fs.Args(),
	}

	if cfg.Help || len(cfg.Args) == 0 {
		cfg.Help = true
		return cfg, nil
	}

	cfg.SubCmd = cfg.Args[0]

	handler, ok := subcommands[cfg.SubCmd]
	if !ok {
		return cfg, fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err := handler.Parse(cfg.Args[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Run executes the parsed subcommand and prints its JSON result to out.
func Run(ctx context.Context, cfg *CmdConfig, out io.Writer) error {
	if cfg.Help {
		ShowHelp(out)
		return nil
	}

	if cfg.Addr == "" {
		return errMissingAddr
	}

	if cfg.Secret == "" {
		return errMissingSecret
	}

	client, err := relayclient.New(relayclient.Options{
		Addr:    cfg.Addr,
		Token:   cfg.Token,
		Secret:  cfg.Secret,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return err
	}

	var result interface{}

	switch cfg.SubCmd {
	case "health":
		result, err = client.Health(ctx)
	case "exec":
		result, err = client.ExecByDevice(ctx, cfg.DeviceID, cfg.Sentences...)
	case "replay":
		result, err = client.ReplayAlerts(ctx, cfg.Since)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

// Main is the relayctl entry point.
func Main(ctx context.Context) int {
	cfg, err := ParseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if err := Run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}
