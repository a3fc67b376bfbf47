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

package natsutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

var (
	ErrConflictingAuth = errors.New("creds_file and nkey_seed_file are mutually exclusive")
	ErrNotUserSeed     = errors.New("nkey seed is not a user seed")
)

// AuthOptions returns the connect options for a credentials file or an
// nkey seed file. Both empty means an anonymous connection.
func AuthOptions(credsFile, nkeySeedFile string) ([]nats.Option, error) {
	switch {
	case credsFile != "" && nkeySeedFile != "":
		return nil, ErrConflictingAuth
	case credsFile != "":
		if _, err := os.Stat(credsFile); err != nil {
			return nil, fmt.Errorf("nats creds file: %w", err)
		}

		return []nats.Option{nats.UserCredentials(credsFile)}, nil
	case nkeySeedFile != "":
		opt, err := nkeyOption(nkeySeedFile)
		if err != nil {
			return nil, err
		}

		return []nats.Option{opt}, nil
	}

	return nil, nil
}

func nkeyOption(path string) (nats.Option, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nats nkey seed file: %w", err)
	}

	kp, err := nkeys.FromSeed(bytes.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("nats nkey seed: %w", err)
	}

	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("nats nkey public key: %w", err)
	}

	if !nkeys.IsValidPublicUserKey(pub) {
		return nil, ErrNotUserSeed
	}

	return nats.Nkey(pub, kp.Sign), nil
}
