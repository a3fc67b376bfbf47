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

package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/logger"
)

const (
	HeaderTimestamp = "x-relay-ts"
	HeaderNonce     = "x-relay-nonce"
	HeaderSignature = "x-relay-signature"

	DefaultMaxSkew = 5 * time.Minute
	MaxBodyBytes   = 1 << 20
)

var (
	errMissingHeaders = errors.New("missing signature headers")
	errStale          = errors.New("timestamp outside allowed skew")
	errMismatch       = errors.New("signature mismatch")
	errReplay         = errors.New("nonce already used")
	errNoSecret       = errors.New("signing secret not configured")
)

// NonceStore remembers nonces for ttl. Claim reports false when the nonce
// was already claimed.
type NonceStore interface {
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// Sign returns the hex HMAC-SHA256 of METHOD\nRequestURI\nts\nnonce\nbody.
func Sign(secret []byte, method, requestURI, ts, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%s\n", method, requestURI, ts, nonce)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks sig against the expected signature in constant
// time.
func VerifySignature(secret []byte, method, requestURI, ts, nonce string, body []byte, sig string) error {
	if len(secret) == 0 {
		return errNoSecret
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("invalid hex signature: %w", err)
	}

	want, _ := hex.DecodeString(Sign(secret, method, requestURI, ts, nonce, body))

	if !hmac.Equal(got, want) {
		return errMismatch
	}

	return nil
}

type SignatureOptions struct {
	Secret  string
	MaxSkew time.Duration
	Nonces  NonceStore
	Now     func() time.Time
	Logger  logger.Logger
}

// SignatureAuth verifies the signed tier headers. The body is buffered and
// restored for the handler.
func SignatureAuth(opts SignatureOptions) func(http.Handler) http.Handler {
	if opts.MaxSkew <= 0 {
		opts.MaxSkew = DefaultMaxSkew
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	secret := []byte(opts.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifyRequest(r, secret, &opts); err != nil {
				opts.Logger.Warn().
					Err(err).
					Str("remote_ip", ClientIP(r)).
					Str("path", r.URL.Path).
					Msg("Rejected signed request")
				WriteError(w, ErrInvalidSignature)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifyRequest(r *http.Request, secret []byte, opts *SignatureOptions) error {
	if len(secret) == 0 {
		return errNoSecret
	}

	ts := r.Header.Get(HeaderTimestamp)
	nonce := r.Header.Get(HeaderNonce)
	sig := r.Header.Get(HeaderSignature)

	if ts == "" || nonce == "" || sig == "" {
		return errMissingHeaders
	}

	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	skew := opts.Now().Sub(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}

	if skew > opts.MaxSkew {
		return errStale
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if len(body) > MaxBodyBytes {
		return fmt.Errorf("body exceeds %d bytes", MaxBodyBytes)
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	if err := VerifySignature(secret, r.Method, r.URL.RequestURI(), ts, nonce, body, sig); err != nil {
		return err
	}

	if opts.Nonces != nil {
		fresh, err := opts.Nonces.Claim(r.Context(), nonce, 2*opts.MaxSkew)
		if err != nil {
			return fmt.Errorf("nonce store: %w", err)
		}

		if !fresh {
			return errReplay
		}
	}

	return nil
}
