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
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/carverauto/hotspot-relay/pkg/logger"
)

const (
	HeaderRelayToken    = "x-relay-token"
	HeaderInternalToken = "x-internal-token"
)

// BearerToken extracts the caller's token from Authorization: Bearer,
// then x-relay-token, then x-internal-token.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(h[len("Bearer "):]); tok != "" {
			return tok
		}
	}

	if tok := r.Header.Get(HeaderRelayToken); tok != "" {
		return tok
	}

	return r.Header.Get(HeaderInternalToken)
}

// BearerAuth rejects requests whose token does not match. An empty
// configured token rejects everything.
func BearerAuth(token string, log logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := BearerToken(r)

			if len(expected) == 0 || got == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				log.Warn().
					Str("remote_ip", ClientIP(r)).
					Str("path", r.URL.Path).
					Msg("Unauthorized request")
				WriteError(w, ErrUnauthorized)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
