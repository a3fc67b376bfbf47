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

// Package http holds the relay's HTTP middleware and JSON helpers.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

var (
	ErrUnauthorized     = models.NewCodedError("unauthorized")
	ErrInvalidSignature = models.NewCodedError("invalid_signature")
	ErrRateLimited      = models.NewCodedError("rate_limited")
	ErrInvalidJSON      = models.NewCodedError("invalid_json")
	ErrNotFound         = models.NewCodedError("not_found")
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

//nolint:gochecknoglobals // static lookup table
var codeStatus = map[string]int{
	"missing_command":            http.StatusBadRequest,
	"missing_router_credentials": http.StatusBadRequest,
	"router_credentials_missing": http.StatusBadRequest,
	"missing_ip_or_mac":          http.StatusBadRequest,
	"host_required":              http.StatusBadRequest,
	"invalid_json":               http.StatusBadRequest,
	"invalid_command":            http.StatusBadRequest,
	"invalid_request":            http.StatusBadRequest,
	"unauthorized":               http.StatusUnauthorized,
	"invalid_signature":          http.StatusUnauthorized,
	"device_not_found":           http.StatusNotFound,
	"session_not_found":          http.StatusNotFound,
	"not_found":                  http.StatusNotFound,
	"rate_limited":               http.StatusTooManyRequests,
	"relay_unreachable":          http.StatusBadGateway,
}

// StatusForCode maps an error code to its HTTP status. Unknown codes are
// internal errors.
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {ok:false,error:<code>}. Codes without a known status
// are reported as internal_error so no detail leaks.
func WriteError(w http.ResponseWriter, err error) {
	code := models.ErrorCode(err)
	status := StatusForCode(code)

	if status == http.StatusInternalServerError {
		code = models.CodeInternal
	}

	WriteJSON(w, status, ErrorBody{OK: false, Error: code})
}
