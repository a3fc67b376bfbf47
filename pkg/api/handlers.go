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

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/hotspot-relay/pkg/access"
	relayHTTP "github.com/carverauto/hotspot-relay/pkg/http"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/version"
)

var (
	errHostRequired    = models.NewCodedError("host_required")
	errInvalidRequest  = models.NewCodedError("invalid_request")
	errSessionNotFound = models.NewCodedError("session_not_found")
	errNotConfigured   = errors.New("component not configured")
)

// decodeJSON reads at most MaxBodyBytes into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, relayHTTP.MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return relayHTTP.ErrInvalidJSON
	}

	return nil
}

func (s *APIServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := models.ErrorCode(err)
	if relayHTTP.StatusForCode(code) >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("code", code).Msg("Request failed")
	}

	relayHTTP.WriteError(w, err)
}

func (s *APIServer) health() HealthResponse {
	return HealthResponse{
		OK:          true,
		Service:     serviceName,
		Timestamp:   s.now().UTC(),
		DefaultHost: s.config.Mikrotik.Default.Host != "",
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	relayHTTP.WriteJSON(w, http.StatusOK, s.health())
}

func (s *APIServer) handleSignedHealth(w http.ResponseWriter, _ *http.Request) {
	resp := s.health()
	resp.Version = version.GetVersion()

	if s.sessions != nil {
		n := s.sessions.Len()
		resp.Sessions = &n
	}

	if c, ok := s.devices.(counter); ok {
		n := c.Len()
		resp.Devices = &n
	}

	if s.alerts != nil {
		n := s.alerts.Queued()
		resp.AlertsQueued = &n
	}

	relayHTTP.WriteJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	s.serveAccess(w, r, false)
}

func (s *APIServer) handleResync(w http.ResponseWriter, r *http.Request) {
	s.serveAccess(w, r, true)
}

func (s *APIServer) serveAccess(w http.ResponseWriter, r *http.Request, resync bool) {
	if s.access == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	var p access.Payload
	if err := decodeJSON(w, r, &p); err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	var (
		res *access.Result
		err error
	)

	if resync {
		res, err = s.access.ResyncDevice(r.Context(), &p)
	} else {
		res, err = s.access.AuthorizeByPedido(r.Context(), &p, access.Options{})
	}

	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	relayHTTP.WriteJSON(w, http.StatusOK, res)
}

func (s *APIServer) handleExec(w http.ResponseWriter, r *http.Request) {
	s.serveExec(w, r, true)
}

func (s *APIServer) handleExec2(w http.ResponseWriter, r *http.Request) {
	s.serveExec(w, r, false)
}

// serveExec runs raw commands. Without requireHost, missing connection
// fields fall back to the configured default device one by one.
func (s *APIServer) serveExec(w http.ResponseWriter, r *http.Request, requireHost bool) {
	var req ExecRequest
	if err := decodeJSON(w, r, &req); err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	if requireHost && strings.TrimSpace(req.Host) == "" {
		relayHTTP.WriteError(w, errHostRequired)
		return
	}

	cmds, err := mikrotik.NormalizeSentences(req.Command, req.Sentences)
	if err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	def := s.config.Mikrotik.Default
	creds := models.RouterCredentials{
		Host: firstNonEmpty(req.Host, def.Host),
		User: firstNonEmpty(req.User, def.User),
		Pass: firstNonEmpty(req.Pass, def.Pass),
		Port: int(req.Port),
	}

	if creds.Port <= 0 {
		creds.Port = def.Port
	}

	s.execute(w, r, creds, cmds)
}

func (s *APIServer) handleExecByDevice(w http.ResponseWriter, r *http.Request) {
	var req ExecByDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	cmds, err := mikrotik.NormalizeSentences(req.Command, req.Sentences)
	if err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	if s.devices == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	creds, err := s.devices.Resolve(r.Context(), firstNonEmpty(req.DeviceID, req.MikID))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	s.execute(w, r, creds, cmds)
}

func (s *APIServer) execute(w http.ResponseWriter, r *http.Request, creds models.RouterCredentials, cmds []mikrotik.Command) {
	if s.executor == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	creds.Host = strings.TrimSpace(creds.Host)
	creds.User = strings.TrimSpace(creds.User)

	if !creds.WithDefaultPort().Complete() {
		relayHTTP.WriteError(w, mikrotik.ErrMissingCredentials)
		return
	}

	results, err := s.executor.Execute(r.Context(), creds, cmds)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if results == nil {
		results = []mikrotik.Result{}
	}

	relayHTTP.WriteJSON(w, http.StatusOK, ExecResponse{OK: true, Results: results})
}

func (s *APIServer) handleAuditIngest(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	var req AuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	if strings.TrimSpace(req.Event) == "" {
		relayHTTP.WriteError(w, errInvalidRequest)
		return
	}

	rec := &models.AuditRecord{
		RequestID: req.RequestID,
		Event:     strings.TrimSpace(req.Event),
		ActorID:   req.ActorID,
		IP:        req.IP,
		EntityID:  req.EntityID,
		Result:    req.Result,
		Metadata:  req.Metadata,
	}

	if err := s.recorder.Record(r.Context(), rec); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	relayHTTP.WriteJSON(w, http.StatusOK, AuditResponse{OK: true, ID: rec.ID})
}

func (s *APIServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	entries := s.sessions.Entries()
	views := make([]SessionView, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		views = append(views, SessionView{
			Key:       e.Key,
			Token:     e.Token,
			IP:        e.IP,
			MAC:       e.MAC,
			Username:  e.Username,
			Host:      e.Router.Host,
			ExpiresAt: e.ExpiresAt,
		})
	}

	relayHTTP.WriteJSON(w, http.StatusOK, SessionsResponse{OK: true, Sessions: views})
}

func (s *APIServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" || !s.sessions.UnregisterByToken(r.Context(), token) {
		relayHTTP.WriteError(w, errSessionNotFound)
		return
	}

	relayHTTP.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *APIServer) handleReplayAlerts(w http.ResponseWriter, r *http.Request) {
	if s.replayer == nil {
		s.writeFailure(w, r, errNotConfigured)
		return
	}

	var req ReplayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		relayHTTP.WriteError(w, err)
		return
	}

	if req.SinceMinutes < 0 {
		relayHTTP.WriteError(w, errInvalidRequest)
		return
	}

	window := s.config.Alerts.ReplayWindow.OrDefault(time.Hour)
	if req.SinceMinutes > 0 {
		window = time.Duration(req.SinceMinutes) * time.Minute
	}

	alerts, err := s.replayer.Replay(r.Context(), s.now().Add(-window))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if alerts == nil {
		alerts = []models.AlertEvent{}
	}

	relayHTTP.WriteJSON(w, http.StatusOK, ReplayResponse{OK: true, Alerts: alerts})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
