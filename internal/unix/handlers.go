// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-secgateway.
//
// go-secgateway is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package unix

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/health"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// healthResponse omits check error strings; probes see names and states
// only.
type healthResponse struct {
	Status health.Status     `json:"status"`
	Checks []healthComponent `json:"checks,omitempty"`
}

type healthComponent struct {
	Name   string        `json:"name"`
	Status health.Status `json:"status"`
}

// handleExecute serves POST /api/v1/execute. Operation failures are
// reported in the result body with status 200; the HTTP status only
// describes the channel.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var wire channel.WireRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		wire.Wipe()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeResult(w, http.StatusOK, types.Fail(failure.Protocol(failure.ProtocolInvalidFormat,
				"request body exceeds %d bytes", s.config.MaxRequestBytes)))
			return
		}
		s.writeResult(w, http.StatusOK, types.Fail(failure.Protocol(failure.ProtocolInvalidFormat, "malformed request body")))
		return
	}

	req := wire.Decode()
	defer req.Destroy()

	res := s.gw.ExecuteDefault(r.Context(), req)
	s.writeResult(w, http.StatusOK, res)
	if sb, ok := res.Success(); ok {
		sb.Data.Destroy()
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	s.writeResult(w, http.StatusTooManyRequests, types.Fail(failure.Protocol(failure.ProtocolRateLimited, "rate limit exceeded")))
}

func (s *Server) writeResult(w http.ResponseWriter, status int, res types.Result) {
	out := channel.EncodeResult(res)
	defer memguard.WipeBytes(out.Data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("failed to write execute response", logger.Error(err))
	}
}

// handleStatus serves GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.gw.Status(r.Context())
	out := &channel.WireStatus{
		Name:          st.Name,
		Version:       st.Version,
		State:         string(st.State),
		UptimeSeconds: int64(st.Uptime.Seconds()),
		StartedAt:     st.StartedAt,
		Backends:      make(map[string]string, len(st.Components)),
	}
	for name, hs := range st.Components {
		out.Backends[name] = string(hs)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeHealth(w, s.gw.Health().Live(r.Context()).Status, nil)
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeHealth(w, s.gw.Health().Startup(r.Context()).Status, nil)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.gw.Health().Ready(r.Context())
	checks := make([]healthComponent, 0, len(results))
	for _, res := range results {
		checks = append(checks, healthComponent{Name: res.Name, Status: res.Status})
	}
	s.writeHealth(w, health.AggregateStatus(results), checks)
}

func (s *Server) writeHealth(w http.ResponseWriter, st health.Status, checks []healthComponent) {
	code := http.StatusOK
	if st != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{Status: st, Checks: checks})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", logger.Error(err))
	}
}
