// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/health"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/storage"
)

// checkAdmin compares the X-Admin-Token header against the configured
// admin token in constant time, the same discipline session.Manager
// uses for refresh-token hash comparison.
func checkAdmin(ctx *abi.Context, r *http.Request) *abierr.Error {
	got := r.Header.Get("X-Admin-Token")
	if ctx.Config.AdminToken == "" || got == "" ||
		subtle.ConstantTimeCompare([]byte(got), []byte(ctx.Config.AdminToken)) != 1 {
		return abierr.New(abierr.Unauthenticated, abierr.ReasonMissingBearer)
	}
	return nil
}

// handleAdminRuntime implements GET /admin/runtime/{live,stale,dead,all,{ae_id}}.
func handleAdminRuntime(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if aerr := checkAdmin(ctx, r); aerr != nil {
			writeError(w, aerr)
			return
		}

		switch key := pathSuffix(r, "/admin/runtime"); key {
		case "live":
			writeJSON(w, http.StatusOK, ctx.Runtime.GetLive())
		case "stale":
			writeJSON(w, http.StatusOK, ctx.Runtime.GetStale())
		case "dead":
			writeJSON(w, http.StatusOK, ctx.Runtime.GetDead())
		case "all", "":
			writeJSON(w, http.StatusOK, ctx.Runtime.GetAll())
		default:
			rec, _, ok := ctx.Runtime.Get(key)
			if !ok {
				writeError(w, abierr.New(abierr.NotFound, abierr.ReasonAENotFound))
				return
			}
			writeJSON(w, http.StatusOK, rec)
		}
	}
}

// handleAdminReflect implements GET /admin/reflect/…, supporting a plain
// filtered query and the supplemented per-AE timeline view.
func handleAdminReflect(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if aerr := checkAdmin(ctx, r); aerr != nil {
			writeError(w, aerr)
			return
		}

		q := r.URL.Query()
		if aeID := q.Get("ae_id"); pathSuffix(r, "/admin/reflect") == "timeline" && aeID != "" {
			records, err := ctx.Reflection.Timeline(r.Context(), aeID)
			if err != nil {
				writeError(w, abierr.Wrap(abierr.Internal, "reflection_query_failed", err))
				return
			}
			writeJSON(w, http.StatusOK, records)
			return
		}

		query := storage.Query{
			AEID:      q.Get("ae_id"),
			SessionID: q.Get("session_id"),
			EventType: q.Get("event_type"),
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				query.Since = t
			}
		}
		if until := q.Get("until"); until != "" {
			if t, err := time.Parse(time.RFC3339, until); err == nil {
				query.Until = t
			}
		}
		if limit := q.Get("limit"); limit != "" {
			if n, err := strconv.Atoi(limit); err == nil {
				query.Limit = n
			}
		}

		records, err := ctx.Reflection.Query(r.Context(), query)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "reflection_query_failed", err))
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// handleAdminStats implements GET /admin/stats: an operator-facing
// rollup of broker activity, cheaper to read than scraping /metrics.
func handleAdminStats(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if aerr := checkAdmin(ctx, r); aerr != nil {
			writeError(w, aerr)
			return
		}
		writeJSON(w, http.StatusOK, metrics.GetGlobalCollector().Snapshot())
	}
}

// handleHealthz implements GET /healthz, rolling up every registered
// health.HealthChecker check (storage, policy fence) into one status.
func handleHealthz(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys := ctx.Health.GetSystemHealth(r.Context())
		status := http.StatusOK
		if sys.Status != health.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, sys)
	}
}
