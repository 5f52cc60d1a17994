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

// Package http wires the broker's external HTTP contract (spec.md §6)
// onto stdlib net/http — no router framework is vendored, the same
// stdlib-mux stance the teacher takes for internal/metrics.StartServer
// and its health endpoints. Every handler takes the broker's abi.Context
// as an explicit parameter; nothing here reaches for a package global.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/internal/logger"
)

// NewMux builds the broker's full HTTP handler from ctx.
func NewMux(ctx *abi.Context) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/register", handleRegister(ctx))
	mux.HandleFunc("/verify", handleVerify(ctx))
	mux.HandleFunc("/session/refresh", handleSessionRefresh(ctx))
	mux.HandleFunc("/session/heartbeat", handleSessionHeartbeat(ctx))
	mux.HandleFunc("/ae/heartbeat", handleAEHeartbeat(ctx))
	mux.HandleFunc("/ae/capabilities", handleCapabilities(ctx))
	mux.HandleFunc("/emit", handleEmit(ctx))
	mux.HandleFunc("/subscribe/", handleSubscribe(ctx))
	mux.HandleFunc("/admin/runtime/", handleAdminRuntime(ctx))
	mux.HandleFunc("/admin/reflect/", handleAdminReflect(ctx))
	mux.HandleFunc("/admin/stats", handleAdminStats(ctx))
	mux.HandleFunc("/healthz", handleHealthz(ctx))

	return mux
}

var accessLog = logger.GetDefaultLogger().WithFields(logger.String("component", "transport.http"))

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		accessLog.Error("failed to encode response body", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, aerr *abierr.Error) {
	writeJSON(w, aerr.Kind.HTTPStatus(), map[string]any{
		"error":  string(aerr.Kind),
		"reason": aerr.Reason,
	})
}

func bearerFromHeader(r *http.Request) string {
	return r.Header.Get("Authorization")
}

func bearerToken(r *http.Request) (string, *abierr.Error) {
	h := bearerFromHeader(r)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", abierr.New(abierr.Unauthenticated, abierr.ReasonMissingBearer)
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}

func pathSuffix(r *http.Request, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
}
