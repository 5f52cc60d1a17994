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
	"encoding/json"
	"net/http"
	"time"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/model"
)

type capabilitiesRequest struct {
	Publishes  []string          `json:"publishes"`
	Subscribes []string          `json:"subscribes"`
	Meta       map[string]string `json:"meta"`
}

// handleCapabilities implements POST /ae/capabilities: upsert the
// caller's declared publish/subscribe intent, rejecting any subject not
// known to the static fence (routes/capabilities.py's pre-check,
// surfaced here as policy.ValidateCapability).
func handleCapabilities(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, aerr := bearerToken(r)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		claims, aerr := ctx.Tokens.VerifyAccessToken(tok)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		var req capabilitiesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "invalid_request_body", err))
			return
		}

		cap := model.Capability{
			AEID:       claims.Subject,
			Publishes:  req.Publishes,
			Subscribes: req.Subscribes,
			Meta:       req.Meta,
			UpdatedAt:  time.Now(),
		}

		if unknown := ctx.Policy.ValidateCapability(cap); len(unknown) > 0 {
			writeError(w, abierr.New(abierr.BadRequest, abierr.ReasonUnknownSubject))
			return
		}

		if err := ctx.Store.CapabilityStore().UpsertCapability(r.Context(), cap); err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "capability_upsert_failed", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "accepted",
			"ae_id":      claims.Subject,
			"capability": cap,
		})
	}
}
