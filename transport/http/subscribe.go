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
	"net/http"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/egress"
)

// handleSubscribe implements GET /subscribe/{topic}: an SSE stream
// established after the same auth + policy checkpoint ingress uses for
// publish, mirrored for the subscribe side.
func handleSubscribe(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := pathSuffix(r, "/subscribe")
		if topic == "" {
			writeError(w, abierr.New(abierr.BadRequest, "missing_topic"))
			return
		}

		tok, aerr := bearerToken(r)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		sub, aerr := ctx.Egress.Subscribe(r.Context(), tok, topic)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		defer sub.Close()

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, abierr.New(abierr.Internal, "streaming_unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		_ = egress.Stream(r.Context(), w, flusher.Flush, sub, ctx.Config.HeartbeatSSE)
	}
}
