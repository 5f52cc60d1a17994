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
	"io"
	"net/http"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
)

// handleEmit implements POST /emit: the thirteen-stage checkpoint.
func handleEmit(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "body_read_failed", err))
			return
		}

		res, aerr := ctx.Ingress.Emit(r.Context(), bearerFromHeader(r), body)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
