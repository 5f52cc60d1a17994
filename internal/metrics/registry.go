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

// Package metrics exposes the broker's Prometheus metrics: one process-wide
// Registry that every subsystem's counters/histograms register into via
// promauto, scraped over /metrics by the standalone metrics server in
// cmd/abi-server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "abi"

// Registry is the broker's Prometheus collector registry. It is the one
// legitimate package-level global in this codebase: every other component
// is threaded explicitly through abi.Context.
var Registry = prometheus.NewRegistry()
