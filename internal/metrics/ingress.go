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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmitsProcessed tracks /emit outcomes through the ingress pipeline.
	EmitsProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "emits_total",
			Help:      "Total number of envelopes processed by the emit pipeline",
		},
		[]string{"status"}, // accepted, rejected
	)

	// PolicyDenials tracks emit/subscribe rejections by the policy engine.
	PolicyDenials = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "policy_denials_total",
			Help:      "Total number of publish/subscribe attempts denied by policy",
		},
		[]string{"direction"}, // publish, subscribe
	)

	// EmitProcessingDuration tracks the full thirteen-stage Emit call duration.
	EmitProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "emit_duration_seconds",
			Help:      "Emit pipeline processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~205ms
		},
	)

	// EnvelopeSize tracks accepted envelope body sizes.
	EnvelopeSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "envelope_size_bytes",
			Help:      "Size of envelope bodies accepted by /emit",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
		},
	)
)
