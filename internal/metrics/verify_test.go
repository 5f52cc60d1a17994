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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if AdmissionsInitiated == nil {
		t.Error("AdmissionsInitiated metric is nil")
	}
	if AdmissionsCompleted == nil {
		t.Error("AdmissionsCompleted metric is nil")
	}
	if AdmissionsFailed == nil {
		t.Error("AdmissionsFailed metric is nil")
	}
	if AdmissionDuration == nil {
		t.Error("AdmissionDuration metric is nil")
	}

	if SessionsCreated == nil {
		t.Error("SessionsCreated metric is nil")
	}
	if SessionsActive == nil {
		t.Error("SessionsActive metric is nil")
	}
	if SessionsExpired == nil {
		t.Error("SessionsExpired metric is nil")
	}

	if EmitsProcessed == nil {
		t.Error("EmitsProcessed metric is nil")
	}
	if SignatureOperations == nil {
		t.Error("SignatureOperations metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	AdmissionsInitiated.Inc()
	AdmissionsCompleted.WithLabelValues("success").Inc()
	AdmissionsFailed.WithLabelValues("bad_signature").Inc()
	AdmissionDuration.WithLabelValues("verify").Observe(0.05)

	SessionsCreated.WithLabelValues("success").Inc()
	SessionsActive.Inc()
	SessionsExpired.Inc()

	EmitsProcessed.WithLabelValues("accepted").Inc()
	SignatureOperations.WithLabelValues("verify").Inc()

	if count := testutil.CollectAndCount(AdmissionsInitiated); count == 0 {
		t.Error("AdmissionsInitiated has no metrics collected")
	}
	if count := testutil.CollectAndCount(SessionsCreated); count == 0 {
		t.Error("SessionsCreated has no metrics collected")
	}
	if count := testutil.CollectAndCount(EmitsProcessed); count == 0 {
		t.Error("EmitsProcessed has no metrics collected")
	}
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	c.RecordEmit(true, 2*time.Millisecond)
	c.RecordEmit(false, time.Millisecond)
	c.RecordPolicyDenial()
	c.RecordRuntimeTransition()

	snap := c.Snapshot()
	if snap.EmitsAccepted != 1 {
		t.Errorf("EmitsAccepted = %d, want 1", snap.EmitsAccepted)
	}
	if snap.EmitsRejected != 1 {
		t.Errorf("EmitsRejected = %d, want 1", snap.EmitsRejected)
	}
	if snap.PolicyDenials != 1 {
		t.Errorf("PolicyDenials = %d, want 1", snap.PolicyDenials)
	}
	if snap.RuntimeTransitions != 1 {
		t.Errorf("RuntimeTransitions = %d, want 1", snap.RuntimeTransitions)
	}
	if snap.AvgEmitMicros <= 0 {
		t.Error("AvgEmitMicros should be positive after recording emits")
	}
}
