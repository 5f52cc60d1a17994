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

package runtime_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/runtime"
)

type transitionRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (t *transitionRecorder) hook(rec model.RuntimeRecord, from, to model.RuntimeState, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = append(t.seen, string(from)+"->"+string(to)+":"+reason)
}

func TestHeartbeatCreatesLiveRecord(t *testing.T) {
	rec := &transitionRecorder{}
	reg := runtime.New(time.Second, 2*time.Second, rec.hook)

	reg.Heartbeat("ae-1", "sess-1", model.SourceEmit, "publish", "fused.track", "normal", nil)

	got, state, ok := reg.Get("ae-1")
	require.True(t, ok)
	assert.Equal(t, model.RuntimeLive, state)
	assert.Equal(t, int64(1), got.HeartbeatCount)
	assert.Len(t, reg.GetLive(), 1)
}

func TestSweepLeavesFreshHeartbeatLive(t *testing.T) {
	rec := &transitionRecorder{}
	reg := runtime.New(time.Second, 2*time.Second, rec.hook)

	now := time.Now()
	reg.Heartbeat("ae-1", "sess-1", model.SourceEmit, "", "", "", nil)

	// The heartbeat was just taken, so it is younger than staleAfter
	// (1s) and one sweep must leave it live.
	_ = now
	reg.Sweep()
	_, state, ok := reg.Get("ae-1")
	require.True(t, ok)
	assert.Equal(t, model.RuntimeLive, state, "fresh heartbeat must not be swept immediately")
}

func TestHeartbeatFromStaleReturnsToLiveAndEmits(t *testing.T) {
	rec := &transitionRecorder{}
	reg := runtime.New(0, 24*time.Hour, rec.hook)

	reg.Heartbeat("ae-1", "sess-1", model.SourceEmit, "", "", "", nil)
	reg.Sweep() // staleAfter=0 demotes the fresh heartbeat straight to stale
	_, state, ok := reg.Get("ae-1")
	require.True(t, ok)
	assert.Equal(t, model.RuntimeStale, state)

	reg.Heartbeat("ae-1", "sess-1", model.SourceEmit, "", "", "", nil)
	_, state, ok = reg.Get("ae-1")
	require.True(t, ok)
	assert.Equal(t, model.RuntimeLive, state)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.seen, "live->stale:sweep")
	assert.Contains(t, rec.seen, "stale->live:heartbeat")
}

func TestPartitionsAreDisjoint(t *testing.T) {
	reg := runtime.New(time.Second, 2*time.Second, nil)
	reg.Heartbeat("ae-1", "", model.SourceRegister, "", "", "", nil)

	all := reg.GetAll()
	assert.Len(t, all, 1)
}
