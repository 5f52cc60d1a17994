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

package reflection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/reflection"
	"github.com/sage-x-project/abi/storage"
	"github.com/sage-x-project/abi/storage/memory"
)

func newStore(t *testing.T) *reflection.Store {
	t.Helper()
	backend := memory.NewStore()
	return reflection.New(backend.ReflectionStore())
}

func TestAppendAssignsRecordIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	err := store.Append(ctx, model.ReflectionRecord{
		Domain:    model.DomainAE,
		EventType: "test",
		Severity:  model.SeverityInfo,
	})
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].RecordID)
	assert.False(t, all[0].TS.IsZero())
}

func TestTimelineFiltersByAE(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Append(ctx, model.ReflectionRecord{
		Domain: model.DomainRuntime, EventType: "heartbeat",
		Correlation: model.Correlation{AEID: "ae-1"},
	}))
	require.NoError(t, store.Append(ctx, model.ReflectionRecord{
		Domain: model.DomainRuntime, EventType: "heartbeat",
		Correlation: model.Correlation{AEID: "ae-2"},
	}))

	timeline, err := store.Timeline(ctx, "ae-1")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, "ae-1", timeline[0].Correlation.AEID)
}

func TestQueryRespectsSinceUntilAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, model.ReflectionRecord{
			Domain: model.DomainAE, EventType: "test",
			TS: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	results, err := store.Query(ctx, storage.Query{
		Since: base.Add(-time.Minute),
		Until: base.Add(10 * time.Minute),
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSinkNormalizesHeartbeatsAndTransitions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	sink := reflection.NewSink(store)
	b := bus.New()
	sink.Attach(b)

	b.Publish(reflection.TopicRuntimeHeartbeat, map[string]any{
		"ae_id": "ae-1", "session_id": "sess-1", "source": "emit",
	})
	b.Publish(reflection.TopicRuntimeTransition, map[string]any{
		"ae_id": "ae-1", "from": "live", "to": "stale", "reason": "sweep",
	})

	// Sink handlers run synchronously inside Publish, so by the time
	// Publish returns both records have already been appended.
	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, reflection.TopicRuntimeHeartbeat, all[0].EventType)
	assert.Equal(t, "ae-1", all[0].Correlation.AEID)

	assert.Equal(t, reflection.TopicRuntimeTransition, all[1].EventType)
	require.Len(t, all[1].Transitions, 1)
	assert.Equal(t, "live", all[1].Transitions[0].From)
	assert.Equal(t, "stale", all[1].Transitions[0].To)
}
