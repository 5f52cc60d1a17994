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

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/session"
	"github.com/sage-x-project/abi/storage/memory"
)

func TestJanitorRejectsInvalidSchedule(t *testing.T) {
	store := memory.NewStore()
	_, err := session.NewJanitor(store.SessionStore(), "not a cron expression")
	require.Error(t, err)
}

func TestJanitorRunStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	janitor, err := session.NewJanitor(store.SessionStore(), "@every 1h")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after context cancellation")
	}
}

func TestSweepPurgesExpiredSessions(t *testing.T) {
	store := memory.NewStore()

	expired := model.Session{
		ID:        "sess-expired",
		Subject:   "ae-1",
		PubKeyFpr: "fpr-1",
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
		Status:    model.SessionActive,
	}
	require.NoError(t, store.SessionStore().CreateSession(context.Background(), expired))

	n, err := store.SessionStore().DeleteExpiredSessions(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
