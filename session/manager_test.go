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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/session"
	"github.com/sage-x-project/abi/storage/memory"
)

func TestCreateSessionUnknownProfile(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store.SessionStore(), store.RefreshStore())

	_, err := mgr.CreateSession(context.Background(), "ae-1", "fpr-1", "nonexistent", nil)
	require.Error(t, err)
}

func TestCreateAndValidateRefreshToken(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store.SessionStore(), store.RefreshStore())
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, "ae-1", "fpr-1", "default", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, sess.Status)

	raw, rt, err := mgr.CreateRefreshToken(ctx, sess.ID, "default")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, int64(0), rt.Rotation)

	validated, verr := mgr.ValidateRefreshToken(ctx, sess.ID, raw)
	require.Nil(t, verr)
	assert.Equal(t, rt.ID, validated.ID)

	_, verr = mgr.ValidateRefreshToken(ctx, sess.ID, "wrong-token")
	require.NotNil(t, verr)
}

func TestRotateRefreshTokenRevokesOld(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store.SessionStore(), store.RefreshStore())
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, "ae-1", "fpr-1", "default", nil)
	require.NoError(t, err)

	_, rt, err := mgr.CreateRefreshToken(ctx, sess.ID, "default")
	require.NoError(t, err)

	newRaw, newRT, err := mgr.RotateRefreshToken(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, rt.Rotation+1, newRT.Rotation)
	assert.Equal(t, rt.ExpiresAt, newRT.ExpiresAt)

	_, verr := mgr.ValidateRefreshToken(ctx, sess.ID, newRaw)
	require.Nil(t, verr)

	active, err := store.RefreshStore().GetActiveRefreshTokenForSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, newRT.ID, active.ID)
}

func TestAssertSessionActiveExpiresOnIdle(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store.SessionStore(), store.RefreshStore())
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, "ae-1", "fpr-1", "default", nil)
	require.NoError(t, err)

	sess.LastSeenAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.SessionStore().UpdateSession(ctx, sess))

	_, verr := mgr.AssertSessionActive(ctx, sess.ID)
	require.NotNil(t, verr)

	reloaded, err := store.SessionStore().GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionExpired, reloaded.Status)
}

func TestRevokeSessionCascadesToRefreshTokens(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store.SessionStore(), store.RefreshStore())
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, "ae-1", "fpr-1", "default", nil)
	require.NoError(t, err)

	_, rt, err := mgr.CreateRefreshToken(ctx, sess.ID, "default")
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeSession(ctx, sess.ID, "admin_revoke"))

	reloaded, err := store.RefreshStore().GetRefreshToken(ctx, rt.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Revoked)

	_, verr := mgr.AssertSessionActive(ctx, sess.ID)
	require.NotNil(t, verr)
}
