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

package egress_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/egress"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/policy"
	"github.com/sage-x-project/abi/runtime"
	"github.com/sage-x-project/abi/storage/memory"
	"github.com/sage-x-project/abi/token"
)

func newService(t *testing.T) (*egress.Service, *keyring.Keyring, *token.Service, *bus.Bus) {
	t.Helper()
	store := memory.NewStore()
	kr, err := keyring.New(store.KeyStore())
	require.NoError(t, err)
	_, err = kr.AddKey(context.Background(), "ae-1", []byte("fake-pubkey-bytes-000000000000"), []string{"consumer"}, model.KeyTrusted)
	require.NoError(t, err)

	fence := map[string]config.SubjectFence{
		"fused.track": {AllowedSubscribers: []string{"consumer"}},
	}
	caps := []model.Capability{{AEID: "ae-1", Subscribes: []string{"fused.track"}}}
	eng := policy.NewEngine(fence, caps)

	reg := runtime.New(time.Minute, 2*time.Minute, nil)
	tokens := token.New([]byte("secret"), time.Minute)
	b := bus.New()

	return egress.New(tokens, kr, eng, reg, b), kr, tokens, b
}

func TestSubscribeAllocatesQueueAndHeartbeats(t *testing.T) {
	svc, _, tokens, b := newService(t)
	tok, _, err := tokens.IssueAccessToken("ae-1", "sess-1", []string{"consumer"})
	require.NoError(t, err)

	sub, aerr := svc.Subscribe(context.Background(), tok, "fused.track")
	require.Nil(t, aerr)
	defer sub.Close()

	rec, state, ok := svc.Runtime.Get("ae-1")
	require.True(t, ok)
	assert.Equal(t, model.RuntimeLive, state)
	assert.Equal(t, model.SourceSubscribe, rec.LastSource)

	b.Publish("fused.track", map[string]any{"hello": "world"})
	select {
	case msg := <-sub.Queue.C():
		assert.Equal(t, "world", msg["hello"])
	case <-time.After(time.Second):
		t.Fatal("expected delivery")
	}
}

func TestSubscribeRejectsPolicyDenied(t *testing.T) {
	svc, _, tokens, _ := newService(t)
	tok, _, err := tokens.IssueAccessToken("ae-1", "sess-1", []string{"consumer"})
	require.NoError(t, err)

	_, aerr := svc.Subscribe(context.Background(), tok, "other.subject")
	require.NotNil(t, aerr)
	assert.Equal(t, "policy_denied", aerr.Reason)
}

func TestSubscribeRejectsUntrustedKey(t *testing.T) {
	svc, kr, tokens, _ := newService(t)
	_, err := kr.AddKey(context.Background(), "ae-2", []byte("another-fake-pubkey-00000000000"), []string{"consumer"}, model.KeyRevoked)
	require.NoError(t, err)
	tok, _, err := tokens.IssueAccessToken("ae-2", "sess-2", []string{"consumer"})
	require.NoError(t, err)

	_, aerr := svc.Subscribe(context.Background(), tok, "fused.track")
	require.NotNil(t, aerr)
	assert.Equal(t, "not_trusted", aerr.Reason)
}

func TestStreamWritesFramesAndKeepalive(t *testing.T) {
	svc, _, tokens, b := newService(t)
	tok, _, err := tokens.IssueAccessToken("ae-1", "sess-1", []string{"consumer"})
	require.NoError(t, err)

	sub, aerr := svc.Subscribe(context.Background(), tok, "fused.track")
	require.Nil(t, aerr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	b.Publish("fused.track", map[string]any{"n": float64(1)})

	_ = egress.Stream(ctx, &buf, func() {}, sub, 10*time.Millisecond)
	sub.Close()

	out := buf.String()
	assert.Contains(t, out, `"n":1`)
	assert.Contains(t, out, ": keepalive")
}
