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

package ingress_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/ingress"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/mesh"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/policy"
	"github.com/sage-x-project/abi/reflection"
	"github.com/sage-x-project/abi/runtime"
	"github.com/sage-x-project/abi/session"
	"github.com/sage-x-project/abi/storage/memory"
	"github.com/sage-x-project/abi/token"
)

type fixture struct {
	pipeline *ingress.Pipeline
	kr       *keyring.Keyring
	tokens   *token.Service
	sessions *session.Manager
	mesh     *mesh.RecordingPublisher
	bus      *bus.Bus
	refl     *reflection.Store
	pub      ed25519.PublicKey
	priv     ed25519.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	kr, err := keyring.New(store.KeyStore())
	require.NoError(t, err)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = kr.AddKey(context.Background(), "ae-1", []byte(pub), []string{"producer"}, model.KeyTrusted)
	require.NoError(t, err)

	fence := map[string]config.SubjectFence{
		"fused.track": {AllowedPublishers: []string{"ae-1", "producer"}, AllowedSubscribers: []string{"ae-1"}},
	}
	caps := []model.Capability{{AEID: "ae-1", Publishes: []string{"fused.track"}, Subscribes: []string{"fused.track"}}}
	eng := policy.NewEngine(fence, caps)

	reg := runtime.New(time.Minute, 2*time.Minute, nil)
	refl := reflection.New(store.ReflectionStore())
	sessions := session.NewManager(store.SessionStore(), store.RefreshStore())
	tokens := token.New([]byte("test-secret"), time.Minute)
	pub2 := mesh.RecordingPublisher{}
	b := bus.New()

	p := ingress.New(tokens, sessions, kr, eng, reg, refl, &pub2, b)

	return &fixture{pipeline: p, kr: kr, tokens: tokens, sessions: sessions, mesh: &pub2, bus: b, refl: refl, pub: pub, priv: priv}
}

func (f *fixture) issueBearer(t *testing.T) (string, string) {
	t.Helper()
	sess, err := f.sessions.CreateSession(context.Background(), "ae-1", keyring.Fingerprint([]byte(f.pub)), "default", nil)
	require.NoError(t, err)
	tok, _, err := f.tokens.IssueAccessToken("ae-1", sess.ID, []string{"producer"})
	require.NoError(t, err)
	return "Bearer " + tok, sess.ID
}

func (f *fixture) signedEnvelope(t *testing.T, subject string) []byte {
	t.Helper()
	env := model.Envelope{
		Producer: "ae-1",
		Subject:  subject,
		Payload:  json.RawMessage(`{"x":1}`),
		KeyID:    keyring.Fingerprint([]byte(f.pub)),
		TS:       time.Now().Unix(),
	}
	signing, err := env.ToSigningBytes()
	require.NoError(t, err)
	sig := ed25519.Sign(f.priv, signing)
	env.Sig = base64.StdEncoding.EncodeToString(sig)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestEmitAcceptsValidEnvelope(t *testing.T) {
	f := newFixture(t)
	bearer, _ := f.issueBearer(t)
	body := f.signedEnvelope(t, "fused.track")

	q := f.bus.Subscribe("fused.track")
	defer f.bus.Unsubscribe("fused.track", q)

	res, aerr := f.pipeline.Emit(context.Background(), bearer, body)
	require.Nil(t, aerr)
	assert.Equal(t, "accepted", res.Status)
	assert.Equal(t, "fused.track", res.Subject)

	require.Len(t, f.mesh.Published, 1)
	assert.Equal(t, "fused.track", f.mesh.Published[0].Subject)

	select {
	case msg := <-q.C():
		assert.Equal(t, "fused.track", msg["subject"])
	case <-time.After(time.Second):
		t.Fatal("expected local fan-out delivery")
	}
}

func TestEmitRejectsMissingBearer(t *testing.T) {
	f := newFixture(t)
	_, aerr := f.pipeline.Emit(context.Background(), "", []byte("{}"))
	require.NotNil(t, aerr)
	assert.Equal(t, "missing_bearer", aerr.Reason)

	records, err := f.refl.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "emit_blocked_auth", records[0].EventType)
}

func TestEmitRejectsProducerMismatch(t *testing.T) {
	f := newFixture(t)
	bearer, _ := f.issueBearer(t)
	body := f.signedEnvelope(t, "fused.track")

	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))
	env["producer"] = "ae-2"
	body, _ = json.Marshal(env)

	_, aerr := f.pipeline.Emit(context.Background(), bearer, body)
	require.NotNil(t, aerr)
	assert.Equal(t, "producer_mismatch", aerr.Reason)
}

func TestEmitRejectsPolicyDeniedSubject(t *testing.T) {
	f := newFixture(t)
	bearer, _ := f.issueBearer(t)
	body := f.signedEnvelope(t, "unknown.subject")

	_, aerr := f.pipeline.Emit(context.Background(), bearer, body)
	require.NotNil(t, aerr)
	assert.Equal(t, "policy_denied", aerr.Reason)

	records, err := f.refl.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "emit_blocked_policy", records[0].EventType)
	assert.Equal(t, model.SeverityWarn, records[0].Severity)
	assert.Equal(t, "ae-1", records[0].Correlation.AEID)
}

func TestEmitRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	bearer, _ := f.issueBearer(t)
	body := f.signedEnvelope(t, "fused.track")

	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))
	env["sig"] = base64.StdEncoding.EncodeToString([]byte("not-a-real-signature-not-a-real-signature"))
	body, _ = json.Marshal(env)

	_, aerr := f.pipeline.Emit(context.Background(), bearer, body)
	require.NotNil(t, aerr)
	assert.Equal(t, "invalid_signature", aerr.Reason)

	records, err := f.refl.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "emit_blocked_signature", records[0].EventType)
}
