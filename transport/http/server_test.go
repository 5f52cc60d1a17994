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

package http_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/model"
	transporthttp "github.com/sage-x-project/abi/transport/http"
)

func newTestContext(t *testing.T) (*abi.Context, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTTTL:        time.Minute,
		AdminToken:    "admin-secret",
		Storage:       config.StorageMemory,
		StaleAfter:    time.Minute,
		DeadAfter:     2 * time.Minute,
		SweepInterval: time.Hour,
		HeartbeatSSE:  50 * time.Millisecond,
	}

	brokerCtx, err := abi.New(context.Background(), cfg)
	require.NoError(t, err)

	_, err = brokerCtx.Keyring.AddKey(context.Background(), "ae-1", []byte(pub), []string{"producer"}, model.KeyTrusted)
	require.NoError(t, err)

	return brokerCtx, pub, priv
}

func decodeJSON(t *testing.T, body *bytes.Buffer, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Bytes(), out))
}

func TestRegisterVerifyEmitRoundTrip(t *testing.T) {
	brokerCtx, _, priv := newTestContext(t)

	fence := map[string]config.SubjectFence{
		"fused.track": {AllowedPublishers: []string{"ae-1", "producer"}},
	}
	brokerCtx.Policy.Reload(fence, nil, 0)
	require.NoError(t, brokerCtx.Store.CapabilityStore().UpsertCapability(context.Background(), model.Capability{
		AEID: "ae-1", Publishes: []string{"fused.track"},
	}))
	brokerCtx.Policy.Reload(fence, []model.Capability{{AEID: "ae-1", Publishes: []string{"fused.track"}}}, 0)

	mux := transporthttp.NewMux(brokerCtx)

	// /register
	regBody, _ := json.Marshal(map[string]string{"ae_id": "ae-1"})
	regReq := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(regBody))
	regRec := httptest.NewRecorder()
	mux.ServeHTTP(regRec, regReq)
	require.Equal(t, http.StatusOK, regRec.Code)

	var regResp struct {
		AEID  string `json:"ae_id"`
		Nonce string `json:"nonce"`
	}
	decodeJSON(t, regRec.Body, &regResp)

	nonce, err := base64.StdEncoding.DecodeString(regResp.Nonce)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, nonce)

	// /verify
	verifyBody, _ := json.Marshal(map[string]string{
		"ae_id":            "ae-1",
		"signed_nonce_b64": base64.StdEncoding.EncodeToString(sig),
	})
	verifyReq := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(verifyBody))
	verifyRec := httptest.NewRecorder()
	mux.ServeHTTP(verifyRec, verifyReq)
	require.Equal(t, http.StatusOK, verifyRec.Code)

	var verifyResp struct {
		Verified    bool   `json:"verified"`
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, verifyRec.Body, &verifyResp)
	require.True(t, verifyResp.Verified)
	require.NotEmpty(t, verifyResp.AccessToken)

	// /emit
	env := model.Envelope{
		Producer: "ae-1",
		Subject:  "fused.track",
		Payload:  json.RawMessage(`{"x":1}`),
		KeyID:    brokerCtxFingerprint(brokerCtx),
		TS:       time.Now().Unix(),
	}
	signing, err := env.ToSigningBytes()
	require.NoError(t, err)
	env.Sig = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, signing))
	envBody, err := json.Marshal(env)
	require.NoError(t, err)

	emitReq := httptest.NewRequest(http.MethodPost, "/emit", bytes.NewReader(envBody))
	emitReq.Header.Set("Authorization", "Bearer "+verifyResp.AccessToken)
	emitRec := httptest.NewRecorder()
	mux.ServeHTTP(emitRec, emitReq)
	require.Equal(t, http.StatusOK, emitRec.Code)

	var emitResp struct {
		Status  string `json:"status"`
		Subject string `json:"subject"`
	}
	decodeJSON(t, emitRec.Body, &emitResp)
	require.Equal(t, "accepted", emitResp.Status)
	require.Equal(t, "fused.track", emitResp.Subject)
}

func brokerCtxFingerprint(ctx *abi.Context) string {
	rec, _ := ctx.Keyring.GetByAEID("ae-1")
	return rec.Fingerprint
}

func TestHealthzReportsOK(t *testing.T) {
	brokerCtx, _, _ := newTestContext(t)
	mux := transporthttp.NewMux(brokerCtx)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rec.Body, &resp)
	require.Equal(t, "healthy", resp.Status)
}

func TestAdminRuntimeRequiresToken(t *testing.T) {
	brokerCtx, _, _ := newTestContext(t)
	mux := transporthttp.NewMux(brokerCtx)

	req := httptest.NewRequest(http.MethodGet, "/admin/runtime/all", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/admin/runtime/all", nil)
	req2.Header.Set("X-Admin-Token", "admin-secret")
	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}
