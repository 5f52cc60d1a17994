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

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/admission"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/model"
)

type registerRequest struct {
	AEID string `json:"ae_id"`
}

type registerResponse struct {
	AEID  string `json:"ae_id"`
	Nonce string `json:"nonce"`
}

func handleRegister(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "invalid_request_body", err))
			return
		}

		nonce, aerr := ctx.Admission.IssueChallenge(req.AEID)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		metrics.AdmissionsInitiated.Inc()
		metrics.AdmissionDuration.WithLabelValues("register").Observe(time.Since(start).Seconds())

		writeJSON(w, http.StatusOK, registerResponse{
			AEID:  req.AEID,
			Nonce: admission.EncodeNonce(nonce),
		})
	}
}

type verifyRequest struct {
	AEID           string `json:"ae_id"`
	SignedNonceB64 string `json:"signed_nonce_b64"`
}

type verifyResponse struct {
	Verified           bool   `json:"verified"`
	SessionID          string `json:"session_id"`
	AccessToken        string `json:"access_token"`
	ExpiresIn          int64  `json:"expires_in"`
	RefreshToken       string `json:"refresh_token"`
	RefreshExpiresIn   int64  `json:"refresh_expires_in"`
}

func handleVerify(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "invalid_request_body", err))
			return
		}

		sig, err := admission.DecodeSignature(req.SignedNonceB64)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "invalid_signature_encoding", err))
			return
		}

		keyRec, aerr := ctx.Admission.VerifyResponse(req.AEID, sig)
		if aerr != nil {
			metrics.AdmissionsCompleted.WithLabelValues("failure").Inc()
			metrics.AdmissionsFailed.WithLabelValues(aerr.Reason).Inc()
			writeError(w, aerr)
			return
		}
		metrics.SignatureOperations.WithLabelValues("verify").Inc()

		sess, err := ctx.Sessions.CreateSession(r.Context(), req.AEID, keyring.Fingerprint(keyRec.PubKey), "default", nil)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "session_create_failed", err))
			return
		}
		metrics.SessionsCreated.WithLabelValues("success").Inc()

		rawRefresh, refresh, err := ctx.Sessions.CreateRefreshToken(r.Context(), sess.ID, "default")
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "refresh_issue_failed", err))
			return
		}

		accessToken, expiresAt, err := ctx.Tokens.IssueAccessToken(req.AEID, sess.ID, keyRec.Roles)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "access_token_issue_failed", err))
			return
		}

		ctx.Runtime.Heartbeat(req.AEID, sess.ID, model.SourceRegister, "", "", "", nil)

		metrics.AdmissionsCompleted.WithLabelValues("success").Inc()
		metrics.AdmissionDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
		metrics.SessionsActive.Inc()

		writeJSON(w, http.StatusOK, verifyResponse{
			Verified:         true,
			SessionID:        sess.ID,
			AccessToken:      accessToken,
			ExpiresIn:        int64(expiresAt.Sub(sess.CreatedAt).Seconds()),
			RefreshToken:     rawRefresh,
			RefreshExpiresIn: int64(refresh.ExpiresAt.Sub(refresh.CreatedAt).Seconds()),
		})
	}
}

type sessionRefreshRequest struct {
	SessionID    string `json:"session_id"`
	RefreshToken string `json:"refresh_token"`
}

func handleSessionRefresh(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, abierr.Wrap(abierr.BadRequest, "invalid_request_body", err))
			return
		}

		old, aerr := ctx.Sessions.ValidateRefreshToken(r.Context(), req.SessionID, req.RefreshToken)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		sess, aerr := ctx.Sessions.AssertSessionActive(r.Context(), req.SessionID)
		if aerr != nil {
			writeError(w, aerr)
			return
		}

		rawRefresh, next, err := ctx.Sessions.RotateRefreshToken(r.Context(), old)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "refresh_rotate_failed", err))
			return
		}

		keyRec, _ := ctx.Keyring.GetByAEID(sess.Subject)
		accessToken, expiresAt, err := ctx.Tokens.IssueAccessToken(sess.Subject, sess.ID, keyRec.Roles)
		if err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "access_token_issue_failed", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":         sess.ID,
			"access_token":       accessToken,
			"expires_in":         int64(expiresAt.Sub(sess.LastSeenAt).Seconds()),
			"refresh_token":      rawRefresh,
			"refresh_expires_in": int64(next.ExpiresAt.Sub(next.CreatedAt).Seconds()),
		})
	}
}

func handleSessionHeartbeat(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, aerr := bearerToken(r)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		claims, aerr := ctx.Tokens.VerifyAccessToken(tok)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		if err := ctx.Sessions.Touch(r.Context(), claims.SessionID); err != nil {
			writeError(w, abierr.Wrap(abierr.Internal, "touch_failed", err))
			return
		}
		ctx.Runtime.Heartbeat(claims.Subject, claims.SessionID, model.SourceSession, "", "", "", nil)

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sid": claims.SessionID})
	}
}

func handleAEHeartbeat(ctx *abi.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, aerr := bearerToken(r)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		claims, aerr := ctx.Tokens.VerifyAccessToken(tok)
		if aerr != nil {
			writeError(w, aerr)
			return
		}
		ctx.Runtime.Heartbeat(claims.Subject, claims.SessionID, model.SourceExplicit, "", "", "", nil)

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ae_id": claims.Subject, "sid": claims.SessionID})
	}
}
