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

// Package admission issues and verifies the challenge/response handshake
// an Atomic Expert performs before it holds a session. The outstanding
// challenge store is generalized from session/nonce.go's TTL replay
// cache: here a challenge is consumed (one-shot) on successful verify
// rather than merely remembered to reject replays.
package admission

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/model"
)

// challengeTTL is the lifetime of an issued nonce before it expires unconsumed.
const challengeTTL = 60 * time.Second

type challenge struct {
	nonce     []byte
	expiresAt time.Time
}

// Service issues nonces and verifies signed responses against the keyring.
type Service struct {
	mu         sync.Mutex
	outstanding map[string]challenge
	keyring    *keyring.Keyring
	now        func() time.Time
}

// New builds an admission Service bound to kr.
func New(kr *keyring.Keyring) *Service {
	return &Service{
		outstanding: make(map[string]challenge),
		keyring:     kr,
		now:         time.Now,
	}
}

// IssueChallenge generates a 32-byte random nonce for ae_id and stores it
// with a short TTL. Fails with UNAUTHENTICATED/unknown_ae if the AE has
// never been enrolled in the keyring.
func (s *Service) IssueChallenge(aeID string) ([]byte, *abierr.Error) {
	if _, ok := s.keyring.GetByAEID(aeID); !ok {
		return nil, abierr.New(abierr.Unauthenticated, abierr.ReasonUnknownAE)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, abierr.Wrap(abierr.Internal, "nonce_generation_failed", err)
	}

	s.mu.Lock()
	s.outstanding[aeID] = challenge{nonce: nonce, expiresAt: s.now().Add(challengeTTL)}
	s.mu.Unlock()

	return nonce, nil
}

// VerifyResponse consumes the outstanding nonce for ae_id and validates
// the Ed25519 signature over the raw nonce bytes using the AE's keyring
// public key. The nonce is one-shot: it is removed whether or not
// verification succeeds.
func (s *Service) VerifyResponse(aeID string, sig []byte) (model.KeyRecord, *abierr.Error) {
	s.mu.Lock()
	ch, ok := s.outstanding[aeID]
	if ok {
		delete(s.outstanding, aeID)
	}
	s.mu.Unlock()

	if !ok {
		return model.KeyRecord{}, abierr.New(abierr.Forbidden, abierr.ReasonNoChallenge)
	}
	if s.now().After(ch.expiresAt) {
		return model.KeyRecord{}, abierr.New(abierr.Forbidden, abierr.ReasonChallengeExpired)
	}

	rec, ok := s.keyring.GetByAEID(aeID)
	if !ok {
		return model.KeyRecord{}, abierr.New(abierr.Unauthenticated, abierr.ReasonUnknownAE)
	}
	if rec.Status == model.KeyRevoked {
		return model.KeyRecord{}, abierr.New(abierr.Forbidden, abierr.ReasonAERevoked)
	}

	if !ed25519.Verify(ed25519.PublicKey(rec.PubKey), ch.nonce, sig) {
		return model.KeyRecord{}, abierr.New(abierr.Forbidden, abierr.ReasonBadSignature)
	}

	return rec, nil
}

// EncodeNonce base64-encodes a nonce for the wire (/register response).
func EncodeNonce(nonce []byte) string {
	return base64.StdEncoding.EncodeToString(nonce)
}

// DecodeSignature base64-decodes a signed_nonce_b64 field from /verify.
func DecodeSignature(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
