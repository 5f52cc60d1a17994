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

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

// Manager owns session and refresh-token lifecycle. All mutations are
// serialized through one mutex, the same guarantee the teacher's
// sync.RWMutex-guarded map gives its session table — sufficient to meet
// the "serializable per session_id" concurrency contract at broker scale.
type Manager struct {
	mu       sync.Mutex
	sessions storage.SessionStore
	refresh  storage.RefreshStore
	profiles map[string]Profile
	now      func() time.Time
}

// NewManager builds a Manager with the built-in default/long_lived profiles.
func NewManager(sessions storage.SessionStore, refresh storage.RefreshStore) *Manager {
	return &Manager{
		sessions: sessions,
		refresh:  refresh,
		profiles: DefaultProfiles(),
		now:      time.Now,
	}
}

func (m *Manager) profile(name string) (Profile, error) {
	p, ok := m.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown session profile %q", name)
	}
	return p, nil
}

// CreateSession admits subject into a new ACTIVE session under profile.
func (m *Manager) CreateSession(ctx context.Context, subject, pubkeyFpr, profileName string, metadata map[string]string) (model.Session, error) {
	p, err := m.profile(profileName)
	if err != nil {
		return model.Session{}, err
	}

	now := m.now()
	sess := model.Session{
		ID:         uuid.NewString(),
		Subject:    subject,
		PubKeyFpr:  pubkeyFpr,
		CreatedAt:  now,
		ExpiresAt:  now.Add(p.SessionLifetime),
		LastSeenAt: now,
		Status:     model.SessionActive,
		MaxIdleSec: int64(p.MaxIdle.Seconds()),
		Metadata:   metadata,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sessions.CreateSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// CreateRefreshToken issues a fresh opaque refresh token for sessionID,
// returning the raw token exactly once; only its hash is persisted.
func (m *Manager) CreateRefreshToken(ctx context.Context, sessionID, profileName string) (string, model.RefreshToken, error) {
	p, err := m.profile(profileName)
	if err != nil {
		return "", model.RefreshToken{}, err
	}

	raw, hash, err := newRawToken()
	if err != nil {
		return "", model.RefreshToken{}, err
	}

	now := m.now()
	rt := model.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(p.RefreshLifetime),
		Revoked:   false,
		Rotation:  0,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refresh.CreateRefreshToken(ctx, rt); err != nil {
		return "", model.RefreshToken{}, err
	}
	return raw, rt, nil
}

// ValidateRefreshToken looks up the active token for sessionID and
// compares it to raw in constant time. Expired tokens are auto-revoked
// with reason "expired".
func (m *Manager) ValidateRefreshToken(ctx context.Context, sessionID, raw string) (model.RefreshToken, *abierr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, err := m.refresh.GetActiveRefreshTokenForSession(ctx, sessionID)
	if err != nil {
		return model.RefreshToken{}, abierr.New(abierr.Unauthenticated, abierr.ReasonBadRefresh)
	}

	if m.now().After(rt.ExpiresAt) {
		_ = m.refresh.RevokeRefreshToken(ctx, rt.ID, "expired")
		return model.RefreshToken{}, abierr.New(abierr.Unauthenticated, abierr.ReasonBadRefresh)
	}

	hash := sha256.Sum256([]byte(raw))
	if subtle.ConstantTimeCompare(hash[:], rt.TokenHash[:]) != 1 {
		return model.RefreshToken{}, abierr.New(abierr.Unauthenticated, abierr.ReasonBadRefresh)
	}

	return rt, nil
}

// RotateRefreshToken revokes old with reason "rotation" and issues a
// replacement carrying rotation+1 and the same remaining expiry window.
func (m *Manager) RotateRefreshToken(ctx context.Context, old model.RefreshToken) (string, model.RefreshToken, error) {
	raw, hash, err := newRawToken()
	if err != nil {
		return "", model.RefreshToken{}, err
	}

	next := model.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: old.SessionID,
		TokenHash: hash,
		CreatedAt: m.now(),
		ExpiresAt: old.ExpiresAt,
		Revoked:   false,
		Rotation:  old.Rotation + 1,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refresh.RevokeRefreshToken(ctx, old.ID, "rotation"); err != nil {
		metrics.RefreshRotations.WithLabelValues("failure").Inc()
		return "", model.RefreshToken{}, err
	}
	if err := m.refresh.CreateRefreshToken(ctx, next); err != nil {
		metrics.RefreshRotations.WithLabelValues("failure").Inc()
		return "", model.RefreshToken{}, err
	}
	metrics.RefreshRotations.WithLabelValues("success").Inc()
	return raw, next, nil
}

// AssertSessionActive loads the session and, if it has gone idle or
// passed its hard expiry, transitions it to EXPIRED before returning
// the corresponding error.
func (m *Manager) AssertSessionActive(ctx context.Context, sid string) (model.Session, *abierr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessions.GetSession(ctx, sid)
	if err == storage.ErrNotFound {
		return model.Session{}, abierr.New(abierr.Unauthenticated, abierr.ReasonSessionExpired)
	}
	if err != nil {
		return model.Session{}, abierr.Wrap(abierr.Internal, "session_lookup_failed", err)
	}

	switch sess.Status {
	case model.SessionRevoked:
		return model.Session{}, abierr.New(abierr.Unauthenticated, abierr.ReasonSessionRevoked)
	case model.SessionExpired:
		return model.Session{}, abierr.New(abierr.Unauthenticated, abierr.ReasonSessionExpired)
	}

	now := m.now()
	idle := now.Sub(sess.LastSeenAt)
	if idle < 0 {
		idle = 0
	}
	expired := now.After(sess.ExpiresAt) || (sess.MaxIdleSec > 0 && idle >= time.Duration(sess.MaxIdleSec)*time.Second)
	if expired {
		sess.Status = model.SessionExpired
		_ = m.sessions.UpdateSession(ctx, sess)
		metrics.SessionsExpired.Inc()
		metrics.SessionsActive.Dec()
		return model.Session{}, abierr.New(abierr.Unauthenticated, abierr.ReasonSessionExpired)
	}

	return sess, nil
}

// Touch updates last_seen_at to now; a no-op on terminal sessions.
func (m *Manager) Touch(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessions.GetSession(ctx, sid)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return nil
	}
	sess.LastSeenAt = m.now()
	return m.sessions.UpdateSession(ctx, sess)
}

// RevokeSession terminally revokes sid and cascades to its refresh tokens.
func (m *Manager) RevokeSession(ctx context.Context, sid, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessions.GetSession(ctx, sid)
	if err != nil {
		return err
	}
	sess.Status = model.SessionRevoked
	if err := m.sessions.UpdateSession(ctx, sess); err != nil {
		return err
	}
	metrics.SessionsRevoked.Inc()
	metrics.SessionsActive.Dec()
	return m.refresh.RevokeAllForSession(ctx, sid, reason)
}

// newRawToken generates a 256-bit opaque refresh token and its SHA-256 hash.
func newRawToken() (string, [32]byte, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", [32]byte{}, err
	}
	encoded := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(encoded))
	return encoded, hash, nil
}
