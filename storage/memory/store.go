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

// Package memory is the in-memory storage.Store used for tests and
// single-process development, generalized from the teacher's
// pkg/storage/memory package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

// Store implements storage.Store entirely in memory.
type Store struct {
	mu sync.RWMutex

	keys         map[string]model.KeyRecord
	capabilities map[string]model.Capability
	sessions     map[string]model.Session
	refresh      map[string]model.RefreshToken
	reflections  []model.ReflectionRecord
}

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		keys:         make(map[string]model.KeyRecord),
		capabilities: make(map[string]model.Capability),
		sessions:     make(map[string]model.Session),
		refresh:      make(map[string]model.RefreshToken),
	}
}

func (s *Store) KeyStore() storage.KeyStore               { return (*keyStore)(s) }
func (s *Store) CapabilityStore() storage.CapabilityStore { return (*capabilityStore)(s) }
func (s *Store) SessionStore() storage.SessionStore       { return (*sessionStore)(s) }
func (s *Store) RefreshStore() storage.RefreshStore       { return (*refreshStore)(s) }
func (s *Store) ReflectionStore() storage.ReflectionStore { return (*reflectionStore)(s) }

func (s *Store) Close() error                     { return nil }
func (s *Store) Ping(ctx context.Context) error    { return nil }

type keyStore Store

func (k *keyStore) UpsertKey(ctx context.Context, rec model.KeyRecord) error {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[rec.AEID] = rec
	return nil
}

func (k *keyStore) GetKey(ctx context.Context, aeID string) (model.KeyRecord, error) {
	s := (*Store)(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[aeID]
	if !ok {
		return model.KeyRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (k *keyStore) GetKeyByFingerprint(ctx context.Context, fpr string) (model.KeyRecord, error) {
	s := (*Store)(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.keys {
		if rec.Fingerprint == fpr {
			return rec, nil
		}
	}
	return model.KeyRecord{}, storage.ErrNotFound
}

func (k *keyStore) ListKeys(ctx context.Context) ([]model.KeyRecord, error) {
	s := (*Store)(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.KeyRecord, 0, len(s.keys))
	for _, rec := range s.keys {
		out = append(out, rec)
	}
	return out, nil
}

type capabilityStore Store

func (c *capabilityStore) UpsertCapability(ctx context.Context, cap model.Capability) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities[cap.AEID] = cap
	return nil
}

func (c *capabilityStore) GetCapability(ctx context.Context, aeID string) (model.Capability, error) {
	s := (*Store)(c)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cap, ok := s.capabilities[aeID]
	if !ok {
		return model.Capability{}, storage.ErrNotFound
	}
	return cap, nil
}

func (c *capabilityStore) ListCapabilities(ctx context.Context) ([]model.Capability, error) {
	s := (*Store)(c)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Capability, 0, len(s.capabilities))
	for _, cap := range s.capabilities {
		out = append(out, cap)
	}
	return out, nil
}

type sessionStore Store

func (x *sessionStore) CreateSession(ctx context.Context, sess model.Session) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (x *sessionStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	s := (*Store)(x)
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (x *sessionStore) UpdateSession(ctx context.Context, sess model.Session) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return storage.ErrNotFound
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (x *sessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type refreshStore Store

func (r *refreshStore) CreateRefreshToken(ctx context.Context, rt model.RefreshToken) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[rt.ID] = rt
	return nil
}

func (r *refreshStore) GetRefreshToken(ctx context.Context, id string) (model.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.refresh[id]
	if !ok {
		return model.RefreshToken{}, storage.ErrNotFound
	}
	return rt, nil
}

func (r *refreshStore) GetActiveRefreshTokenForSession(ctx context.Context, sessionID string) (model.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rt := range s.refresh {
		if rt.SessionID == sessionID && !rt.Revoked {
			return rt, nil
		}
	}
	return model.RefreshToken{}, storage.ErrNotFound
}

func (r *refreshStore) RevokeRefreshToken(ctx context.Context, id string, reason string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refresh[id]
	if !ok {
		return storage.ErrNotFound
	}
	rt.Revoked = true
	rt.Reason = reason
	s.refresh[id] = rt
	return nil
}

func (r *refreshStore) RevokeAllForSession(ctx context.Context, sessionID string, reason string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rt := range s.refresh {
		if rt.SessionID == sessionID && !rt.Revoked {
			rt.Revoked = true
			rt.Reason = reason
			s.refresh[id] = rt
		}
	}
	return nil
}

type reflectionStore Store

func (x *reflectionStore) Append(ctx context.Context, rec model.ReflectionRecord) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reflections = append(s.reflections, rec)
	return nil
}

func (x *reflectionStore) All(ctx context.Context) ([]model.ReflectionRecord, error) {
	s := (*Store)(x)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ReflectionRecord, len(s.reflections))
	copy(out, s.reflections)
	return out, nil
}

func (x *reflectionStore) Query(ctx context.Context, q storage.Query) ([]model.ReflectionRecord, error) {
	s := (*Store)(x)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ReflectionRecord, 0)
	for _, rec := range s.reflections {
		if q.AEID != "" && rec.Correlation.AEID != q.AEID {
			continue
		}
		if q.SessionID != "" && rec.Correlation.SessionID != q.SessionID {
			continue
		}
		if q.EventType != "" && rec.EventType != q.EventType {
			continue
		}
		if !q.Since.IsZero() && rec.TS.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && rec.TS.After(q.Until) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TS.Equal(out[j].TS) {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].TS.Before(out[j].TS)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
