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

// Package keyring maps Atomic Expert identities to their public keys,
// roles, and trust status. Lookup is O(1) on both the ae_id and the
// key fingerprint, the same dual-index shape the session manager uses
// to bind key IDs to sessions.
package keyring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

// Keyring is the broker's in-memory, store-backed view of AE identities.
type Keyring struct {
	mu          sync.RWMutex
	byAEID      map[string]model.KeyRecord
	byFingerprint map[string]string // fingerprint -> ae_id
	store       storage.KeyStore
}

// New creates a Keyring backed by store, loading any existing records.
func New(store storage.KeyStore) (*Keyring, error) {
	k := &Keyring{
		byAEID:        make(map[string]model.KeyRecord),
		byFingerprint: make(map[string]string),
		store:         store,
	}
	records, err := store.ListKeys(context.Background())
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		k.byAEID[r.AEID] = r
		k.byFingerprint[r.Fingerprint] = r.AEID
	}
	return k, nil
}

// Fingerprint computes the deterministic fingerprint of a raw public key.
func Fingerprint(pubkey []byte) string {
	sum := sha256.Sum256(pubkey)
	return hex.EncodeToString(sum[:])
}

// AddKey upserts a KeyRecord for ae_id, computing its fingerprint once.
func (k *Keyring) AddKey(ctx context.Context, aeID string, pubkey []byte, roles []string, status model.KeyStatus) (model.KeyRecord, error) {
	rec := model.KeyRecord{
		AEID:        aeID,
		PubKey:      pubkey,
		Fingerprint: Fingerprint(pubkey),
		Roles:       roles,
		Status:      status,
	}

	if err := k.store.UpsertKey(ctx, rec); err != nil {
		return model.KeyRecord{}, err
	}

	k.mu.Lock()
	if old, ok := k.byAEID[aeID]; ok && old.Fingerprint != rec.Fingerprint {
		delete(k.byFingerprint, old.Fingerprint)
	}
	k.byAEID[aeID] = rec
	k.byFingerprint[rec.Fingerprint] = aeID
	k.mu.Unlock()

	return rec, nil
}

// GetByAEID looks up a KeyRecord by ae_id.
func (k *Keyring) GetByAEID(aeID string) (model.KeyRecord, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	rec, ok := k.byAEID[aeID]
	return rec, ok
}

// GetByFingerprint looks up a KeyRecord by its key fingerprint.
func (k *Keyring) GetByFingerprint(fpr string) (model.KeyRecord, bool) {
	k.mu.RLock()
	aeID, ok := k.byFingerprint[fpr]
	if !ok {
		k.mu.RUnlock()
		return model.KeyRecord{}, false
	}
	rec, ok := k.byAEID[aeID]
	k.mu.RUnlock()
	return rec, ok
}

// Revoke sets a key's status to revoked; the record is retained for audit.
func (k *Keyring) Revoke(ctx context.Context, aeID string) error {
	k.mu.Lock()
	rec, ok := k.byAEID[aeID]
	if !ok {
		k.mu.Unlock()
		return storage.ErrNotFound
	}
	rec.Status = model.KeyRevoked
	k.byAEID[aeID] = rec
	k.mu.Unlock()

	return k.store.UpsertKey(ctx, rec)
}

// ListKeys returns a snapshot of all key records.
func (k *Keyring) ListKeys() []model.KeyRecord {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]model.KeyRecord, 0, len(k.byAEID))
	for _, r := range k.byAEID {
		out = append(out, r)
	}
	return out
}
