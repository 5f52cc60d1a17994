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

// Package postgres is the durable storage.Store backend, generalized
// from the teacher's pkg/storage/postgres package (session/nonce/DID
// persistence over pgx) to the broker's five persisted entities.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/abi/storage"
)

// Store implements storage.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool

	key         *keyStore
	capability  *capabilityStore
	session     *sessionStore
	refresh     *refreshStore
	reflection  *reflectionStore
}

// NewStore dials dsn and verifies connectivity before returning.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	s.key = &keyStore{db: pool}
	s.capability = &capabilityStore{db: pool}
	s.session = &sessionStore{db: pool}
	s.refresh = &refreshStore{db: pool}
	s.reflection = &reflectionStore{db: pool}
	return s, nil
}

func (s *Store) KeyStore() storage.KeyStore               { return s.key }
func (s *Store) CapabilityStore() storage.CapabilityStore { return s.capability }
func (s *Store) SessionStore() storage.SessionStore       { return s.session }
func (s *Store) RefreshStore() storage.RefreshStore       { return s.refresh }
func (s *Store) ReflectionStore() storage.ReflectionStore { return s.reflection }

func (s *Store) Close() error { s.pool.Close(); return nil }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Schema is the DDL the store's queries expect. NewStore does not apply
// it; the tables must already exist.
const Schema = `
CREATE TABLE IF NOT EXISTS abi_keys (
	ae_id TEXT PRIMARY KEY,
	pubkey BYTEA NOT NULL,
	pubkey_fingerprint TEXT NOT NULL,
	roles TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_abi_keys_fingerprint ON abi_keys(pubkey_fingerprint);

CREATE TABLE IF NOT EXISTS abi_capabilities (
	ae_id TEXT PRIMARY KEY,
	publishes TEXT[] NOT NULL DEFAULT '{}',
	subscribes TEXT[] NOT NULL DEFAULT '{}',
	meta JSONB,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS abi_sessions (
	id TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	pubkey_fingerprint TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	max_idle_sec BIGINT NOT NULL,
	metadata JSONB
);

CREATE TABLE IF NOT EXISTS abi_refresh_tokens (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES abi_sessions(id),
	token_hash BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	rotation BIGINT NOT NULL DEFAULT 0,
	reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_abi_refresh_session ON abi_refresh_tokens(session_id);

CREATE TABLE IF NOT EXISTS abi_reflection (
	record_id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	domain TEXT NOT NULL,
	event_type TEXT NOT NULL,
	intent TEXT,
	subject TEXT,
	source TEXT NOT NULL,
	ae_id TEXT,
	session_id TEXT,
	trace_id TEXT,
	confidence TEXT,
	transitions JSONB,
	severity TEXT NOT NULL,
	quality TEXT,
	payload JSONB,
	labels JSONB
);
CREATE INDEX IF NOT EXISTS idx_abi_reflection_ts ON abi_reflection(ts);
CREATE INDEX IF NOT EXISTS idx_abi_reflection_ae ON abi_reflection(ae_id);
`
