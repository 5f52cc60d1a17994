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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

type sessionStore struct {
	db *pgxpool.Pool
}

func (s *sessionStore) CreateSession(ctx context.Context, sess model.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		INSERT INTO abi_sessions (id, subject, pubkey_fingerprint, created_at, expires_at, last_seen_at, status, max_idle_sec, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.Exec(ctx, query, sess.ID, sess.Subject, sess.PubKeyFpr, sess.CreatedAt, sess.ExpiresAt, sess.LastSeenAt, sess.Status, sess.MaxIdleSec, meta)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sessionStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	query := `SELECT id, subject, pubkey_fingerprint, created_at, expires_at, last_seen_at, status, max_idle_sec, metadata FROM abi_sessions WHERE id = $1`
	var sess model.Session
	var meta []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.Subject, &sess.PubKeyFpr, &sess.CreatedAt, &sess.ExpiresAt, &sess.LastSeenAt, &sess.Status, &sess.MaxIdleSec, &meta,
	)
	if err == pgx.ErrNoRows {
		return model.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &sess.Metadata)
	}
	return sess, nil
}

func (s *sessionStore) UpdateSession(ctx context.Context, sess model.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		UPDATE abi_sessions SET last_seen_at = $2, status = $3, expires_at = $4, metadata = $5
		WHERE id = $1
	`
	ct, err := s.db.Exec(ctx, query, sess.ID, sess.LastSeenAt, sess.Status, sess.ExpiresAt, meta)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *sessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM abi_sessions WHERE expires_at < $1`
	ct, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
