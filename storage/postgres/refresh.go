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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

type refreshStore struct {
	db *pgxpool.Pool
}

func (r *refreshStore) CreateRefreshToken(ctx context.Context, rt model.RefreshToken) error {
	query := `
		INSERT INTO abi_refresh_tokens (id, session_id, token_hash, created_at, expires_at, revoked, rotation, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, rt.ID, rt.SessionID, rt.TokenHash[:], rt.CreatedAt, rt.ExpiresAt, rt.Revoked, rt.Rotation, rt.Reason)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *refreshStore) GetRefreshToken(ctx context.Context, id string) (model.RefreshToken, error) {
	query := `SELECT id, session_id, token_hash, created_at, expires_at, revoked, rotation, reason FROM abi_refresh_tokens WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *refreshStore) GetActiveRefreshTokenForSession(ctx context.Context, sessionID string) (model.RefreshToken, error) {
	query := `
		SELECT id, session_id, token_hash, created_at, expires_at, revoked, rotation, reason
		FROM abi_refresh_tokens
		WHERE session_id = $1 AND revoked = FALSE
		ORDER BY rotation DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, sessionID)
}

func (r *refreshStore) scanOne(ctx context.Context, query string, arg any) (model.RefreshToken, error) {
	var rt model.RefreshToken
	var hash []byte
	var reason *string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&rt.ID, &rt.SessionID, &hash, &rt.CreatedAt, &rt.ExpiresAt, &rt.Revoked, &rt.Rotation, &reason,
	)
	if err == pgx.ErrNoRows {
		return model.RefreshToken{}, storage.ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	copy(rt.TokenHash[:], hash)
	if reason != nil {
		rt.Reason = *reason
	}
	return rt, nil
}

func (r *refreshStore) RevokeRefreshToken(ctx context.Context, id string, reason string) error {
	query := `UPDATE abi_refresh_tokens SET revoked = TRUE, reason = $2 WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *refreshStore) RevokeAllForSession(ctx context.Context, sessionID string, reason string) error {
	query := `UPDATE abi_refresh_tokens SET revoked = TRUE, reason = $2 WHERE session_id = $1 AND revoked = FALSE`
	_, err := r.db.Exec(ctx, query, sessionID, reason)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens for session: %w", err)
	}
	return nil
}
