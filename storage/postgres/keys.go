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

type keyStore struct {
	db *pgxpool.Pool
}

func (k *keyStore) UpsertKey(ctx context.Context, rec model.KeyRecord) error {
	query := `
		INSERT INTO abi_keys (ae_id, pubkey, pubkey_fingerprint, roles, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ae_id) DO UPDATE SET
			pubkey = EXCLUDED.pubkey,
			pubkey_fingerprint = EXCLUDED.pubkey_fingerprint,
			roles = EXCLUDED.roles,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at
	`
	_, err := k.db.Exec(ctx, query, rec.AEID, rec.PubKey, rec.Fingerprint, rec.Roles, rec.Status, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert key: %w", err)
	}
	return nil
}

func (k *keyStore) GetKey(ctx context.Context, aeID string) (model.KeyRecord, error) {
	query := `SELECT ae_id, pubkey, pubkey_fingerprint, roles, status, expires_at FROM abi_keys WHERE ae_id = $1`
	return k.scanOne(ctx, query, aeID)
}

func (k *keyStore) GetKeyByFingerprint(ctx context.Context, fpr string) (model.KeyRecord, error) {
	query := `SELECT ae_id, pubkey, pubkey_fingerprint, roles, status, expires_at FROM abi_keys WHERE pubkey_fingerprint = $1`
	return k.scanOne(ctx, query, fpr)
}

func (k *keyStore) scanOne(ctx context.Context, query string, arg any) (model.KeyRecord, error) {
	var rec model.KeyRecord
	err := k.db.QueryRow(ctx, query, arg).Scan(
		&rec.AEID, &rec.PubKey, &rec.Fingerprint, &rec.Roles, &rec.Status, &rec.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return model.KeyRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return model.KeyRecord{}, fmt.Errorf("get key: %w", err)
	}
	return rec, nil
}

func (k *keyStore) ListKeys(ctx context.Context) ([]model.KeyRecord, error) {
	query := `SELECT ae_id, pubkey, pubkey_fingerprint, roles, status, expires_at FROM abi_keys`
	rows, err := k.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []model.KeyRecord
	for rows.Next() {
		var rec model.KeyRecord
		if err := rows.Scan(&rec.AEID, &rec.PubKey, &rec.Fingerprint, &rec.Roles, &rec.Status, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
