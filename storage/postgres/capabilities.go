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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

type capabilityStore struct {
	db *pgxpool.Pool
}

func (c *capabilityStore) UpsertCapability(ctx context.Context, cap model.Capability) error {
	meta, err := json.Marshal(cap.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	query := `
		INSERT INTO abi_capabilities (ae_id, publishes, subscribes, meta, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ae_id) DO UPDATE SET
			publishes = EXCLUDED.publishes,
			subscribes = EXCLUDED.subscribes,
			meta = EXCLUDED.meta,
			updated_at = EXCLUDED.updated_at
	`
	_, err = c.db.Exec(ctx, query, cap.AEID, cap.Publishes, cap.Subscribes, meta, cap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert capability: %w", err)
	}
	return nil
}

func (c *capabilityStore) GetCapability(ctx context.Context, aeID string) (model.Capability, error) {
	query := `SELECT ae_id, publishes, subscribes, meta, updated_at FROM abi_capabilities WHERE ae_id = $1`
	var cap model.Capability
	var meta []byte
	err := c.db.QueryRow(ctx, query, aeID).Scan(&cap.AEID, &cap.Publishes, &cap.Subscribes, &meta, &cap.UpdatedAt)
	if err == pgx.ErrNoRows {
		return model.Capability{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Capability{}, fmt.Errorf("get capability: %w", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &cap.Meta)
	}
	return cap, nil
}

func (c *capabilityStore) ListCapabilities(ctx context.Context) ([]model.Capability, error) {
	query := `SELECT ae_id, publishes, subscribes, meta, updated_at FROM abi_capabilities`
	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var out []model.Capability
	for rows.Next() {
		var cap model.Capability
		var meta []byte
		if err := rows.Scan(&cap.AEID, &cap.Publishes, &cap.Subscribes, &meta, &cap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan capability: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &cap.Meta)
		}
		out = append(out, cap)
	}
	return out, rows.Err()
}
